package exchange

import (
	"context"
	"fmt"

	"market-analytics/internal/analysis"
	"market-analytics/internal/cache"
	"market-analytics/internal/market"

	"github.com/rs/zerolog"
)

// CachedCandles is a read-through cache in front of a CandleSource. Entries live for
// the timeframe's CacheTTL.
type CachedCandles struct {
	source CandleSource
	store  cache.Store
	rec    cache.HitRecorder
	logger zerolog.Logger
}

// NewCachedCandles wraps source. A nil store disables caching.
func NewCachedCandles(source CandleSource, store cache.Store, rec cache.HitRecorder, logger zerolog.Logger) *CachedCandles {
	if store == nil {
		store = cache.NopStore{}
	}
	return &CachedCandles{
		source: source,
		store:  store,
		rec:    rec,
		logger: logger.With().Str("component", "candles").Logger(),
	}
}

// GetCandles returns cached candles or fetches and caches them.
func (c *CachedCandles) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	tf, err := analysis.ParseTimeframe(interval)
	if err != nil {
		return nil, err
	}

	key := cache.CandlesKey(symbol, interval, limit)
	candles, err := cache.Through(ctx, c.store, key, tf.CacheTTL(), c.logger, c.rec, func(ctx context.Context) ([]market.Candle, error) {
		return c.source.GetCandles(ctx, symbol, interval, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("candles %s %s: %w", symbol, interval, err)
	}
	return candles, nil
}

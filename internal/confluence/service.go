package confluence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-analytics/internal/analysis"
	"market-analytics/internal/cache"
	"market-analytics/internal/events"
	"market-analytics/internal/exchange"
	"market-analytics/internal/ict"
	"market-analytics/internal/logging"
	"market-analytics/internal/market"
	"market-analytics/internal/metrics"

	"github.com/rs/zerolog"
)

// ErrNoTimeframes is returned by Analyze when no timeframe could be fetched.
var ErrNoTimeframes = errors.New("no timeframe analyzed")

const (
	defaultCandleLimit = 200
	defaultCacheTTL    = 60 * time.Second
)

// Service runs the ICT analyzer over live candles.
type Service struct {
	candles  exchange.CandleSource
	analyzer *ict.Analyzer
	store    cache.Store
	metrics  *metrics.Registry
	bus      *events.EventBus
	logger   zerolog.Logger
	now      func() time.Time

	candleLimit int
	cacheTTL    time.Duration
}

// NewService wires the analyzer to a candle source. store, m and bus may be nil.
func NewService(candles exchange.CandleSource, analyzer *ict.Analyzer, store cache.Store, m *metrics.Registry, bus *events.EventBus, logger zerolog.Logger) *Service {
	if store == nil {
		store = cache.NopStore{}
	}
	return &Service{
		candles:  candles,
		analyzer: analyzer,
		store:    store,
		metrics:  m,
		bus:      bus,
		logger:   logger.With().Str("component", "ict").Logger(),
		now:      time.Now,

		candleLimit: defaultCandleLimit,
		cacheTTL:    defaultCacheTTL,
	}
}

// SetLimits overrides the candles fetched per timeframe and the analysis cache TTL.
// Non-positive values keep the current setting.
func (s *Service) SetLimits(candleLimit int, cacheTTL time.Duration) {
	if candleLimit > 0 {
		s.candleLimit = candleLimit
	}
	if cacheTTL > 0 {
		s.cacheTTL = cacheTTL
	}
}

// Analyze fetches every confluence timeframe concurrently and fuses the signals. A
// timeframe whose fetch fails contributes no signal. Malformed candles on any timeframe,
// a cancelled ctx, or a failure on every timeframe return an error and nothing is
// cached. Results are cached per symbol, for a minute by default.
func (s *Service) Analyze(ctx context.Context, symbol string) (*market.MultiTimeframeAnalysis, error) {
	key := cache.MultiTimeframeKey(symbol)
	return cache.Through(ctx, s.store, key, s.cacheTTL, s.logger, s.metrics, func(ctx context.Context) (*market.MultiTimeframeAnalysis, error) {
		results := exchange.FanOut(ctx, exchange.FanOutOptions{}, analysis.ConfluenceTimeframes,
			func(tf analysis.Timeframe) string { return string(tf) },
			func(ctx context.Context, tf analysis.Timeframe) (*market.Signal, error) {
				return s.signal(ctx, symbol, tf)
			})

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		signals := make(map[analysis.Timeframe]*market.Signal, len(results))
		var lastErr error
		for i, r := range results {
			tf := analysis.ConfluenceTimeframes[i]
			if r.Err != nil {
				if errors.Is(r.Err, market.ErrInvalidCandles) {
					return nil, fmt.Errorf("%s: %w", tf, r.Err)
				}
				l := logging.SymbolContext(s.logger, symbol, string(tf))
				l.Warn().Err(r.Err).Msg("Timeframe analysis failed")
				lastErr = r.Err
				continue
			}
			signals[tf] = r.Value
		}
		if len(signals) == 0 && lastErr != nil {
			return nil, fmt.Errorf("%w: every timeframe failed: %v", ErrNoTimeframes, lastErr)
		}

		fused := Fuse(symbol, s.now().UnixMilli(), signals)
		return &fused, nil
	})
}

// Signal analyzes a single timeframe. Unlike Analyze, fetch and validation errors are
// returned to the caller.
func (s *Service) Signal(ctx context.Context, symbol, timeframe string) (*market.Signal, error) {
	tf, err := analysis.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	return s.signal(ctx, symbol, tf)
}

func (s *Service) signal(ctx context.Context, symbol string, tf analysis.Timeframe) (*market.Signal, error) {
	candles, err := s.candles.GetCandles(ctx, symbol, string(tf), s.candleLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}

	sig, err := s.analyzer.AnalyzeTimeframe(symbol, string(tf), candles)
	if err != nil || sig == nil {
		return nil, err
	}

	s.metrics.SignalEmitted("ict", string(sig.Direction))
	s.bus.PublishSignal(symbol, string(tf), string(sig.Direction), string(sig.Kind), sig.Entry, sig.Confidence)
	l := logging.SymbolContext(s.logger, symbol, string(tf))
	l.Info().
		Str("direction", string(sig.Direction)).
		Str("kind", string(sig.Kind)).
		Float64("entry", sig.Entry).
		Float64("confidence", sig.Confidence).
		Msg("ICT signal generated")
	return sig, nil
}

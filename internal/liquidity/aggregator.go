package liquidity

import (
	"context"
	"errors"
	"strings"
	"time"

	"market-analytics/internal/cache"
	"market-analytics/internal/events"
	"market-analytics/internal/exchange"
	"market-analytics/internal/logging"
	"market-analytics/internal/market"
	"market-analytics/internal/metrics"

	"github.com/rs/zerolog"
)

// ErrNoOrderBooks is returned when no exchange produced a book for the symbol.
var ErrNoOrderBooks = errors.New("no order book data available")

// Config holds the liquidity aggregator configuration
type Config struct {
	Exchanges           []string      `json:"exchanges"`
	Depth               int           `json:"depth"`                 // Levels requested per exchange
	DisplayLevels       int           `json:"display_levels"`        // Levels kept per side in the merged book
	ClusterThresholdPct float64       `json:"cluster_threshold_pct"` // Cluster width, percent of mid
	MaxClusters         int           `json:"max_clusters"`          // Clusters kept per side
	PriceDecimals       int           `json:"price_decimals"`        // Rounding applied before merging
	CacheTTL            time.Duration `json:"cache_ttl"`
	CallTimeout         time.Duration `json:"call_timeout"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Exchanges:           []string{"binance", "bybit", "okx", "gateio", "kucoin"},
		Depth:               100,
		DisplayLevels:       50,
		ClusterThresholdPct: 0.5,
		MaxClusters:         10,
		PriceDecimals:       2,
		CacheTTL:            10 * time.Second,
		CallTimeout:         10 * time.Second,
	}
}

// defaultLevels is used by Levels when the caller asks for none.
const defaultLevels = 20

// Aggregator builds liquidity heatmaps from the books of several exchanges.
type Aggregator struct {
	cfg     Config
	venues  []exchange.OrderBookFetcher
	store   cache.Store
	metrics *metrics.Registry
	bus     *events.EventBus
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAggregator creates an aggregator. store, m and bus may be nil.
func NewAggregator(cfg Config, venues []exchange.OrderBookFetcher, store cache.Store, m *metrics.Registry, bus *events.EventBus, logger zerolog.Logger) *Aggregator {
	def := DefaultConfig()
	if cfg.Depth <= 0 {
		cfg.Depth = def.Depth
	}
	if cfg.ClusterThresholdPct <= 0 {
		cfg.ClusterThresholdPct = def.ClusterThresholdPct
	}
	if cfg.MaxClusters <= 0 {
		cfg.MaxClusters = def.MaxClusters
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if store == nil {
		store = cache.NopStore{}
	}
	return &Aggregator{
		cfg:     cfg,
		venues:  venues,
		store:   store,
		metrics: m,
		bus:     bus,
		logger:  logger.With().Str("component", "liquidity").Logger(),
		now:     time.Now,
	}
}

// Heatmap merges the books of every exchange for symbol and derives the support and
// resistance clusters and the bid/ask sentiment. Results are cached for CacheTTL;
// ErrNoOrderBooks is never cached.
func (a *Aggregator) Heatmap(ctx context.Context, symbol string) (*market.LiquidityHeatmap, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return cache.Through(ctx, a.store, cache.HeatmapKey(symbol), a.cfg.CacheTTL, a.logger, a.metrics, func(ctx context.Context) (*market.LiquidityHeatmap, error) {
		return a.heatmap(ctx, symbol)
	})
}

func (a *Aggregator) heatmap(ctx context.Context, symbol string) (*market.LiquidityHeatmap, error) {
	log := logging.SymbolContext(a.logger, symbol, "")
	log.Info().Int("exchanges", len(a.venues)).Msg("Generating liquidity heatmap")

	books := a.books(ctx, symbol)
	if len(books) == 0 {
		log.Warn().Msg("No order book data available")
		return nil, ErrNoOrderBooks
	}

	book := Merge(symbol, books, a.cfg.PriceDecimals, a.cfg.DisplayLevels)
	ts := a.now().UnixMilli()
	book.Timestamp = ts

	mid := MidPrice(book)
	bidClusters := Cluster(book.Bids, market.BidSide, mid, a.cfg.ClusterThresholdPct, book.TotalBidLiquidity)
	askClusters := Cluster(book.Asks, market.AskSide, mid, a.cfg.ClusterThresholdPct, book.TotalAskLiquidity)

	heatmap := &market.LiquidityHeatmap{
		Symbol:         symbol,
		Timestamp:      ts,
		CurrentPrice:   mid,
		OrderBook:      book,
		BidClusters:    truncate(bidClusters, a.cfg.MaxClusters),
		AskClusters:    truncate(askClusters, a.cfg.MaxClusters),
		LiquidityRatio: Ratio(book.TotalBidLiquidity, book.TotalAskLiquidity),
	}
	if len(bidClusters) > 0 {
		heatmap.StrongestSupport = bidClusters[0].Price
	}
	if len(askClusters) > 0 {
		heatmap.StrongestResistance = askClusters[0].Price
	}
	heatmap.Sentiment = Sentiment(heatmap.LiquidityRatio)

	a.bus.PublishHeatmapUpdate(symbol, heatmap.StrongestSupport, heatmap.StrongestResistance, heatmap.LiquidityRatio, string(heatmap.Sentiment))
	log.Info().
		Int("books", len(books)).
		Int("bid_clusters", len(bidClusters)).
		Int("ask_clusters", len(askClusters)).
		Str("sentiment", string(heatmap.Sentiment)).
		Msg("Generated liquidity heatmap")
	return heatmap, nil
}

// Levels flattens the top n bids and asks of the heatmap with their distance from mid.
func (a *Aggregator) Levels(ctx context.Context, symbol string, n int) ([]market.LiquidityLevel, error) {
	if n <= 0 {
		n = defaultLevels
	}
	heatmap, err := a.Heatmap(ctx, symbol)
	if err != nil {
		return nil, err
	}

	mid := heatmap.CurrentPrice
	levels := make([]market.LiquidityLevel, 0, 2*n)
	appendSide := func(side []market.OrderBookLevel, s market.BookSide) {
		for i, l := range side {
			if i >= n {
				break
			}
			var pct float64
			if mid > 0 {
				pct = (l.Price - mid) / mid * 100
			}
			levels = append(levels, market.LiquidityLevel{Price: l.Price, Volume: l.Amount, Side: s, PercentFromMid: pct})
		}
	}
	appendSide(heatmap.OrderBook.Bids, market.BidSide)
	appendSide(heatmap.OrderBook.Asks, market.AskSide)
	return levels, nil
}

// books fetches depth from every exchange; failures and empty books are dropped.
func (a *Aggregator) books(ctx context.Context, symbol string) []market.RawOrderBook {
	results := exchange.FanOut(ctx, exchange.FanOutOptions{CallTimeout: a.cfg.CallTimeout}, a.venues, exchange.BookName,
		func(ctx context.Context, v exchange.OrderBookFetcher) (*market.RawOrderBook, error) {
			return v.FetchOrderBook(ctx, symbol, a.cfg.Depth)
		})

	ok, failed := exchange.Successes(results)
	for _, f := range failed {
		l := logging.ExchangeContext(a.logger, f.Exchange, "orderbook", symbol)
		l.Debug().Err(f.Err).Msg("Order book fetch failed")
	}

	books := make([]market.RawOrderBook, 0, len(ok))
	for _, b := range ok {
		if b != nil && (len(b.Bids) > 0 || len(b.Asks) > 0) {
			books = append(books, *b)
		}
	}
	return books
}

func truncate(clusters []market.LiquidityCluster, n int) []market.LiquidityCluster {
	if clusters == nil {
		return []market.LiquidityCluster{}
	}
	if len(clusters) > n {
		return clusters[:n]
	}
	return clusters
}

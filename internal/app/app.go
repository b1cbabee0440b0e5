// Package app wires configuration into the running analytics services. It is shared
// by the HTTP server and the marketctl CLI.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"market-analytics/config"
	"market-analytics/internal/arbitrage"
	"market-analytics/internal/binance"
	"market-analytics/internal/cache"
	"market-analytics/internal/circuit"
	"market-analytics/internal/confluence"
	"market-analytics/internal/events"
	"market-analytics/internal/exchange"
	"market-analytics/internal/exchange/venues"
	"market-analytics/internal/ict"
	"market-analytics/internal/liquidity"
	"market-analytics/internal/metrics"
	"market-analytics/internal/scalping"

	"github.com/rs/zerolog"
)

// mockSkews offsets each simulated venue from the reference price so mock mode shows
// spreads wide enough to clear the arbitrage fees.
var mockSkews = map[string]float64{
	"binance": 0,
	"bybit":   0.0012,
	"okx":     -0.0008,
	"gateio":  0.006,
	"kucoin":  -0.003,
}

// Candles always come from Binance, whether or not it is scanned for spreads.
const candleExchange = "binance"

type candleVenue interface {
	exchange.Venue
	exchange.CandleSource
}

// App holds the wired services.
type App struct {
	Config    *config.Config
	Bus       *events.EventBus
	Metrics   *metrics.Registry
	Breakers  *circuit.Manager
	Registry  *exchange.Registry
	Redis     *cache.RedisStore // nil when Redis is disabled
	ICT       *confluence.Service
	Sniper    *scalping.Service
	Arbitrage *arbitrage.Scanner
	Liquidity *liquidity.Aggregator
	Stream    *binance.LiquidationStream // nil unless the live stream is enabled

	logger zerolog.Logger
}

// New builds every service from cfg. No network call is made except the initial
// Redis ping.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Bus:     events.NewEventBus(),
		Metrics: metrics.NewRegistry("market_analytics"),
		logger:  logger,
	}

	a.Breakers = circuit.NewManager(breakerConfig(cfg.ExchangesConfig.CircuitBreaker), logger)
	a.Breakers.OnStateChange(func(name string, from, to circuit.BreakerState) {
		a.Metrics.SetBreakerState(name, to.Gauge())
		a.Bus.PublishBreakerUpdate(name, string(from), string(to))
	})

	var store cache.Store = cache.NopStore{}
	if cfg.RedisConfig.Enabled {
		rs, err := cache.NewRedisStore(cfg.RedisConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.Redis = rs
		store = rs
	}

	raw, candleSource, err := buildVenues(cfg.ExchangesConfig)
	if err != nil {
		return nil, err
	}

	guardCfg := exchange.GuardConfig{
		RequestsPerSecond: cfg.ExchangesConfig.RequestsPerSecond,
		Burst:             cfg.ExchangesConfig.Burst,
	}
	guards := make([]exchange.Venue, 0, len(raw))
	var candleGuard *exchange.Guard
	for _, v := range raw {
		g := exchange.NewGuard(v, guardCfg, a.Breakers, a.Metrics, logger)
		if v.Name() == candleExchange {
			candleGuard = g
		}
		guards = append(guards, g)
	}
	if candleGuard == nil {
		candleGuard = exchange.NewGuard(candleSource, guardCfg, a.Breakers, a.Metrics, logger)
	}
	a.Registry = exchange.NewRegistry(guards...)

	candles := exchange.NewCachedCandles(candleGuard.Candles(candleSource), store, a.Metrics, logger)

	var liquidations exchange.LiquidationSource
	switch {
	case cfg.ExchangesConfig.MockMode:
		if mv, ok := candleSource.(*exchange.MockVenue); ok {
			liquidations = mv
		}
	case cfg.ExchangesConfig.LiquidationStream:
		a.Stream = binance.NewLiquidationStream(cfg.ExchangesConfig.FuturesStreamURL, a.Bus, logger)
		liquidations = a.Stream
	}

	ictCfg := cfg.ICTConfig
	a.ICT = confluence.NewService(candles, ict.NewAnalyzer(ict.Config{
		MinCandles:    ictCfg.MinCandles,
		MinConfidence: ictCfg.MinConfidence,
		MinRiskReward: ictCfg.MinRiskReward,
		ATRPeriod:     ictCfg.ATRPeriod,
	}), store, a.Metrics, a.Bus, logger)
	a.ICT.SetLimits(ictCfg.CandleLimit, seconds(ictCfg.CacheTTLSeconds))

	sc := cfg.ScalpingConfig
	a.Sniper = scalping.NewService(candles, liquidations, scalping.NewDetector(scalping.Config{
		Interval:          sc.Interval,
		CandleLimit:       sc.CandleLimit,
		VolumeLookback:    sc.VolumeLookback,
		MinConfidence:     sc.MinConfidence,
		LiquidationWindow: sc.LiquidationWindowSeconds,
	}), a.Metrics, a.Bus, logger)

	quoters := make([]exchange.QuoteFetcher, len(guards))
	books := make([]exchange.OrderBookFetcher, len(guards))
	for i, g := range guards {
		quoters[i] = g
		books[i] = g
	}
	timeout := cfg.ExchangesConfig.Timeout()

	ac := cfg.ArbitrageConfig
	a.Arbitrage = arbitrage.NewScanner(arbitrage.Config{
		Exchanges:      a.Registry.Names(),
		Fees:           fees(ac.Fees),
		MinProfitPct:   ac.MinProfitPercent,
		MinVolume24h:   ac.MinVolume24h,
		MinConfidence:  ac.MinConfidence,
		TopN:           ac.TopN,
		CacheTTL:       seconds(ac.CacheTTLSeconds),
		CallTimeout:    timeout,
		DefaultSymbols: ac.DefaultSymbols,
	}, quoters, store, a.Metrics, a.Bus, logger)

	lc := cfg.LiquidityConfig
	a.Liquidity = liquidity.NewAggregator(liquidity.Config{
		Exchanges:           a.Registry.Names(),
		Depth:               lc.Depth,
		DisplayLevels:       lc.DisplayLevels,
		ClusterThresholdPct: lc.ClusterThresholdPct,
		MaxClusters:         lc.MaxClusters,
		PriceDecimals:       lc.PriceDecimals,
		CacheTTL:            seconds(lc.CacheTTLSeconds),
		CallTimeout:         timeout,
	}, books, store, a.Metrics, a.Bus, logger)

	logger.Info().
		Strs("exchanges", a.Registry.Names()).
		Bool("mock_mode", cfg.ExchangesConfig.MockMode).
		Bool("redis", a.Redis != nil).
		Bool("liquidation_stream", a.Stream != nil).
		Msg("Analytics services initialized")
	return a, nil
}

// Start launches the background work: the liquidation stream and the periodic
// arbitrage scan that feeds /ws/arbitrage. Both stop when ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	if a.Stream != nil {
		a.Stream.Start(ctx)
	}
	if interval := seconds(a.Config.ArbitrageConfig.ScanInterval); interval > 0 {
		go a.scanLoop(ctx, interval)
	}
}

func (a *App) scanLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Arbitrage.Scan(ctx, nil); err != nil && ctx.Err() == nil {
				a.logger.Warn().Err(err).Msg("Background arbitrage scan failed")
			}
		}
	}
}

// Close stops the stream and releases Redis.
func (a *App) Close() error {
	if a.Stream != nil {
		a.Stream.Stop()
	}
	if a.Redis != nil {
		return a.Redis.Close()
	}
	return nil
}

// buildVenues creates the raw adapters for the enabled exchanges plus the candle source.
func buildVenues(cfg config.ExchangesConfig) ([]exchange.Venue, candleVenue, error) {
	var out []exchange.Venue
	var candles candleVenue
	timeout := cfg.Timeout()

	for _, name := range cfg.Enabled {
		name = strings.ToLower(strings.TrimSpace(name))
		switch {
		case cfg.MockMode:
			mv := exchange.NewMockVenue(name, mockSkews[name])
			if name == candleExchange {
				candles = mv
			}
			out = append(out, mv)
		case name == candleExchange:
			c := binance.NewClient(cfg.BaseURLs[name], timeout)
			candles = c
			out = append(out, c)
		default:
			c, err := venues.New(name, cfg.BaseURLs[name], timeout)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, c)
		}
	}

	if candles == nil {
		if cfg.MockMode {
			candles = exchange.NewMockVenue(candleExchange, 0)
		} else {
			candles = binance.NewClient(cfg.BaseURLs[candleExchange], timeout)
		}
	}
	return out, candles, nil
}

func breakerConfig(c config.CircuitBreakerConfig) *circuit.Config {
	return &circuit.Config{
		Enabled:             c.Enabled,
		ConsecutiveFailures: uint32(c.ConsecutiveFailures),
		FailureRatio:        c.FailureRatio,
		MinRequests:         uint32(c.MinRequests),
		HalfOpenRequests:    uint32(c.HalfOpenRequests),
		IntervalSeconds:     c.IntervalSeconds,
		CooldownSeconds:     c.CooldownSeconds,
	}
}

func fees(in map[string]config.FeeConfig) map[string]arbitrage.FeeSchedule {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]arbitrage.FeeSchedule, len(in))
	for name, f := range in {
		out[strings.ToLower(name)] = arbitrage.FeeSchedule{Maker: f.Maker, Taker: f.Taker, Withdrawal: f.Withdrawal}
	}
	return out
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

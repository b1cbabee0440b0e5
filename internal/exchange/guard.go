package exchange

import (
	"context"
	"fmt"
	"time"

	"market-analytics/internal/circuit"
	"market-analytics/internal/logging"
	"market-analytics/internal/market"
	"market-analytics/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// GuardConfig bounds the request rate of one venue.
type GuardConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Guard wraps a venue with a rate limiter, a circuit breaker and fetch metrics.
// It is itself a Venue, so callers cannot tell it apart from the raw adapter.
type Guard struct {
	venue    Venue
	breakers *circuit.Manager
	limiter  *rate.Limiter
	metrics  *metrics.Registry
	logger   zerolog.Logger
}

// NewGuard wraps venue. A zero RequestsPerSecond disables rate limiting; a nil
// breaker manager or metrics registry is allowed.
func NewGuard(venue Venue, cfg GuardConfig, breakers *circuit.Manager, m *metrics.Registry, logger zerolog.Logger) *Guard {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Guard{
		venue:    venue,
		breakers: breakers,
		limiter:  rate.NewLimiter(limit, burst),
		metrics:  m,
		logger:   logger.With().Str("component", "exchange").Str("exchange", venue.Name()).Logger(),
	}
}

func (g *Guard) Name() string {
	return g.venue.Name()
}

// FetchQuote fetches a quote through the guard.
func (g *Guard) FetchQuote(ctx context.Context, symbol string) (*market.ExchangeQuote, error) {
	return guarded(ctx, g, "quote", symbol, func(ctx context.Context) (*market.ExchangeQuote, error) {
		return g.venue.FetchQuote(ctx, symbol)
	})
}

// FetchOrderBook fetches a depth snapshot through the guard.
func (g *Guard) FetchOrderBook(ctx context.Context, symbol string, depth int) (*market.RawOrderBook, error) {
	return guarded(ctx, g, "orderbook", symbol, func(ctx context.Context) (*market.RawOrderBook, error) {
		return g.venue.FetchOrderBook(ctx, symbol, depth)
	})
}

func guarded[T any](ctx context.Context, g *Guard, op, symbol string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	started := time.Now()

	if err := g.limiter.Wait(ctx); err != nil {
		err = fmt.Errorf("%s rate limit wait: %w", g.Name(), err)
		g.metrics.ObserveFetch(g.Name(), op, started, err)
		return zero, err
	}

	var (
		out interface{}
		err error
	)
	if g.breakers != nil {
		out, err = g.breakers.Execute(g.Name(), func() (interface{}, error) {
			return fn(ctx)
		})
	} else {
		out, err = fn(ctx)
	}
	g.metrics.ObserveFetch(g.Name(), op, started, err)

	if err != nil {
		if circuit.IsOpen(err) {
			l := logging.ExchangeContext(g.logger, g.Name(), op, symbol)
			l.Debug().Msg("Circuit open, skipping venue")
		}
		return zero, fmt.Errorf("%s %s %s: %w", g.Name(), op, symbol, err)
	}
	v, _ := out.(T)
	return v, nil
}

// Candles routes a candle source for the same venue through the guard's limiter and
// breaker.
func (g *Guard) Candles(source CandleSource) CandleSource {
	return guardedCandles{g: g, source: source}
}

type guardedCandles struct {
	g      *Guard
	source CandleSource
}

func (c guardedCandles) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	return guarded(ctx, c.g, "candles", symbol, func(ctx context.Context) ([]market.Candle, error) {
		return c.source.GetCandles(ctx, symbol, interval, limit)
	})
}

package exchange

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"market-analytics/internal/cache"
	"market-analytics/internal/circuit"
	"market-analytics/internal/market"
	"market-analytics/internal/metrics"

	"github.com/rs/zerolog"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

// TestRegistryNamesSorted tests that the registry indexes venues by name
func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry(NewMockVenue("okx", 0), NewMockVenue("binance", 0), NewMockVenue("bybit", 0))

	names := r.Names()
	want := []string{"binance", "bybit", "okx"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, names[i])
		}
	}
	if _, err := r.Get("kraken"); !errors.Is(err, ErrUnknownExchange) {
		t.Errorf("Expected ErrUnknownExchange, got %v", err)
	}
	if got := len(r.Subset([]string{"okx", "kraken"})); got != 1 {
		t.Errorf("Expected 1 venue in subset, got %d", got)
	}
	if got := len(r.Subset(nil)); got != 3 {
		t.Errorf("Expected empty subset to select all 3 venues, got %d", got)
	}
}

// TestFanOutIsolatesFailures tests that one failing venue does not cancel the others
func TestFanOutIsolatesFailures(t *testing.T) {
	bad := NewMockVenue("bad", 0)
	bad.FailWith("BTCUSDT", errors.New("boom"))
	venues := []QuoteFetcher{NewMockVenue("a", 0), bad, NewMockVenue("c", 0.01)}

	results := FanOut(context.Background(), FanOutOptions{MaxConcurrency: 2}, venues, QuoteName,
		func(ctx context.Context, q QuoteFetcher) (*market.ExchangeQuote, error) {
			return q.FetchQuote(ctx, "BTCUSDT")
		})

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].Exchange != "a" || results[1].Exchange != "bad" || results[2].Exchange != "c" {
		t.Errorf("Expected results in venue order, got %s,%s,%s", results[0].Exchange, results[1].Exchange, results[2].Exchange)
	}

	ok, failed := Successes(results)
	if len(ok) != 2 {
		t.Errorf("Expected 2 successes, got %d", len(ok))
	}
	if len(failed) != 1 || failed[0].Exchange != "bad" {
		t.Errorf("Expected bad venue to fail, got %+v", failed)
	}
}

// TestFanOutCallTimeout tests that a slow venue is cut off by the per-call timeout
func TestFanOutCallTimeout(t *testing.T) {
	results := FanOut(context.Background(), FanOutOptions{CallTimeout: 20 * time.Millisecond}, []string{"slow", "fast"},
		func(s string) string { return s },
		func(ctx context.Context, s string) (int, error) {
			if s == "slow" {
				<-ctx.Done()
				return 0, ctx.Err()
			}
			return 1, nil
		})

	if !errors.Is(results[0].Err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded for slow venue, got %v", results[0].Err)
	}
	if results[1].Err != nil || results[1].Value != 1 {
		t.Errorf("Expected fast venue to succeed, got %+v", results[1])
	}
}

// TestGuardOpensBreaker tests that repeated failures trip the breaker and skip the venue
func TestGuardOpensBreaker(t *testing.T) {
	cfg := circuit.DefaultConfig()
	cfg.ConsecutiveFailures = 2
	cfg.CooldownSeconds = 60
	breakers := circuit.NewManager(cfg, zerolog.Nop())

	venue := &countingVenue{MockVenue: NewMockVenue("flaky", 0), err: errors.New("503")}
	g := NewGuard(venue, GuardConfig{}, breakers, metrics.NewRegistry("test"), zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := g.FetchQuote(context.Background(), "BTCUSDT"); err == nil {
			t.Fatal("Expected error from failing venue")
		}
	}

	_, err := g.FetchQuote(context.Background(), "BTCUSDT")
	if !circuit.IsOpen(err) {
		t.Errorf("Expected open circuit error, got %v", err)
	}
	if got := atomic.LoadInt32(&venue.calls); got != 2 {
		t.Errorf("Expected venue to be called 2 times, got %d", got)
	}
	if breakers.State("flaky") != circuit.StateOpen {
		t.Errorf("Expected breaker open, got %s", breakers.State("flaky"))
	}
}

// TestGuardPassesThrough tests that a healthy venue is served unchanged
func TestGuardPassesThrough(t *testing.T) {
	g := NewGuard(NewMockVenue("binance", 0).WithClock(fixedNow), GuardConfig{RequestsPerSecond: 100, Burst: 10}, nil, nil, zerolog.Nop())

	q, err := g.FetchQuote(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if q.Exchange != "binance" || q.Bid >= q.Ask {
		t.Errorf("Expected a binance quote with bid < ask, got %+v", q)
	}

	book, err := g.FetchOrderBook(context.Background(), "ETHUSDT", 20)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(book.Bids) != 20 || len(book.Asks) != 20 {
		t.Errorf("Expected 20 levels per side, got %d/%d", len(book.Bids), len(book.Asks))
	}
}

// TestGuardCandles tests that candle fetches share the venue breaker
func TestGuardCandles(t *testing.T) {
	cfg := circuit.DefaultConfig()
	cfg.ConsecutiveFailures = 1
	breakers := circuit.NewManager(cfg, zerolog.Nop())

	mock := NewMockVenue("binance", 0).WithClock(fixedNow)
	g := NewGuard(mock, GuardConfig{}, breakers, nil, zerolog.Nop())
	candles := g.Candles(mock)

	got, err := candles.GetCandles(context.Background(), "BTCUSDT", "15m", 30)
	if err != nil || len(got) != 30 {
		t.Fatalf("Expected 30 candles, got %d, %v", len(got), err)
	}

	mock.FailWith("BTCUSDT", errors.New("418"))
	if _, err := candles.GetCandles(context.Background(), "BTCUSDT", "15m", 30); err == nil {
		t.Fatal("Expected the injected failure")
	}
	if _, err := g.FetchQuote(context.Background(), "ETHUSDT"); !circuit.IsOpen(err) {
		t.Errorf("Expected the quote path to see the open breaker, got %v", err)
	}
}

// TestMockCandlesDeterministic tests that the mock venue returns stable valid candles
func TestMockCandlesDeterministic(t *testing.T) {
	v := NewMockVenue("binance", 0).WithClock(fixedNow)

	a, err := v.GetCandles(context.Background(), "BTCUSDT", "1h", 100)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	b, _ := v.GetCandles(context.Background(), "BTCUSDT", "1h", 100)

	if err := market.ValidateCandles(a); err != nil {
		t.Errorf("Expected valid candles, got %v", err)
	}
	if a[99].Close != b[99].Close {
		t.Errorf("Expected identical series, got %f and %f", a[99].Close, b[99].Close)
	}
	if a[1].Timestamp-a[0].Timestamp != time.Hour.Milliseconds() {
		t.Errorf("Expected hourly spacing, got %d", a[1].Timestamp-a[0].Timestamp)
	}
}

// TestCachedCandlesReadThrough tests that the second fetch is served from the cache
func TestCachedCandlesReadThrough(t *testing.T) {
	src := &countingSource{venue: NewMockVenue("binance", 0).WithClock(fixedNow)}
	c := NewCachedCandles(src, newMapStore(), nil, zerolog.Nop())

	for i := 0; i < 2; i++ {
		candles, err := c.GetCandles(context.Background(), "BTCUSDT", "15m", 50)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(candles) != 50 {
			t.Errorf("Expected 50 candles, got %d", len(candles))
		}
	}
	if src.calls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", src.calls)
	}

	if _, err := c.GetCandles(context.Background(), "BTCUSDT", "2h", 50); err == nil {
		t.Error("Expected error for unsupported interval")
	}
}

type countingVenue struct {
	*MockVenue
	calls int32
	err   error
}

func (v *countingVenue) FetchQuote(ctx context.Context, symbol string) (*market.ExchangeQuote, error) {
	atomic.AddInt32(&v.calls, 1)
	return nil, v.err
}

type countingSource struct {
	venue *MockVenue
	calls int
}

func (s *countingSource) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	s.calls++
	return s.venue.GetCandles(ctx, symbol, interval, limit)
}

// mapStore is an in-memory cache.Store keeping raw JSON like Redis would.
type mapStore struct {
	inner map[string]interface{}
}

func newMapStore() *mapStore { return &mapStore{inner: map[string]interface{}{}} }

func (s *mapStore) GetJSON(_ context.Context, key string, dest interface{}) error {
	v, ok := s.inner[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *[]market.Candle:
		*d = v.([]market.Candle)
	}
	return nil
}

func (s *mapStore) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.inner[key] = value
	return nil
}

package exchange

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"market-analytics/internal/market"
)

// basePrices seeds the simulated venues with realistic levels.
var basePrices = map[string]float64{
	"BTCUSDT":  104500.00,
	"ETHUSDT":  3900.00,
	"BNBUSDT":  710.00,
	"SOLUSDT":  220.00,
	"XRPUSDT":  2.35,
	"ADAUSDT":  1.05,
	"DOGEUSDT": 0.40,
	"AVAXUSDT": 50.00,
	"LINKUSDT": 28.00,
	"LTCUSDT":  115.00,
}

// MockVenue simulates an exchange for development and tests. Output is
// deterministic for a given venue name, symbol and clock, so repeated calls agree.
type MockVenue struct {
	name   string
	skew   float64 // relative price offset of this venue
	now    func() time.Time
	mu     sync.RWMutex
	liqs   []market.LiquidationEvent
	failOn map[string]error
}

// NewMockVenue creates a simulated venue whose prices sit skew (e.g. 0.002 = 0.2%)
// above the reference price.
func NewMockVenue(name string, skew float64) *MockVenue {
	return &MockVenue{
		name:   name,
		skew:   skew,
		now:    time.Now,
		failOn: make(map[string]error),
	}
}

// WithClock pins the venue's clock; used by tests.
func (m *MockVenue) WithClock(now func() time.Time) *MockVenue {
	m.now = now
	return m
}

// FailWith makes every call for symbol return err.
func (m *MockVenue) FailWith(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[symbol] = err
}

func (m *MockVenue) Name() string {
	return m.name
}

func (m *MockVenue) failure(symbol string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failOn[symbol]
}

func (m *MockVenue) reference(symbol string) float64 {
	if p, ok := basePrices[symbol]; ok {
		return p
	}
	return 100.0
}

func (m *MockVenue) rng(parts ...string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(m.name))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// FetchQuote returns a quote around the reference price with a 0.02% spread.
func (m *MockVenue) FetchQuote(ctx context.Context, symbol string) (*market.ExchangeQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.failure(symbol); err != nil {
		return nil, err
	}

	mid := m.reference(symbol) * (1 + m.skew)
	half := mid * 0.0001
	r := m.rng(symbol, "volume")
	return &market.ExchangeQuote{
		Exchange:  m.name,
		Symbol:    symbol,
		Bid:       mid - half,
		Ask:       mid + half,
		Timestamp: m.now().UnixMilli(),
		Volume24h: mid * (1_000_000 + r.Float64()*10_000_000),
	}, nil
}

// FetchOrderBook returns depth levels stepping 0.01% away from the mid.
func (m *MockVenue) FetchOrderBook(ctx context.Context, symbol string, depth int) (*market.RawOrderBook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.failure(symbol); err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = 100
	}

	mid := m.reference(symbol) * (1 + m.skew)
	step := mid * 0.0001
	r := m.rng(symbol, "book")

	book := &market.RawOrderBook{
		Exchange: m.name,
		Symbol:   symbol,
		Bids:     make([]market.PriceLevel, depth),
		Asks:     make([]market.PriceLevel, depth),
	}
	for i := 0; i < depth; i++ {
		offset := step * float64(i+1)
		book.Bids[i] = market.PriceLevel{Price: mid - offset, Amount: 0.1 + r.Float64()*5}
		book.Asks[i] = market.PriceLevel{Price: mid + offset, Amount: 0.1 + r.Float64()*5}
	}
	return book, nil
}

// GetCandles returns a seeded random walk ending at the current interval.
func (m *MockVenue) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.failure(symbol); err != nil {
		return nil, err
	}

	if limit <= 0 {
		return nil, nil
	}

	step := intervalDuration(interval)
	end := m.now().Truncate(step)
	r := m.rng(symbol, interval, end.Format(time.RFC3339))

	candles := make([]market.Candle, limit)
	price := m.reference(symbol) * (1 + m.skew)
	const volatility = 0.01
	for i := 0; i < limit; i++ {
		open := price
		change := (r.Float64() - 0.5) * volatility * 2
		closePrice := open * (1 + change)
		high := math.Max(open, closePrice) * (1 + r.Float64()*volatility*0.5)
		low := math.Min(open, closePrice) * (1 - r.Float64()*volatility*0.5)

		candles[i] = market.Candle{
			Timestamp: end.Add(-time.Duration(limit-1-i) * step).UnixMilli(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    1000 + r.Float64()*5000,
		}
		price = closePrice
	}
	return candles, nil
}

// AddLiquidation records a simulated liquidation.
func (m *MockVenue) AddLiquidation(ev market.LiquidationEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liqs = append(m.liqs, ev)
}

// RecentLiquidations returns recorded liquidations of symbol inside the window.
func (m *MockVenue) RecentLiquidations(symbol string, window time.Duration) []market.LiquidationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := m.now().Add(-window).UnixMilli()
	var out []market.LiquidationEvent
	for _, ev := range m.liqs {
		if strings.EqualFold(ev.Symbol, symbol) && ev.Timestamp >= cutoff {
			out = append(out, ev)
		}
	}
	return out
}

func intervalDuration(interval string) time.Duration {
	switch interval {
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

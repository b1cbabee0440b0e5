package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"market-analytics/internal/analysis"
	"market-analytics/internal/cache"
	"market-analytics/internal/events"
	"market-analytics/internal/ict"
	"market-analytics/internal/market"

	"github.com/rs/zerolog"
)

func sig(dir market.Side, confidence float64) *market.Signal {
	return &market.Signal{Direction: dir, Confidence: confidence}
}

// TestScore tests the agreement score across timeframes
func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		signals map[analysis.Timeframe]*market.Signal
		want    float64
	}{
		{"none", map[analysis.Timeframe]*market.Signal{}, 0},
		{"all nil", map[analysis.Timeframe]*market.Signal{analysis.TF1h: nil, analysis.TF4h: nil}, 0},
		{"all agree", map[analysis.Timeframe]*market.Signal{
			analysis.TF15m: sig(market.Long, 65), analysis.TF1h: sig(market.Long, 65),
			analysis.TF4h: sig(market.Long, 65), analysis.TF1d: sig(market.Long, 65),
		}, 100},
		{"two two tie", map[analysis.Timeframe]*market.Signal{
			analysis.TF15m: sig(market.Long, 65), analysis.TF1h: sig(market.Short, 65),
			analysis.TF4h: sig(market.Long, 65), analysis.TF1d: sig(market.Short, 65),
		}, 50},
		{"three of four short", map[analysis.Timeframe]*market.Signal{
			analysis.TF15m: sig(market.Long, 65), analysis.TF1h: sig(market.Short, 65),
			analysis.TF4h: sig(market.Short, 65), analysis.TF1d: sig(market.Short, 65),
		}, 75},
		{"single signal", map[analysis.Timeframe]*market.Signal{analysis.TF1h: sig(market.Short, 65), analysis.TF4h: nil}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.signals); got != tt.want {
				t.Errorf("Expected score %f, got %f", tt.want, got)
			}
		})
	}
}

// TestBestSignalLadder tests that the slowest qualifying timeframe wins
func TestBestSignalLadder(t *testing.T) {
	daily := sig(market.Long, 71)
	hourly := sig(market.Long, 76)
	fast := sig(market.Short, 81)

	tests := []struct {
		name    string
		signals map[analysis.Timeframe]*market.Signal
		want    *market.Signal
	}{
		{"daily wins", map[analysis.Timeframe]*market.Signal{analysis.TF1d: daily, analysis.TF1h: hourly}, daily},
		{"daily at bar falls through", map[analysis.Timeframe]*market.Signal{analysis.TF1d: sig(market.Long, 70), analysis.TF1h: hourly}, hourly},
		{"hourly needs more than 75", map[analysis.Timeframe]*market.Signal{analysis.TF1h: sig(market.Long, 75), analysis.TF15m: fast}, fast},
		{"fast needs more than 80", map[analysis.Timeframe]*market.Signal{analysis.TF15m: sig(market.Long, 80)}, nil},
		{"nothing", map[analysis.Timeframe]*market.Signal{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BestSignal(tt.signals); got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

// TestFuseKeepsEveryTimeframe tests that missing timeframes are reported as nil
func TestFuseKeepsEveryTimeframe(t *testing.T) {
	got := Fuse("BTCUSDT", 42, map[analysis.Timeframe]*market.Signal{analysis.TF4h: sig(market.Long, 90)})

	if len(got.Signals) != 4 {
		t.Errorf("Expected 4 timeframe entries, got %d", len(got.Signals))
	}
	if got.Signals["1h"] != nil {
		t.Errorf("Expected nil 1h signal, got %+v", got.Signals["1h"])
	}
	if got.ConfluenceScore != 100 || got.BestSignal == nil || got.Timestamp != 42 {
		t.Errorf("Unexpected fused analysis %+v", got)
	}
}

// pullbackSource serves a rising series that pulls back into its last gap on every timeframe.
type pullbackSource struct {
	mu    sync.Mutex
	fail  map[string]bool
	bad   map[string]bool
	calls int
}

func (p *pullbackSource) GetCandles(_ context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	p.mu.Lock()
	failing, bad := p.fail[interval], p.bad[interval]
	p.mu.Unlock()
	if failing {
		return nil, errors.New("upstream down")
	}

	out := make([]market.Candle, 50)
	for i := range out {
		c := 100 + float64(i)
		out[i] = market.Candle{Timestamp: int64(i+1) * 900000, Open: c - 0.2, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 100}
	}
	out[49] = market.Candle{Timestamp: out[49].Timestamp, Open: 148, High: 148.5, Low: 146.6, Close: 147, Volume: 100}
	if bad {
		out[10].High = out[10].Low - 1
	}
	return out, nil
}

func (p *pullbackSource) recover() {
	p.mu.Lock()
	p.fail = nil
	p.mu.Unlock()
}

func (p *pullbackSource) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// jsonStore is an in-memory cache.Store
type jsonStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *jsonStore) GetJSON(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *jsonStore) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.data[key] = raw
	return nil
}

func (s *jsonStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// TestServiceAnalyze tests the full fetch, analyze and fuse pipeline
func TestServiceAnalyze(t *testing.T) {
	src := &pullbackSource{fail: map[string]bool{"1d": true}}
	bus := events.NewEventBus()
	var mu sync.Mutex
	published := 0
	done := make(chan struct{}, 4)
	bus.Subscribe(events.EventSignalGenerated, func(events.Event) {
		mu.Lock()
		published++
		mu.Unlock()
		done <- struct{}{}
	})

	svc := NewService(src, ict.NewAnalyzer(ict.DefaultConfig()), nil, nil, bus, zerolog.Nop())
	got, err := svc.Analyze(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got.Signals["1d"] != nil {
		t.Errorf("Expected no daily signal after fetch failure, got %+v", got.Signals["1d"])
	}
	for _, tf := range []string{"15m", "1h", "4h"} {
		if got.Signals[tf] == nil || got.Signals[tf].Direction != market.Long {
			t.Errorf("Expected a LONG signal on %s, got %+v", tf, got.Signals[tf])
		}
	}
	if got.ConfluenceScore != 100 {
		t.Errorf("Expected confluence 100, got %f", got.ConfluenceScore)
	}
	// Confidence 70 clears none of the ladder bars
	if got.BestSignal != nil {
		t.Errorf("Expected no best signal, got %+v", got.BestSignal)
	}

	for i := 0; i < 3; i++ {
		<-done
	}
	mu.Lock()
	if published != 3 {
		t.Errorf("Expected 3 published signals, got %d", published)
	}
	mu.Unlock()
}

// TestServiceSignalRejectsTimeframe tests single timeframe validation
func TestServiceSignalRejectsTimeframe(t *testing.T) {
	svc := NewService(&pullbackSource{}, ict.NewAnalyzer(ict.DefaultConfig()), nil, nil, nil, zerolog.Nop())

	if _, err := svc.Signal(context.Background(), "BTCUSDT", "3h"); !errors.Is(err, analysis.ErrUnsupportedTimeframe) {
		t.Errorf("Expected ErrUnsupportedTimeframe, got %v", err)
	}

	s, err := svc.Signal(context.Background(), "BTCUSDT", "1h")
	if err != nil || s == nil {
		t.Errorf("Expected a 1h signal, got %+v, %v", s, err)
	}
}

// TestServiceAnalyzeOutageNotCached tests that a failure on every timeframe is an error and is not cached
func TestServiceAnalyzeOutageNotCached(t *testing.T) {
	src := &pullbackSource{fail: map[string]bool{"15m": true, "1h": true, "4h": true, "1d": true}}
	store := &jsonStore{}
	svc := NewService(src, ict.NewAnalyzer(ict.DefaultConfig()), store, nil, nil, zerolog.Nop())

	if _, err := svc.Analyze(context.Background(), "BTCUSDT"); !errors.Is(err, ErrNoTimeframes) {
		t.Fatalf("Expected ErrNoTimeframes, got %v", err)
	}
	if store.size() != 0 {
		t.Errorf("Expected nothing cached, got %d entries", store.size())
	}

	src.recover()
	got, err := svc.Analyze(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Expected no error after recovery, got %v", err)
	}
	if got.Signals["15m"] == nil {
		t.Errorf("Expected a fresh 15m signal after recovery")
	}
	if src.callCount() != 8 {
		t.Errorf("Expected 8 candle fetches, got %d", src.callCount())
	}
}

// TestServiceAnalyzeCancelled tests that a cancelled request is an error and is not cached
func TestServiceAnalyzeCancelled(t *testing.T) {
	store := &jsonStore{}
	svc := NewService(&pullbackSource{}, ict.NewAnalyzer(ict.DefaultConfig()), store, nil, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Analyze(ctx, "BTCUSDT"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if store.size() != 0 {
		t.Errorf("Expected nothing cached, got %d entries", store.size())
	}
}

// TestServiceAnalyzeInvalidCandles tests that malformed candles on one timeframe surface as invalid input
func TestServiceAnalyzeInvalidCandles(t *testing.T) {
	src := &pullbackSource{bad: map[string]bool{"4h": true}}
	store := &jsonStore{}
	svc := NewService(src, ict.NewAnalyzer(ict.DefaultConfig()), store, nil, nil, zerolog.Nop())

	if _, err := svc.Analyze(context.Background(), "BTCUSDT"); !errors.Is(err, market.ErrInvalidCandles) {
		t.Errorf("Expected ErrInvalidCandles, got %v", err)
	}
	if store.size() != 0 {
		t.Errorf("Expected nothing cached, got %d entries", store.size())
	}
}

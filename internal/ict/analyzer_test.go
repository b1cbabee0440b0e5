package ict

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"market-analytics/internal/market"
)

// risingSeries builds n candles climbing one point per bar. Every three-bar window
// leaves a one point bullish gap.
func risingSeries(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = market.Candle{Timestamp: int64(i+1) * 900000, Open: c - 0.2, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 100}
	}
	return out
}

func fallingSeries(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		c := 200 - float64(i)
		out[i] = market.Candle{Timestamp: int64(i+1) * 900000, Open: c + 0.2, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 100}
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// TestAnalyzeTimeframeLongFromGap tests a pullback into an unfilled bullish gap
func TestAnalyzeTimeframeLongFromGap(t *testing.T) {
	candles := risingSeries(50)
	// Pull back into the [146.5, 147.5] gap without trading through it
	candles[49] = market.Candle{Timestamp: candles[49].Timestamp, Open: 148, High: 148.5, Low: 146.6, Close: 147, Volume: 100}

	sig, err := NewAnalyzer(DefaultConfig()).AnalyzeTimeframe("BTCUSDT", "15m", candles)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sig == nil {
		t.Fatal("Expected a signal, got nil")
	}

	if sig.Direction != market.Long || sig.Kind != market.KindFVGLong {
		t.Errorf("Expected LONG FVG_LONG, got %s %s", sig.Direction, sig.Kind)
	}
	if sig.Entry != 147 {
		t.Errorf("Expected entry 147, got %f", sig.Entry)
	}
	if !approx(sig.StopLoss, 146.5*0.995) {
		t.Errorf("Expected stop %f, got %f", 146.5*0.995, sig.StopLoss)
	}
	atr := (13*1.5 + 1.9) / 14
	if !approx(sig.TP1, 147+1.5*atr) || !approx(sig.TP2, 147+2.5*atr) || !approx(sig.TP3, 147+4*atr) {
		t.Errorf("Unexpected targets %f %f %f", sig.TP1, sig.TP2, sig.TP3)
	}
	if !approx(sig.RiskRewardRatio, 2.5*atr/(147-146.5*0.995)) {
		t.Errorf("Unexpected risk reward %f", sig.RiskRewardRatio)
	}
	// 50 base + 0.2 * gap strength 50 + 10 for the bullish trend
	if !approx(sig.Confidence, 70) {
		t.Errorf("Expected confidence 70, got %f", sig.Confidence)
	}
	if sig.Trend != market.TrendBullish {
		t.Errorf("Expected bullish trend, got %s", sig.Trend)
	}
	if len(sig.Evidence.Gaps) != 1 || sig.Evidence.Gaps[0].LowBound != 146.5 {
		t.Errorf("Expected the containing gap as evidence, got %+v", sig.Evidence.Gaps)
	}
	if len(sig.Evidence.Blocks) != 0 {
		t.Errorf("Expected no order block evidence, got %+v", sig.Evidence.Blocks)
	}
	if sig.Timestamp != candles[49].Timestamp {
		t.Errorf("Expected signal timestamp of the latest candle, got %d", sig.Timestamp)
	}
}

// TestAnalyzeTimeframeShortFromGap tests the bearish mirror
func TestAnalyzeTimeframeShortFromGap(t *testing.T) {
	candles := fallingSeries(50)
	// Bounce into the [152.5, 153.5] gap without trading through it
	candles[49] = market.Candle{Timestamp: candles[49].Timestamp, Open: 152, High: 153.4, Low: 151.5, Close: 153, Volume: 100}

	sig, err := NewAnalyzer(DefaultConfig()).AnalyzeTimeframe("ETHUSDT", "1h", candles)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sig == nil {
		t.Fatal("Expected a signal, got nil")
	}
	if sig.Direction != market.Short || sig.Kind != market.KindFVGShort {
		t.Errorf("Expected SHORT FVG_SHORT, got %s %s", sig.Direction, sig.Kind)
	}
	if !approx(sig.StopLoss, 153.5*1.005) {
		t.Errorf("Expected stop %f, got %f", 153.5*1.005, sig.StopLoss)
	}
	if sig.TP2 >= sig.Entry {
		t.Errorf("Expected short targets below entry, got tp2 %f", sig.TP2)
	}
	if !approx(sig.Confidence, 70) {
		t.Errorf("Expected confidence 70, got %f", sig.Confidence)
	}
}

// TestAnalyzeTimeframeNoSetup tests that price outside every zone yields no signal
func TestAnalyzeTimeframeNoSetup(t *testing.T) {
	sig, err := NewAnalyzer(DefaultConfig()).AnalyzeTimeframe("BTCUSDT", "15m", risingSeries(60))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sig != nil {
		t.Errorf("Expected no signal, got %+v", sig)
	}
}

// TestAnalyzeTimeframeInsufficientCandles tests the 50 candle minimum
func TestAnalyzeTimeframeInsufficientCandles(t *testing.T) {
	candles := risingSeries(49)
	sig, err := NewAnalyzer(DefaultConfig()).AnalyzeTimeframe("BTCUSDT", "15m", candles)
	if err != nil || sig != nil {
		t.Errorf("Expected nil, nil; got %v, %v", sig, err)
	}

	sig, err = NewAnalyzer(DefaultConfig()).AnalyzeTimeframe("BTCUSDT", "15m", nil)
	if err != nil || sig != nil {
		t.Errorf("Expected nil, nil for empty input; got %v, %v", sig, err)
	}
}

// TestAnalyzeTimeframeInvalidInput tests that malformed candles are an error, not "no signal"
func TestAnalyzeTimeframeInvalidInput(t *testing.T) {
	candles := risingSeries(60)
	candles[10].High = math.NaN()

	_, err := NewAnalyzer(DefaultConfig()).AnalyzeTimeframe("BTCUSDT", "15m", candles)
	if !errors.Is(err, market.ErrInvalidCandles) {
		t.Errorf("Expected ErrInvalidCandles, got %v", err)
	}
}

// TestAnalyzeTimeframeIsIdempotent tests that identical input gives identical output
func TestAnalyzeTimeframeIsIdempotent(t *testing.T) {
	candles := risingSeries(50)
	candles[49] = market.Candle{Timestamp: candles[49].Timestamp, Open: 148, High: 148.5, Low: 146.6, Close: 147, Volume: 100}

	a := NewAnalyzer(Config{})
	first, _ := a.AnalyzeTimeframe("BTCUSDT", "15m", candles)
	second, _ := a.AnalyzeTimeframe("BTCUSDT", "15m", candles)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical signals, got %+v and %+v", first, second)
	}
}

package analysis

import (
	"testing"

	"market-analytics/internal/market"
)

func series(n int, closeAt func(i int) float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		c := closeAt(i)
		out[i] = candle(int64(i+1)*60000, c, c+0.5, c-0.5, c, 10)
	}
	return out
}

// TestDetermineTrend tests SMA based trend classification
func TestDetermineTrend(t *testing.T) {
	tests := []struct {
		name    string
		candles []market.Candle
		want    market.Trend
	}{
		{"empty window", nil, market.TrendRanging},
		{"19 candles", series(19, func(i int) float64 { return 100 + float64(i) }), market.TrendRanging},
		{"rising", series(60, func(i int) float64 { return 100 + float64(i) }), market.TrendBullish},
		{"falling", series(60, func(i int) float64 { return 200 - float64(i) }), market.TrendBearish},
		{"flat", series(60, func(i int) float64 { return 100 }), market.TrendRanging},
		{"rising short history", series(30, func(i int) float64 { return 100 + float64(i) }), market.TrendBullish},
		{"falling short history", series(30, func(i int) float64 { return 129 - float64(i) }), market.TrendRanging},
		{"falling 40 candles", series(40, func(i int) float64 { return 139 - float64(i) }), market.TrendRanging},
		{"falling 50 candles", series(50, func(i int) float64 { return 149 - float64(i) }), market.TrendBearish},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineTrend(tt.candles); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestFindSwingPointsRequiresStrictExtremes tests that equal neighbours disqualify a swing
func TestFindSwingPointsRequiresStrictExtremes(t *testing.T) {
	candles := series(11, func(i int) float64 { return 100 })
	candles[5].High = 110

	highs, lows := FindSwingPoints(candles, 5)
	if len(highs) != 1 || highs[0].CandleIndex != 5 || highs[0].Price != 110 {
		t.Errorf("Expected one swing high at index 5, got %+v", highs)
	}
	if len(lows) != 0 {
		t.Errorf("Expected no swing lows on equal lows, got %+v", lows)
	}
}

// TestAverageTrueRange tests true range against the previous close
func TestAverageTrueRange(t *testing.T) {
	candles := []market.Candle{
		candle(1, 9, 10, 8, 9, 1),
		candle(2, 9, 12, 9, 11, 1),     // TR 3
		candle(3, 11, 11.5, 10, 11, 1), // TR 1.5
	}

	if got := AverageTrueRange(candles, 2); !approx(got, 2.25) {
		t.Errorf("Expected ATR(2) 2.25, got %f", got)
	}
	if got := AverageTrueRange(candles, 14); !approx(got, 6.5/3) {
		t.Errorf("Expected ATR over all candles %f, got %f", 6.5/3, got)
	}
	if got := Volatility(candles); got != 0 {
		t.Errorf("Expected zero volatility below 14 candles, got %f", got)
	}
}

// TestDetectLiquidityZones tests swing high zone with volume bonus
func TestDetectLiquidityZones(t *testing.T) {
	candles := series(11, func(i int) float64 { return 100 })
	candles[5].High = 110
	candles[5].Volume = 50

	zones := DetectLiquidityZones(candles)
	if len(zones) != 1 {
		t.Fatalf("Expected 1 zone, got %d", len(zones))
	}
	if zones[0].Side != market.SellSide || zones[0].Price != 110 {
		t.Errorf("Expected sell side zone at 110, got %+v", zones[0])
	}
	if zones[0].Strength != 80 {
		t.Errorf("Expected strength 80, got %f", zones[0].Strength)
	}

	if zones := DetectLiquidityZones(candles[:9]); zones != nil {
		t.Errorf("Expected nil below 10 candles, got %v", zones)
	}
}

// TestDetectStructureShiftBOS tests a break of structure with no prior trend
func TestDetectStructureShiftBOS(t *testing.T) {
	candles := series(25, func(i int) float64 { return 100 })
	candles[10].High = 105
	candles[24] = candle(candles[24].Timestamp, 104, 107, 104, 106, 10)

	shifts := DetectStructureShifts(candles)
	if len(shifts) != 1 {
		t.Fatalf("Expected 1 shift, got %d", len(shifts))
	}
	s := shifts[0]
	if s.Kind != market.BullishBOS {
		t.Errorf("Expected bullish BOS, got %s", s.Kind)
	}
	if s.Price != 105 || s.ReferenceHigh == nil || *s.ReferenceHigh != 105 {
		t.Errorf("Expected reference high 105, got %+v", s)
	}
	if !approx(s.Strength, 1.0/105.0*500) {
		t.Errorf("Expected strength %f, got %f", 1.0/105.0*500, s.Strength)
	}
	if s.Timestamp != candles[24].Timestamp {
		t.Errorf("Expected latest timestamp, got %d", s.Timestamp)
	}
}

// TestDetectStructureShiftCHOCH tests a bullish break after a downtrend
func TestDetectStructureShiftCHOCH(t *testing.T) {
	candles := series(70, func(i int) float64 {
		if i < 60 {
			return 160 - float64(i)
		}
		return 101
	})
	candles[63].High = 104
	candles[69] = candle(candles[69].Timestamp, 101, 105.5, 100.8, 105, 10)

	shifts := DetectStructureShifts(candles)
	if len(shifts) != 1 {
		t.Fatalf("Expected 1 shift, got %d", len(shifts))
	}
	if shifts[0].Kind != market.BullishCHOCH {
		t.Errorf("Expected bullish CHOCH, got %s", shifts[0].Kind)
	}
}

// TestDetectStructureShiftBearishBOS tests the swing low mirror
func TestDetectStructureShiftBearishBOS(t *testing.T) {
	candles := series(25, func(i int) float64 { return 100 })
	candles[10].Low = 95
	candles[24] = candle(candles[24].Timestamp, 96, 96, 93, 94, 10)

	shifts := DetectStructureShifts(candles)
	if len(shifts) != 1 || shifts[0].Kind != market.BearishBOS {
		t.Fatalf("Expected one bearish BOS, got %+v", shifts)
	}
	if shifts[0].ReferenceLow == nil || *shifts[0].ReferenceLow != 95 {
		t.Errorf("Expected reference low 95, got %+v", shifts[0])
	}
}

// TestVolumeAnalyzerSpikeRatio tests trailing average and spike ratio
func TestVolumeAnalyzerSpikeRatio(t *testing.T) {
	candles := series(21, func(i int) float64 { return 100 })
	candles[20].Volume = 30

	va := NewVolumeAnalyzer(20)
	if got := va.SpikeRatio(candles, 20); !approx(got, 3) {
		t.Errorf("Expected ratio 3, got %f", got)
	}
	if got := va.SpikeRatio(candles, 19); got != 0 {
		t.Errorf("Expected 0 with incomplete trailing window, got %f", got)
	}
}

package analysis

import (
	"math"

	"market-analytics/internal/market"
)

// DetectStructureShifts checks whether the latest close broke the most recent swing
// high or swing low. A break against the trend of the earlier candles (all but the
// last 10) is a change of character, otherwise a break of structure.
func DetectStructureShifts(candles []market.Candle) []market.MarketStructureShift {
	n := len(candles)
	if n < 20 {
		return nil
	}

	highs, lows := FindSwingPoints(candles, zoneLookback)
	latest := candles[n-1]
	prior := DetermineTrend(candles[:n-10])

	var shifts []market.MarketStructureShift

	if len(highs) > 0 {
		ref := highs[len(highs)-1].Price
		if latest.Close > ref {
			kind := market.BullishBOS
			if prior == market.TrendBearish {
				kind = market.BullishCHOCH
			}
			shifts = append(shifts, market.MarketStructureShift{
				Kind:          kind,
				Timestamp:     latest.Timestamp,
				Price:         ref,
				Strength:      math.Min(100, (latest.Close-ref)/ref*500),
				ReferenceHigh: &ref,
			})
		}
	}

	if len(lows) > 0 {
		ref := lows[len(lows)-1].Price
		if latest.Close < ref {
			kind := market.BearishBOS
			if prior == market.TrendBullish {
				kind = market.BearishCHOCH
			}
			shifts = append(shifts, market.MarketStructureShift{
				Kind:         kind,
				Timestamp:    latest.Timestamp,
				Price:        ref,
				Strength:     math.Min(100, (ref-latest.Close)/ref*500),
				ReferenceLow: &ref,
			})
		}
	}

	return shifts
}

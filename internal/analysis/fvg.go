package analysis

import (
	"math"

	"market-analytics/internal/market"
)

// DetectFairValueGaps scans every three candle window and returns the gaps that price
// has not yet traded back through. Output order follows the first candle of each window.
func DetectFairValueGaps(candles []market.Candle) []market.FairValueGap {
	if len(candles) < 3 {
		return nil
	}

	var gaps []market.FairValueGap

	for i := 0; i+2 < len(candles); i++ {
		c1 := candles[i]
		c2 := candles[i+1] // Middle candle (gap creator)
		c3 := candles[i+2]

		avgRange := (c1.Range() + c2.Range() + c3.Range()) / 3

		// Bullish: c1.High < c3.Low
		if c3.Low > c1.High {
			gap := market.FairValueGap{
				Direction: market.Bullish,
				LowBound:  c1.High,
				HighBound: c3.Low,
				StartTime: c1.Timestamp,
				EndTime:   c3.Timestamp,
				Strength:  gapStrength(c3.Low-c1.High, avgRange),
			}
			gap.Filled = isGapFilled(gap, candles[i+3:])
			if !gap.Filled {
				gaps = append(gaps, gap)
			}
		}

		// Bearish: c1.Low > c3.High
		if c3.High < c1.Low {
			gap := market.FairValueGap{
				Direction: market.Bearish,
				LowBound:  c3.High,
				HighBound: c1.Low,
				StartTime: c1.Timestamp,
				EndTime:   c3.Timestamp,
				Strength:  gapStrength(c1.Low-c3.High, avgRange),
			}
			gap.Filled = isGapFilled(gap, candles[i+3:])
			if !gap.Filled {
				gaps = append(gaps, gap)
			}
		}
	}

	return gaps
}

// isGapFilled reports whether any candle after the gap traded fully through it.
// A bullish gap fills when price comes back down to its lower bound, a bearish
// gap when price comes back up to its upper bound.
func isGapFilled(gap market.FairValueGap, after []market.Candle) bool {
	for _, c := range after {
		if gap.Direction == market.Bullish && c.Low <= gap.LowBound {
			return true
		}
		if gap.Direction == market.Bearish && c.High >= gap.HighBound {
			return true
		}
	}
	return false
}

func gapStrength(size, avgRange float64) float64 {
	if avgRange <= 0 {
		return 0
	}
	return math.Min(100, size/avgRange*50)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

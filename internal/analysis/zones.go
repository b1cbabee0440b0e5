package analysis

import (
	"math"

	"market-analytics/internal/market"
)

const zoneLookback = 5

// DetectLiquidityZones marks strict swing highs as sell-side liquidity and strict swing
// lows as buy-side liquidity. Zones on above-average volume get a strength bonus.
func DetectLiquidityZones(candles []market.Candle) []market.LiquidityZone {
	if len(candles) < 10 {
		return nil
	}

	highs, lows := FindSwingPoints(candles, zoneLookback)
	volume := NewVolumeAnalyzer(10)

	var zones []market.LiquidityZone
	// Swing highs and lows are merged back in candle order so the output is stable.
	hi, lo := 0, 0
	for hi < len(highs) || lo < len(lows) {
		if lo >= len(lows) || (hi < len(highs) && highs[hi].CandleIndex <= lows[lo].CandleIndex) {
			zones = append(zones, newZone(market.SellSide, highs[hi], candles, volume))
			hi++
			continue
		}
		zones = append(zones, newZone(market.BuySide, lows[lo], candles, volume))
		lo++
	}

	return zones
}

func newZone(side market.LiquiditySide, p SwingPoint, candles []market.Candle, volume *VolumeAnalyzer) market.LiquidityZone {
	c := candles[p.CandleIndex]
	strength := 50.0
	if c.Volume > volume.TrailingAverage(candles, p.CandleIndex) {
		strength += 30
	}
	return market.LiquidityZone{
		Side:      side,
		Price:     p.Price,
		Strength:  math.Min(100, strength),
		Timestamp: c.Timestamp,
	}
}

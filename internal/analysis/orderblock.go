package analysis

import (
	"math"

	"market-analytics/internal/market"
)

// DetectOrderBlocks finds the last opposite-bodied candle before three consecutive
// closes that break away from it.
//
// Bullish block: a bearish candle whose next close is above its high, followed by two
// more higher closes. Bearish block: the mirror image. Needs at least 5 candles.
func DetectOrderBlocks(candles []market.Candle) []market.OrderBlock {
	if len(candles) < 5 {
		return nil
	}

	var blocks []market.OrderBlock

	for i := 1; i+3 < len(candles); i++ {
		prev := candles[i-1]
		c := candles[i]
		next1, next2, next3 := candles[i+1], candles[i+2], candles[i+3]

		volumeBonus := 0.0
		if c.Volume > prev.Volume*1.2 {
			volumeBonus = 20
		}

		if c.IsBearish() && next1.Close > c.High && next2.Close > next1.Close && next3.Close > next2.Close {
			move := (next3.Close - c.Low) / c.Low * 100
			blocks = append(blocks, newOrderBlock(market.Bullish, c, math.Min(100, move*10+volumeBonus)))
		}

		if c.IsBullish() && next1.Close < c.Low && next2.Close < next1.Close && next3.Close < next2.Close {
			move := (c.High - next3.Close) / c.High * 100
			blocks = append(blocks, newOrderBlock(market.Bearish, c, math.Min(100, move*10+volumeBonus)))
		}
	}

	return blocks
}

func newOrderBlock(dir market.Direction, c market.Candle, strength float64) market.OrderBlock {
	return market.OrderBlock{
		Direction: dir,
		Price:     (c.High + c.Low) / 2,
		High:      c.High,
		Low:       c.Low,
		Timestamp: c.Timestamp,
		Volume:    c.Volume,
		Strength:  strength,
	}
}

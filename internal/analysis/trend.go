package analysis

import (
	"math"

	"market-analytics/internal/market"
)

// SwingPoint represents a significant price level
type SwingPoint struct {
	Price       float64
	CandleIndex int
	Type        string // "high" or "low"
}

// FindSwingPoints returns the strict swing highs and lows of the series. A swing high
// is strictly higher than the `lookback` candles on each side, a swing low strictly lower.
func FindSwingPoints(candles []market.Candle, lookback int) (highs, lows []SwingPoint) {
	if lookback <= 0 {
		lookback = 5 // Default 5-candle swing
	}

	for i := lookback; i < len(candles)-lookback; i++ {
		isHigh, isLow := true, true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}

		if isHigh {
			highs = append(highs, SwingPoint{Price: candles[i].High, CandleIndex: i, Type: "high"})
		}
		if isLow {
			lows = append(lows, SwingPoint{Price: candles[i].Low, CandleIndex: i, Type: "low"})
		}
	}

	return highs, lows
}

// DetermineTrend classifies the series with a 20 and 50 period simple moving average.
// Fewer than 20 candles is always ranging. The slow average always divides by 50, so a
// history shorter than 50 candles pulls it toward zero.
func DetermineTrend(candles []market.Candle) market.Trend {
	n := len(candles)
	if n < 20 {
		return market.TrendRanging
	}

	sma20 := SMA(candles, 20)
	sma50 := SMA(candles, 50)
	if n < 50 {
		sma50 = sma50 * float64(n) / 50
	}
	price := candles[n-1].Close

	if price > sma20 && sma20 > sma50 {
		return market.TrendBullish
	}
	if price < sma20 && sma20 < sma50 {
		return market.TrendBearish
	}
	return market.TrendRanging
}

// SMA is the mean close of the last min(period, len) candles.
func SMA(candles []market.Candle, period int) float64 {
	n := len(candles)
	if n == 0 || period <= 0 {
		return 0
	}
	if period > n {
		period = n
	}

	sum := 0.0
	for _, c := range candles[n-period:] {
		sum += c.Close
	}
	return sum / float64(period)
}

// AverageTrueRange averages the true range of the last `period` candles. The first
// candle of the series has no previous close, so its true range is its high-low range.
func AverageTrueRange(candles []market.Candle, period int) float64 {
	n := len(candles)
	if n == 0 || period <= 0 {
		return 0
	}
	if period > n {
		period = n
	}

	sum := 0.0
	for i := n - period; i < n; i++ {
		c := candles[i]
		tr := c.Range()
		if i > 0 {
			prevClose := candles[i-1].Close
			tr = math.Max(tr, math.Max(abs(c.High-prevClose), abs(c.Low-prevClose)))
		}
		sum += tr
	}
	return sum / float64(period)
}

// Volatility is ATR(14) as a percentage of the latest close. Zero below 14 candles.
func Volatility(candles []market.Candle) float64 {
	n := len(candles)
	if n < 14 {
		return 0
	}
	return AverageTrueRange(candles, 14) / candles[n-1].Close * 100
}

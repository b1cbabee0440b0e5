package scalping

import (
	"market-analytics/internal/analysis"
	"market-analytics/internal/market"

	"github.com/shopspring/decimal"
)

const (
	spikeThreshold = 2.0
	pumpWindow     = 30
	pumpRecent     = 10
	cascadeMin     = 5
)

var (
	pct1   = decimal.NewFromInt(1)
	pct2   = decimal.NewFromInt(2)
	pct3   = decimal.NewFromInt(3)
	pct5   = decimal.NewFromInt(5)
	pct10  = decimal.NewFromInt(10)
	pct100 = decimal.NewFromInt(100)
)

// percentChange is (to-from)/from*100 in decimal, so 0.5 -> 0.515 is exactly 3.
func percentChange(from, to float64) decimal.Decimal {
	f := decimal.NewFromFloat(from)
	return decimal.NewFromFloat(to).Sub(f).Div(f).Mul(pct100)
}

// DetectVolumeSpikes returns every candle whose volume is at least twice the average
// of the lookback candles before it. Needs lookback+1 candles.
func DetectVolumeSpikes(candles []market.Candle, lookback int) []market.VolumeSpike {
	if lookback <= 0 {
		lookback = 20
	}
	if len(candles) < lookback+1 {
		return nil
	}

	va := analysis.NewVolumeAnalyzer(lookback)
	var spikes []market.VolumeSpike
	for i := lookback; i < len(candles); i++ {
		ratio := va.SpikeRatio(candles, i)
		if ratio < spikeThreshold {
			continue
		}
		c := candles[i]
		spikes = append(spikes, market.VolumeSpike{
			Timestamp:   c.Timestamp,
			Volume:      c.Volume,
			AvgVolume:   va.TrailingAverage(candles, i),
			SpikeRatio:  ratio,
			PriceChange: (c.Close - c.Open) / c.Open * 100,
		})
	}
	return spikes
}

// DetectPumpDump looks at the last 30 candles for a pump still near its peak or a
// dump that has come off it. The thresholds are strict and compared in decimal: a
// rise of exactly 3% is not a pump at any price.
func DetectPumpDump(candles []market.Candle) *market.PumpDumpSignal {
	if len(candles) < pumpWindow {
		return nil
	}

	window := candles[len(candles)-pumpWindow:]
	volumeRatio := analysis.WindowRatio(candles, pumpRecent, pumpWindow)

	startPrice := window[0].Open
	peak := window[0].High
	for _, c := range window[1:] {
		if c.High > peak {
			peak = c.High
		}
	}
	if startPrice <= 0 || peak <= 0 {
		return nil
	}
	current := candles[len(candles)-1]

	rise := percentChange(startPrice, peak)
	change := percentChange(startPrice, current.Close)
	drop := percentChange(peak, current.Close).Neg()

	base := market.PumpDumpSignal{
		Timestamp:    current.Timestamp,
		StartPrice:   startPrice,
		PeakPrice:    peak,
		CurrentPrice: current.Close,
		DropFromPeak: drop.InexactFloat64(),
		VolumeRatio:  volumeRatio,
	}

	if rise.GreaterThan(pct3) && volumeRatio > 2 && drop.LessThan(pct2) {
		confidence := 60.0
		if rise.GreaterThan(pct5) {
			confidence += 10
		}
		if volumeRatio > 3 {
			confidence += 15
		}
		if drop.LessThan(pct1) {
			confidence += 10
		}
		base.Kind = market.Pump
		base.PriceChangePercent = rise.InexactFloat64()
		base.Confidence = capScore(confidence)
		return &base
	}

	if rise.GreaterThan(pct3) && drop.GreaterThan(pct2) && volumeRatio > 1.5 {
		confidence := 60.0
		if drop.GreaterThan(pct5) {
			confidence += 15
		}
		if volumeRatio > 2.5 {
			confidence += 10
		}
		// Still early enough to catch the bounce
		if drop.LessThan(pct10) {
			confidence += 10
		}
		base.Kind = market.Dump
		base.PriceChangePercent = change.InexactFloat64()
		base.Confidence = capScore(confidence)
		return &base
	}

	return nil
}

// DetectLiquidationCascade summarises at least five liquidations. The side with the
// larger notional dominates; equal notionals count as a short squeeze.
func DetectLiquidationCascade(events []market.LiquidationEvent) *market.LiquidationCascade {
	if len(events) < cascadeMin {
		return nil
	}

	var (
		longValue, shortValue       float64
		longPriceSum, shortPriceSum float64
		longCount, shortCount       int
		latest                      int64
	)
	for _, e := range events {
		if e.Side == market.Long {
			longValue += e.Notional()
			longPriceSum += e.Price
			longCount++
		} else {
			shortValue += e.Notional()
			shortPriceSum += e.Price
			shortCount++
		}
		if e.Timestamp > latest {
			latest = e.Timestamp
		}
	}

	cascade := &market.LiquidationCascade{
		Timestamp:  latest,
		EventCount: len(events),
	}
	if longValue > shortValue {
		cascade.Side = market.Long
		cascade.TotalLiquidated = longValue
		cascade.Price = longPriceSum / float64(longCount)
		cascade.ExpectedRetracement = -0.5
	} else {
		cascade.Side = market.Short
		cascade.TotalLiquidated = shortValue
		if shortCount > 0 {
			cascade.Price = shortPriceSum / float64(shortCount)
		}
		cascade.ExpectedRetracement = 0.5
	}

	strength := 50.0
	if cascade.TotalLiquidated > 1_000_000 {
		strength += 20
	}
	if cascade.TotalLiquidated > 5_000_000 {
		strength += 15
	}
	if len(events) > 20 {
		strength += 10
	}
	cascade.CascadeStrength = capScore(strength)
	return cascade
}

func capScore(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}

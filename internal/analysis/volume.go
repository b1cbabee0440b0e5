package analysis

import (
	"market-analytics/internal/market"
)

// VolumeAnalyzer provides volume-based technical analysis
type VolumeAnalyzer struct {
	avgPeriod int // Period for average volume calculation
}

// NewVolumeAnalyzer creates a new volume analyzer
func NewVolumeAnalyzer(avgPeriod int) *VolumeAnalyzer {
	if avgPeriod <= 0 {
		avgPeriod = 20 // Default 20-period average
	}
	return &VolumeAnalyzer{
		avgPeriod: avgPeriod,
	}
}

// CalculateAverageVolume calculates the average volume of the last avgPeriod candles
// (or all of them when fewer are available).
func (va *VolumeAnalyzer) CalculateAverageVolume(candles []market.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}

	period := va.avgPeriod
	if len(candles) < period {
		period = len(candles)
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}

	return sum / float64(period)
}

// TrailingAverage is the average volume of up to avgPeriod candles strictly before index i.
// Returns 0 for i == 0.
func (va *VolumeAnalyzer) TrailingAverage(candles []market.Candle, i int) float64 {
	if i <= 0 || i > len(candles) {
		return 0
	}
	return va.CalculateAverageVolume(candles[:i])
}

// SpikeRatio is the volume of candle i over its trailing average. Zero when the
// trailing window is incomplete or has no volume.
func (va *VolumeAnalyzer) SpikeRatio(candles []market.Candle, i int) float64 {
	if i < va.avgPeriod || i >= len(candles) {
		return 0
	}
	avg := va.TrailingAverage(candles, i)
	if avg <= 0 {
		return 0
	}
	return candles[i].Volume / avg
}

// WindowRatio compares the average volume of the last `short` candles with that of the
// last `long` candles.
func WindowRatio(candles []market.Candle, short, long int) float64 {
	longAvg := NewVolumeAnalyzer(long).CalculateAverageVolume(candles)
	if longAvg <= 0 {
		return 0
	}
	return NewVolumeAnalyzer(short).CalculateAverageVolume(candles) / longAvg
}

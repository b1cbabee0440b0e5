package market

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCandles is returned when a candle series is malformed. It is distinct from
// "insufficient data", which detectors report as an empty result.
var ErrInvalidCandles = errors.New("invalid candle series")

// ErrInvalidLiquidations is returned when a liquidation event list is malformed.
var ErrInvalidLiquidations = errors.New("invalid liquidation events")

// ValidateCandles checks that every candle has finite positive prices, high >= low,
// non-negative volume and that timestamps strictly ascend.
func ValidateCandles(candles []Candle) error {
	for i, c := range candles {
		for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: candle %d has a non-finite value", ErrInvalidCandles, i)
			}
		}
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return fmt.Errorf("%w: candle %d has a non-positive price", ErrInvalidCandles, i)
		}
		if c.High < c.Low {
			return fmt.Errorf("%w: candle %d has high %.8f below low %.8f", ErrInvalidCandles, i, c.High, c.Low)
		}
		if c.Volume < 0 {
			return fmt.Errorf("%w: candle %d has negative volume", ErrInvalidCandles, i)
		}
		if i > 0 && c.Timestamp <= candles[i-1].Timestamp {
			return fmt.Errorf("%w: candle %d is not after candle %d", ErrInvalidCandles, i, i-1)
		}
	}
	return nil
}

// ValidateLiquidations rejects events with non-finite or non-positive price/quantity or an unknown side.
func ValidateLiquidations(events []LiquidationEvent) error {
	for i, e := range events {
		if math.IsNaN(e.Price) || math.IsInf(e.Price, 0) || math.IsNaN(e.Quantity) || math.IsInf(e.Quantity, 0) {
			return fmt.Errorf("%w: liquidation %d has a non-finite value", ErrInvalidLiquidations, i)
		}
		if e.Price <= 0 || e.Quantity < 0 {
			return fmt.Errorf("%w: liquidation %d has a non-positive price or negative quantity", ErrInvalidLiquidations, i)
		}
		if e.Side != Long && e.Side != Short {
			return fmt.Errorf("%w: liquidation %d has unknown side %q", ErrInvalidLiquidations, i, e.Side)
		}
	}
	return nil
}

// Closes extracts the close prices.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

package analysis

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnsupportedTimeframe is returned for intervals outside the supported set
var ErrUnsupportedTimeframe = errors.New("unsupported timeframe")

// Timeframe represents different chart timeframes
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// ConfluenceTimeframes are the timeframes fused by multi-timeframe analysis, fastest first.
var ConfluenceTimeframes = []Timeframe{TF15m, TF1h, TF4h, TF1d}

// ParseTimeframe validates an interval string.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(s); tf {
	case TF1m, TF5m, TF15m, TF1h, TF4h, TF1d:
		return tf, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTimeframe, s)
	}
}

// CacheTTL returns how long candles of this timeframe may be reused before refetching.
func (tf Timeframe) CacheTTL() time.Duration {
	switch tf {
	case TF1m:
		return 30 * time.Second
	case TF5m:
		return 2 * time.Minute
	case TF15m:
		return 5 * time.Minute
	case TF1h:
		return 30 * time.Minute
	case TF4h:
		return 2 * time.Hour
	case TF1d:
		return 12 * time.Hour
	default:
		return 1 * time.Minute
	}
}

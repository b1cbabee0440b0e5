// Package confluence fuses per-timeframe ICT signals into one multi-timeframe view.
package confluence

import (
	"market-analytics/internal/analysis"
	"market-analytics/internal/market"
)

// ladderStep is one rung of the best-signal ladder: the slowest timeframe whose
// signal clears its confidence bar wins.
type ladderStep struct {
	timeframe     analysis.Timeframe
	minConfidence float64
}

var bestSignalLadder = []ladderStep{
	{analysis.TF1d, 70},
	{analysis.TF4h, 70},
	{analysis.TF1h, 75},
	{analysis.TF15m, 80},
}

// Fuse combines the signals of each confluence timeframe. A nil entry means the
// timeframe produced no signal. The score is the share of present signals agreeing
// with the majority direction, 0 when no timeframe has a signal.
func Fuse(symbol string, ts int64, signals map[analysis.Timeframe]*market.Signal) market.MultiTimeframeAnalysis {
	out := market.MultiTimeframeAnalysis{
		Symbol:    symbol,
		Timestamp: ts,
		Signals:   make(map[string]*market.Signal, len(analysis.ConfluenceTimeframes)),
	}
	for _, tf := range analysis.ConfluenceTimeframes {
		out.Signals[string(tf)] = signals[tf]
	}

	out.ConfluenceScore = Score(signals)
	out.BestSignal = BestSignal(signals)
	return out
}

// Score returns max(long, short) / present × 100.
func Score(signals map[analysis.Timeframe]*market.Signal) float64 {
	var long, short, present int
	for _, s := range signals {
		if s == nil {
			continue
		}
		present++
		if s.Direction == market.Long {
			long++
		} else {
			short++
		}
	}
	if present == 0 {
		return 0
	}

	agree := long
	if short > agree {
		agree = short
	}
	return float64(agree) / float64(present) * 100
}

// BestSignal walks the ladder from the slowest timeframe down.
func BestSignal(signals map[analysis.Timeframe]*market.Signal) *market.Signal {
	for _, step := range bestSignalLadder {
		if s := signals[step.timeframe]; s != nil && s.Confidence > step.minConfidence {
			return s
		}
	}
	return nil
}

// Package scalping detects short horizon reversal setups: pumps running out of steam,
// dumps off a fresh peak and liquidation cascades.
package scalping

import (
	"market-analytics/internal/market"
)

// Config holds configuration for the sniper scalp detector
type Config struct {
	Interval          string  `json:"interval"`                   // Candle interval fetched by the service
	CandleLimit       int     `json:"candle_limit"`               // Candles fetched per analysis
	VolumeLookback    int     `json:"volume_lookback"`            // Trailing window for volume spikes
	MinConfidence     float64 `json:"min_confidence"`             // Pump/dump and cascade trigger
	LiquidationWindow int     `json:"liquidation_window_seconds"` // Age of liquidations considered
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Interval:          "1m",
		CandleLimit:       100,
		VolumeLookback:    20,
		MinConfidence:     70,
		LiquidationWindow: 300,
	}
}

// exitPlan is the fixed stop/target geometry of one trigger.
type exitPlan struct {
	kind        market.ScalpKind
	direction   market.Side
	stopPct     float64
	targetPct   float64
	maxHoldSecs int
}

var (
	pumpReversal     = exitPlan{market.PumpReversal, market.Short, 1.5, 1.5, 300}
	dumpReversal     = exitPlan{market.DumpReversal, market.Long, 1.5, 2.0, 300}
	liquidationShort = exitPlan{market.LiquidationShort, market.Short, 1.0, 1.0, 180}
	liquidationLong  = exitPlan{market.LiquidationLong, market.Long, 1.0, 1.0, 180}
)

// Detector turns candles and liquidations into at most one scalp signal. It is
// stateless and safe for concurrent use.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector; zero fields fall back to DefaultConfig.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Interval == "" {
		cfg.Interval = def.Interval
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = def.CandleLimit
	}
	if cfg.VolumeLookback <= 0 {
		cfg.VolumeLookback = def.VolumeLookback
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.LiquidationWindow <= 0 {
		cfg.LiquidationWindow = def.LiquidationWindow
	}
	return &Detector{cfg: cfg}
}

// Config returns the effective configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Analyze evaluates the pump/dump detector first and the liquidation cascade second.
// Fewer than 10 candles yields no signal. The most recent volume spike, if any, is
// attached to the signal.
func (d *Detector) Analyze(symbol string, candles []market.Candle, events []market.LiquidationEvent) (*market.ScalpSignal, error) {
	if err := market.ValidateCandles(candles); err != nil {
		return nil, err
	}
	if err := market.ValidateLiquidations(events); err != nil {
		return nil, err
	}
	if len(candles) < 10 {
		return nil, nil
	}

	pumpDump := DetectPumpDump(candles)
	cascade := DetectLiquidationCascade(events)

	current := candles[len(candles)-1]
	var sig *market.ScalpSignal

	switch {
	case pumpDump != nil && pumpDump.Kind == market.Pump && pumpDump.Confidence > d.cfg.MinConfidence:
		sig = pumpReversal.signal(symbol, current, pumpDump.Confidence)
		sig.PumpDump = pumpDump
	case pumpDump != nil && pumpDump.Kind == market.Dump && pumpDump.Confidence > d.cfg.MinConfidence:
		sig = dumpReversal.signal(symbol, current, pumpDump.Confidence)
		sig.PumpDump = pumpDump
	case cascade != nil && cascade.Side == market.Long && cascade.CascadeStrength > d.cfg.MinConfidence:
		// Longs being flushed push price down; ride the cascade short.
		sig = liquidationShort.signal(symbol, current, cascade.CascadeStrength)
		sig.Cascade = cascade
	case cascade != nil && cascade.Side == market.Short && cascade.CascadeStrength > d.cfg.MinConfidence:
		sig = liquidationLong.signal(symbol, current, cascade.CascadeStrength)
		sig.Cascade = cascade
	default:
		return nil, nil
	}

	if spikes := DetectVolumeSpikes(candles, d.cfg.VolumeLookback); len(spikes) > 0 {
		last := spikes[len(spikes)-1]
		sig.VolumeSpike = &last
	}
	return sig, nil
}

func (p exitPlan) signal(symbol string, current market.Candle, confidence float64) *market.ScalpSignal {
	entry := current.Close
	sig := &market.ScalpSignal{
		Symbol:              symbol,
		Timestamp:           current.Timestamp,
		Kind:                p.kind,
		Direction:           p.direction,
		Entry:               entry,
		TargetProfitPercent: p.targetPct,
		MaxHoldSeconds:      p.maxHoldSecs,
		Confidence:          confidence,
	}
	if p.direction == market.Long {
		sig.StopLoss = entry * (1 - p.stopPct/100)
		sig.TakeProfit = entry * (1 + p.targetPct/100)
		sig.RiskRewardRatio = (sig.TakeProfit - entry) / (entry - sig.StopLoss)
	} else {
		sig.StopLoss = entry * (1 + p.stopPct/100)
		sig.TakeProfit = entry * (1 - p.targetPct/100)
		sig.RiskRewardRatio = (entry - sig.TakeProfit) / (sig.StopLoss - entry)
	}
	return sig
}

// Package ict turns the pattern detectors of package analysis into single-timeframe
// trade signals.
package ict

import (
	"math"

	"market-analytics/internal/analysis"
	"market-analytics/internal/market"
)

// Config holds the signal emission thresholds.
type Config struct {
	MinCandles    int     `json:"min_candles"`
	MinConfidence float64 `json:"min_confidence"`
	MinRiskReward float64 `json:"min_risk_reward"`
	ATRPeriod     int     `json:"atr_period"`
}

// DefaultConfig returns the thresholds used in production.
func DefaultConfig() Config {
	return Config{
		MinCandles:    50,
		MinConfidence: 60,
		MinRiskReward: 1.5,
		ATRPeriod:     14,
	}
}

// Target distances in ATR multiples.
const (
	tp1ATR = 1.5
	tp2ATR = 2.5
	tp3ATR = 4.0
)

// Analyzer produces at most one signal per call. It holds no mutable state and is
// safe for concurrent use.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an analyzer; zero fields fall back to DefaultConfig.
func NewAnalyzer(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.MinCandles <= 0 {
		cfg.MinCandles = def.MinCandles
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.MinRiskReward <= 0 {
		cfg.MinRiskReward = def.MinRiskReward
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = def.ATRPeriod
	}
	return &Analyzer{cfg: cfg}
}

// AnalyzeTimeframe runs every detector on the candles and returns a signal when the
// current price sits inside an unfilled gap or an untested order block and the setup
// clears the confidence and risk/reward thresholds. A nil signal with a nil error means
// "no signal", including when there are too few candles. Malformed candles return an
// error wrapping market.ErrInvalidCandles.
func (a *Analyzer) AnalyzeTimeframe(symbol, timeframe string, candles []market.Candle) (*market.Signal, error) {
	if err := market.ValidateCandles(candles); err != nil {
		return nil, err
	}
	if len(candles) < a.cfg.MinCandles {
		return nil, nil
	}

	gaps := analysis.DetectFairValueGaps(candles)
	blocks := analysis.DetectOrderBlocks(candles)
	zones := analysis.DetectLiquidityZones(candles)
	shifts := analysis.DetectStructureShifts(candles)

	current := candles[len(candles)-1]
	ctx := setupContext{
		symbol:     symbol,
		timeframe:  timeframe,
		current:    current,
		trend:      analysis.DetermineTrend(candles),
		volatility: analysis.Volatility(candles),
		atr:        analysis.AverageTrueRange(candles, a.cfg.ATRPeriod),
		zones:      zones,
	}

	if sig := a.evaluate(ctx, market.Long, gaps, blocks, shifts); sig != nil {
		return sig, nil
	}
	return a.evaluate(ctx, market.Short, gaps, blocks, shifts), nil
}

type setupContext struct {
	symbol     string
	timeframe  string
	current    market.Candle
	trend      market.Trend
	volatility float64
	atr        float64
	zones      []market.LiquidityZone
}

func (a *Analyzer) evaluate(ctx setupContext, side market.Side, gaps []market.FairValueGap, blocks []market.OrderBlock, shifts []market.MarketStructureShift) *market.Signal {
	dir := market.Bullish
	if side == market.Short {
		dir = market.Bearish
	}
	price := ctx.current.Close

	gap := firstGapContaining(gaps, dir, price)
	block := firstBlockContaining(blocks, dir, price)
	if gap == nil && block == nil {
		return nil
	}
	shift := firstShift(shifts, dir)

	entry := price
	var stop, tp1, tp2, tp3, rr float64
	if side == market.Long {
		if block != nil {
			stop = block.Low * 0.995
		} else {
			stop = gap.LowBound * 0.995
		}
		tp1 = entry + ctx.atr*tp1ATR
		tp2 = entry + ctx.atr*tp2ATR
		tp3 = entry + ctx.atr*tp3ATR
		rr = riskReward(tp2-entry, entry-stop)
	} else {
		if block != nil {
			stop = block.High * 1.005
		} else {
			stop = gap.HighBound * 1.005
		}
		tp1 = entry - ctx.atr*tp1ATR
		tp2 = entry - ctx.atr*tp2ATR
		tp3 = entry - ctx.atr*tp3ATR
		rr = riskReward(entry-tp2, stop-entry)
	}

	confidence := 50.0
	if gap != nil {
		confidence += gap.Strength * 0.2
	}
	if block != nil {
		confidence += block.Strength * 0.2
	}
	if shift != nil {
		confidence += shift.Strength * 0.15
	}
	if ctx.trend.Matches(side) {
		confidence += 10
	}
	confidence = math.Min(100, confidence)

	if confidence <= a.cfg.MinConfidence || rr <= a.cfg.MinRiskReward {
		return nil
	}

	sig := &market.Signal{
		Symbol:          ctx.symbol,
		Timeframe:       ctx.timeframe,
		Timestamp:       ctx.current.Timestamp,
		Direction:       side,
		Entry:           entry,
		StopLoss:        stop,
		TP1:             tp1,
		TP2:             tp2,
		TP3:             tp3,
		RiskRewardRatio: rr,
		Confidence:      confidence,
		CurrentPrice:    price,
		Trend:           ctx.trend,
		Volatility:      ctx.volatility,
		Evidence: market.Evidence{
			Gaps:   []market.FairValueGap{},
			Blocks: []market.OrderBlock{},
			Zones:  append([]market.LiquidityZone{}, ctx.zones...),
			Shift:  shift,
		},
	}
	if gap != nil {
		sig.Evidence.Gaps = append(sig.Evidence.Gaps, *gap)
	}
	if block != nil {
		sig.Evidence.Blocks = append(sig.Evidence.Blocks, *block)
	}
	sig.Kind = signalKind(side, gap != nil)
	return sig
}

func signalKind(side market.Side, fromGap bool) market.SignalKind {
	switch {
	case side == market.Long && fromGap:
		return market.KindFVGLong
	case side == market.Long:
		return market.KindOBLong
	case fromGap:
		return market.KindFVGShort
	default:
		return market.KindOBShort
	}
}

// riskReward returns reward/risk, or 0 when the stop is not on the losing side of entry.
func riskReward(reward, risk float64) float64 {
	if risk <= 0 {
		return 0
	}
	return reward / risk
}

func firstGapContaining(gaps []market.FairValueGap, dir market.Direction, price float64) *market.FairValueGap {
	for i := range gaps {
		if gaps[i].Direction == dir && !gaps[i].Filled && gaps[i].Contains(price) {
			g := gaps[i]
			return &g
		}
	}
	return nil
}

func firstBlockContaining(blocks []market.OrderBlock, dir market.Direction, price float64) *market.OrderBlock {
	for i := range blocks {
		if blocks[i].Direction == dir && !blocks[i].Tested && blocks[i].Contains(price) {
			b := blocks[i]
			return &b
		}
	}
	return nil
}

func firstShift(shifts []market.MarketStructureShift, dir market.Direction) *market.MarketStructureShift {
	for i := range shifts {
		if shifts[i].Kind.IsBullish() == (dir == market.Bullish) {
			s := shifts[i]
			return &s
		}
	}
	return nil
}

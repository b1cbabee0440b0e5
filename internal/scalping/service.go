package scalping

import (
	"context"
	"fmt"
	"time"

	"market-analytics/internal/events"
	"market-analytics/internal/exchange"
	"market-analytics/internal/logging"
	"market-analytics/internal/market"
	"market-analytics/internal/metrics"

	"github.com/rs/zerolog"
)

// Service feeds live 1m candles and recent liquidations to the detector.
type Service struct {
	candles      exchange.CandleSource
	liquidations exchange.LiquidationSource
	detector     *Detector
	metrics      *metrics.Registry
	bus          *events.EventBus
	logger       zerolog.Logger
}

// NewService creates the sniper scalp service. liquidations may be nil, in which case
// only the pump/dump trigger can fire.
func NewService(candles exchange.CandleSource, liquidations exchange.LiquidationSource, detector *Detector, m *metrics.Registry, bus *events.EventBus, logger zerolog.Logger) *Service {
	return &Service{
		candles:      candles,
		liquidations: liquidations,
		detector:     detector,
		metrics:      m,
		bus:          bus,
		logger:       logger.With().Str("component", "sniper").Logger(),
	}
}

// Analyze returns the current scalp signal of symbol, or nil when nothing triggers.
func (s *Service) Analyze(ctx context.Context, symbol string) (*market.ScalpSignal, error) {
	cfg := s.detector.Config()

	candles, err := s.candles.GetCandles(ctx, symbol, cfg.Interval, cfg.CandleLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}

	var liqs []market.LiquidationEvent
	if s.liquidations != nil {
		liqs = s.liquidations.RecentLiquidations(symbol, time.Duration(cfg.LiquidationWindow)*time.Second)
	}

	sig, err := s.detector.Analyze(symbol, candles, liqs)
	if err != nil || sig == nil {
		return nil, err
	}

	s.metrics.SignalEmitted("sniper", string(sig.Direction))
	s.bus.PublishScalpSignal(symbol, string(sig.Kind), string(sig.Direction), sig.Entry, sig.Confidence)
	l := logging.SymbolContext(s.logger, symbol, cfg.Interval)
	l.Info().
		Str("type", string(sig.Kind)).
		Str("direction", string(sig.Direction)).
		Float64("confidence", sig.Confidence).
		Int("liquidations", len(liqs)).
		Msg("Sniper signal generated")
	return sig, nil
}

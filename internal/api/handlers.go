package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"market-analytics/internal/analysis"
	"market-analytics/internal/exchange"
	"market-analytics/internal/logging"
	"market-analytics/internal/market"

	"github.com/gin-gonic/gin"
)

const (
	scanAllConcurrency = 4
	defaultLevels      = 20
)

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	cacheStatus := "disabled"
	if s.svc.Cache != nil {
		cacheStatus = "healthy"
		if !s.svc.Cache.IsHealthy() {
			cacheStatus = "degraded"
		}
	}

	var breakers interface{} = []interface{}{}
	if s.svc.Breakers != nil {
		breakers = s.svc.Breakers.Statuses()
	}

	// Redis is optional, so a degraded cache does not fail the check.
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"cache":             cacheStatus,
		"circuit_breakers":  breakers,
		"websocket_clients": s.hub.GetClientCount(),
		"uptime_seconds":    int64(time.Since(s.started).Seconds()),
	})
}

// handleStatus lists the analytics engines and the scanned exchanges
func (s *Server) handleStatus(c *gin.Context) {
	var exchanges []string
	if s.svc.Arbitrage != nil {
		exchanges = s.svc.Arbitrage.Exchanges()
	}
	successResponse(c, gin.H{
		"engines": gin.H{
			"ict":       gin.H{"status": engineStatus(s.svc.ICT != nil), "name": "ICT multi-timeframe analyzer"},
			"sniper":    gin.H{"status": engineStatus(s.svc.Sniper != nil), "name": "Momentum and cascade detector"},
			"arbitrage": gin.H{"status": engineStatus(s.svc.Arbitrage != nil), "name": "Cross-exchange arbitrage scanner"},
			"liquidity": gin.H{"status": engineStatus(s.svc.Liquidity != nil), "name": "Order book liquidity heatmap"},
		},
		"exchanges":      exchanges,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"timestamp":      time.Now().UnixMilli(),
	})
}

func engineStatus(active bool) string {
	if active {
		return "active"
	}
	return "disabled"
}

// handleICTAnalyze runs the four timeframe analysis for one symbol
func (s *Server) handleICTAnalyze(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))
	result, err := s.svc.ICT.Analyze(c.Request.Context(), symbol)
	if err != nil {
		s.fail(c, err, "Failed to analyze ICT signals")
		return
	}
	successResponse(c, result)
}

// handleICTSignal analyzes one timeframe; data is null when no setup qualifies
func (s *Server) handleICTSignal(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))
	signal, err := s.svc.ICT.Signal(c.Request.Context(), symbol, c.Param("timeframe"))
	if err != nil {
		s.fail(c, err, "Failed to generate ICT signal")
		return
	}
	successResponse(c, signal)
}

// handleICTScanAll runs the multi-timeframe analysis over a symbol list
func (s *Server) handleICTScanAll(c *gin.Context) {
	symbols := s.symbolsParam(c)
	results := exchange.FanOut(c.Request.Context(), exchange.FanOutOptions{MaxConcurrency: scanAllConcurrency}, symbols,
		func(sym string) string { return sym },
		s.svc.ICT.Analyze)
	successResponse(c, collect(c.Request.Context(), results, "ict"))
}

// handleSniperAnalyze runs the momentum detector; data is null when nothing qualifies
func (s *Server) handleSniperAnalyze(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))
	signal, err := s.svc.Sniper.Analyze(c.Request.Context(), symbol)
	if err != nil {
		s.fail(c, err, "Failed to analyze sniper scalp opportunities")
		return
	}
	successResponse(c, signal)
}

// handleSniperScanAll runs the momentum detector over a symbol list and keeps the hits
func (s *Server) handleSniperScanAll(c *gin.Context) {
	symbols := s.symbolsParam(c)
	results := exchange.FanOut(c.Request.Context(), exchange.FanOutOptions{MaxConcurrency: scanAllConcurrency}, symbols,
		func(sym string) string { return sym },
		s.svc.Sniper.Analyze)
	successResponse(c, collect(c.Request.Context(), results, "sniper"))
}

// handleArbitrageScan scans ?symbols=A,B or the default list
func (s *Server) handleArbitrageScan(c *gin.Context) {
	var symbols []string
	if raw := c.Query("symbols"); raw != "" {
		symbols = strings.Split(raw, ",")
	}
	result, err := s.svc.Arbitrage.Scan(c.Request.Context(), symbols)
	if err != nil {
		s.fail(c, err, "Failed to scan arbitrage opportunities")
		return
	}
	successResponse(c, result)
}

// handleArbitrageOpportunity prices a single symbol; data is null without a profitable pair
func (s *Server) handleArbitrageOpportunity(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))
	opp, err := s.svc.Arbitrage.Opportunity(c.Request.Context(), symbol)
	if err != nil {
		s.fail(c, err, "Failed to get arbitrage opportunity")
		return
	}
	successResponse(c, opp)
}

func (s *Server) handleArbitrageSymbols(c *gin.Context) {
	successResponse(c, s.svc.Arbitrage.Symbols())
}

// handleLiquidityHeatmap merges the order books of every exchange for one symbol
func (s *Server) handleLiquidityHeatmap(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))
	heatmap, err := s.svc.Liquidity.Heatmap(c.Request.Context(), symbol)
	if err != nil {
		s.fail(c, err, "Failed to generate liquidity heatmap")
		return
	}
	successResponse(c, heatmap)
}

// handleLiquidityLevels returns ?levels=N (or numLevels=N) levels per side
func (s *Server) handleLiquidityLevels(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))

	raw := c.Query("levels")
	if raw == "" {
		raw = c.Query("numLevels")
	}
	n := defaultLevels
	if raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			errorResponse(c, http.StatusBadRequest, "levels must be a positive integer")
			return
		}
		n = v
	}

	levels, err := s.svc.Liquidity.Levels(c.Request.Context(), symbol, n)
	if err != nil {
		s.fail(c, err, "Failed to get liquidity levels")
		return
	}
	successResponse(c, levels)
}

// fail maps err to a status: malformed input is the caller's fault, everything else
// is an upstream failure.
func (s *Server) fail(c *gin.Context, err error, message string) {
	status := statusFor(err)
	l := logging.FromContext(c.Request.Context())
	if status >= 500 {
		l.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	} else {
		l.Debug().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	}

	if status < 500 {
		message = err.Error()
	}
	errorResponse(c, status, message)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, analysis.ErrUnsupportedTimeframe),
		errors.Is(err, market.ErrInvalidCandles),
		errors.Is(err, market.ErrInvalidLiquidations):
		return http.StatusBadRequest
	case errors.Is(err, exchange.ErrSymbolNotListed):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// symbolsParam reads ?symbols=A,B, falling back to the arbitrage default list.
func (s *Server) symbolsParam(c *gin.Context) []string {
	var symbols []string
	for _, sym := range strings.Split(c.Query("symbols"), ",") {
		if sym = normalizeSymbol(sym); sym != "" {
			symbols = append(symbols, sym)
		}
	}
	if len(symbols) == 0 && s.svc.Arbitrage != nil {
		symbols = s.svc.Arbitrage.Symbols()
	}
	return symbols
}

// collect keeps the non-nil results keyed by symbol; failures are logged and skipped.
func collect[T any](ctx context.Context, results []exchange.Result[*T], engine string) map[string]*T {
	l := logging.FromContext(ctx)
	out := make(map[string]*T, len(results))
	for _, r := range results {
		if r.Err != nil {
			l.Debug().Err(r.Err).Str("engine", engine).Str("symbol", r.Exchange).Msg("Scan-all symbol failed")
			continue
		}
		if r.Value != nil {
			out[r.Exchange] = r.Value
		}
	}
	return out
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, "/", "")))
}

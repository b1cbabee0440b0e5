package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"market-analytics/internal/circuit"
	"market-analytics/internal/events"
	"market-analytics/internal/market"
	"market-analytics/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ICTAnalyzer is the multi-timeframe pattern service.
type ICTAnalyzer interface {
	Analyze(ctx context.Context, symbol string) (*market.MultiTimeframeAnalysis, error)
	Signal(ctx context.Context, symbol, timeframe string) (*market.Signal, error)
}

// ScalpAnalyzer is the momentum and liquidation cascade service.
type ScalpAnalyzer interface {
	Analyze(ctx context.Context, symbol string) (*market.ScalpSignal, error)
}

// ArbitrageScanner is the cross-exchange spread service.
type ArbitrageScanner interface {
	Scan(ctx context.Context, symbols []string) (*market.ArbitrageScanResult, error)
	Opportunity(ctx context.Context, symbol string) (*market.ArbitrageOpportunity, error)
	Symbols() []string
	Exchanges() []string
}

// LiquidityAggregator is the order book heatmap service.
type LiquidityAggregator interface {
	Heatmap(ctx context.Context, symbol string) (*market.LiquidityHeatmap, error)
	Levels(ctx context.Context, symbol string, n int) ([]market.LiquidityLevel, error)
}

// HealthChecker reports whether an optional dependency is reachable.
type HealthChecker interface {
	IsHealthy() bool
}

// Services bundles what the handlers call. Breakers, Cache, Metrics and Bus may be nil.
type Services struct {
	ICT       ICTAnalyzer
	Sniper    ScalpAnalyzer
	Arbitrage ArbitrageScanner
	Liquidity LiquidityAggregator
	Breakers  *circuit.Manager
	Cache     HealthChecker
	Metrics   *metrics.Registry
	Bus       *events.EventBus
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MetricsPath    string // Empty disables the Prometheus endpoint
	TLSCertFile    string // Both set enables HTTPS
	TLSKeyFile     string
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig
	svc        Services
	hub        *WSHub
	logger     zerolog.Logger
	started    time.Time
}

// NewServer creates a new API server. The websocket hub is subscribed to svc.Bus and
// runs until ctx is cancelled.
func NewServer(ctx context.Context, config ServerConfig, svc Services, logger zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	logger = logger.With().Str("component", "api").Logger()
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestID(logger))
	router.Use(accessLog(svc.Metrics))

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) == 0 || (len(config.AllowedOrigins) == 1 && config.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", requestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Length", requestIDHeader}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:  router,
		config:  config,
		svc:     svc,
		hub:     NewWSHub(svc.Metrics, logger),
		logger:  logger,
		started: time.Now(),
	}

	go server.hub.Run(ctx)
	if svc.Bus != nil {
		svc.Bus.SubscribeAll(server.hub.BroadcastEvent)
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/api/health", s.handleHealth)

	trading := s.router.Group("/api/trading")
	{
		trading.GET("/status", s.handleStatus)

		trading.GET("/ict/analyze/:symbol", s.handleICTAnalyze)
		trading.GET("/ict/signal/:symbol/:timeframe", s.handleICTSignal)
		trading.GET("/ict/scan-all", s.handleICTScanAll)

		trading.GET("/sniper/analyze/:symbol", s.handleSniperAnalyze)
		trading.GET("/sniper/scan-all", s.handleSniperScanAll)

		trading.GET("/arbitrage/scan", s.handleArbitrageScan)
		trading.GET("/arbitrage/symbol/:symbol", s.handleArbitrageOpportunity)
		trading.GET("/arbitrage/opportunity/:symbol", s.handleArbitrageOpportunity)
		trading.GET("/arbitrage/symbols", s.handleArbitrageSymbols)

		trading.GET("/liquidity/heatmap/:symbol", s.handleLiquidityHeatmap)
		trading.GET("/liquidity/levels/:symbol", s.handleLiquidityLevels)
	}

	s.router.GET("/ws/arbitrage", s.handleWebSocket(events.EventArbitrageScan))
	s.router.GET("/ws/events", s.handleWebSocket())

	if s.config.MetricsPath != "" {
		s.router.GET(s.config.MetricsPath, gin.WrapH(s.svc.Metrics.Handler()))
	}

	s.router.NoRoute(func(c *gin.Context) {
		errorResponse(c, http.StatusNotFound, "endpoint not found")
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *WSHub {
	return s.hub
}

// Start starts the HTTP server and blocks until it is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	var err error
	if s.config.TLSCertFile != "" && s.config.TLSKeyFile != "" {
		s.logger.Info().Str("address", addr).Msg("Starting HTTPS server")
		err = s.httpServer.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
	} else {
		s.logger.Info().Str("address", addr).Msg("Starting HTTP server")
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

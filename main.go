package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-analytics/config"
	"market-analytics/internal/api"
	"market-analytics/internal/app"
	"market-analytics/internal/logging"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger, closer := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	defer closer.Close()
	logging.SetDefault(logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	services, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	services.Start(ctx)

	serverConfig := api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: os.Getenv("GIN_MODE") == "release",
		AllowedOrigins: cfg.ServerConfig.Origins(),
		ReadTimeout:    time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
	}
	if cfg.MetricsConfig.Enabled {
		serverConfig.MetricsPath = cfg.MetricsConfig.Path
	}
	if cfg.ServerConfig.TLSEnabled {
		serverConfig.TLSCertFile = cfg.ServerConfig.TLSCertFile
		serverConfig.TLSKeyFile = cfg.ServerConfig.TLSKeyFile
	}

	svc := api.Services{
		ICT:       services.ICT,
		Sniper:    services.Sniper,
		Arbitrage: services.Arbitrage,
		Liquidity: services.Liquidity,
		Breakers:  services.Breakers,
		Metrics:   services.Metrics,
		Bus:       services.Bus,
	}
	if services.Redis != nil {
		svc.Cache = services.Redis
	}

	server := api.NewServer(ctx, serverConfig, svc, logger)

	// Start web server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start web server")
		}
	}()

	logger.Info().
		Str("address", cfg.ServerConfig.Address()).
		Strs("exchanges", services.Registry.Names()).
		Msg("Market analytics engine running")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down web server")
	}

	// Stops the hub, the stream and the background scan
	stop()

	logger.Info().Msg("Shutdown complete")
}

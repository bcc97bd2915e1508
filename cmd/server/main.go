package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/app"
	"github.com/blakestevenson/nimbus-acquire/internal/config"
	"github.com/blakestevenson/nimbus-acquire/internal/downloader"
	httpserver "github.com/blakestevenson/nimbus-acquire/internal/http"
	"github.com/blakestevenson/nimbus-acquire/internal/http/handlers"
	"github.com/blakestevenson/nimbus-acquire/internal/logging"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.IsDevelopment(), cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Nimbus acquisition server",
		zap.String("environment", cfg.Environment),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Duration("poll_interval", cfg.PollInterval),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer a.Close()

	// Downloads left in importing by an earlier run are picked up by the first cycle
	if err := a.Scheduler.Start(ctx); err != nil {
		logger.Fatal("Failed to start poll scheduler", zap.Error(err))
	}

	// Initialize HTTP router
	router := httpserver.NewRouter(httpserver.RouterDeps{
		Downloads:  downloader.NewHandler(a.Downloads, a.Scheduler, a.Activity, logger),
		Clients:    handlers.NewClientHandler(a.Clients, logger),
		Blacklist:  handlers.NewBlacklistHandler(a.Blacklist, logger),
		Config:     handlers.NewConfigHandler(a.Config, logger),
		Indexers:   handlers.NewIndexerHandler(a.Indexers, a.Search, logger),
		Gatherer:   a.Registry,
		CORSOrigin: cfg.CORSOrigin,
	}, logger)

	// Create HTTP server. Searches wait on indexer pacing, so writes get a long deadline.
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("address", addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until a signal or error is received
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", zap.Error(err))
		}

	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	// Stop polling before the pool goes away
	a.Scheduler.Stop()
	cancel()

	// Give outstanding requests a deadline for completion
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		if err := server.Close(); err != nil {
			logger.Error("Failed to close server", zap.Error(err))
		}
	}

	logger.Info("Server stopped")
}

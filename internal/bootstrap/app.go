// Package bootstrap handles application initialization and lifecycle
// management for the ingestion service.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonesrussell/godigest/internal/logger"
)

const version = "dev"

const shutdownTimeout = 15 * time.Second

// Start initializes and runs the service until SIGINT/SIGTERM.
func Start() error {
	// Phase 1: Load config and create logger.
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := CreateLogger(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// Phase 2: Setup database.
	db, err := SetupDatabase(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", logger.Error(closeErr))
		}
	}()

	// Phase 3: Wire the pipeline and its optional event mirror.
	app, err := BuildApp(cfg, db, log)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	// Phase 4: Start periodic triggers.
	if err := app.Scheduler.RegisterPeriodicTriggers(); err != nil {
		return fmt.Errorf("failed to register triggers: %w", err)
	}
	defer app.Scheduler.Shutdown()

	// Phase 5: Run HTTP server until shutdown.
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server",
			logger.String("host", cfg.Server.Host),
			logger.Int("port", cfg.Server.Port),
		)
		if serveErr := server.ListenAndServe(); serveErr != nil &&
			!errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("Shutting down", logger.String("signal", sig.String()))
	case serveErr := <-errCh:
		return fmt.Errorf("server error: %w", serveErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if shutdownErr := server.Shutdown(ctx); shutdownErr != nil {
		log.Error("HTTP server shutdown failed", logger.Error(shutdownErr))
	}

	log.Info("Server exited")
	return nil
}

// Package main is the entry point for the CAS API server.
//
// The process serves the HTTP API, runs River workers for event publication,
// emails and CAS2 housekeeping, and consumes POM allocation changes when an
// inbound queue is configured. SIGINT or SIGTERM drains all of them.
//
// Import Path: approvedpremises.io/cas/cmd/server
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

	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/app"
	"approvedpremises.io/cas/internal/config"
	"approvedpremises.io/cas/internal/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting CAS API", startupFields(cfg)...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer application.Shutdown()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start background services: %w", err)
	}

	srv := newHTTPServer(cfg.Server, application.Router)
	errCh := make(chan error, 1)
	go func() { //nolint:naked-goroutine // main server goroutine is exempt
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("CAS API listening", zap.String("addr", srv.Addr))

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("CAS API stopped")
	return nil
}

func newHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: min(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout:      cfg.WriteTimeout,
	}
}

// startupFields summarises which optional integrations are switched on.
// Secrets and connection strings are never logged.
func startupFields(cfg *config.Config) []zap.Field {
	return []zap.Field{
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("auto_migrate", cfg.Database.AutoMigrate),
		zap.Bool("publish_domain_events", cfg.DomainEvents.PublishEnabled),
		zap.Bool("inbound_consumer", cfg.Messaging.Enabled() && cfg.Messaging.InboundQueue != ""),
		zap.Bool("emails", cfg.Notify.Enabled),
		zap.Bool("reference_cache", cfg.Redis.URL != ""),
		zap.Bool("validate_responses", cfg.Server.ValidateResponses),
		zap.String("seed_directory", cfg.Seed.Directory),
		zap.Duration("cas2_abandon_after", cfg.CAS2.AbandonAfter),
	}
}

// Package main provides the entry point for the timelapse editor API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maauso/timelapse-editor/internal/bootstrap"
	"github.com/maauso/timelapse-editor/internal/config"
	"github.com/maauso/timelapse-editor/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting timelapse editor API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("timelapse_dir", cfg.TimelapseDir),
		slog.String("output_dir", cfg.OutputDir),
		slog.String("temp_dir", cfg.TempDir),
		slog.Duration("session_ttl", cfg.SessionTTL),
		slog.Int("session_max", cfg.SessionMax),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("failed to close dependencies", slog.String("error", err.Error()))
		}
	}()

	// Evict idle sessions in the background
	go deps.Sessions.Run(ctx, cfg.SessionSweepInterval)

	// Initialize HTTP handlers and router
	opts := []server.HandlerOption{
		server.WithTimelapseDir(cfg.TimelapseDir),
		server.WithOutputDir(cfg.OutputDir),
		server.WithEditorOptions(deps.EditorOptions...),
	}
	if deps.Uploader != nil {
		opts = append(opts, server.WithUploader(deps.Uploader))
	}
	handlers := server.NewHandlers(deps.Sessions, deps.Tasks, logger, opts...)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Minute, // Synchronous assembly of long sequences
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if err := deps.Tasks.Shutdown(shutdownCtx); err != nil {
		logger.Warn("background tasks did not stop in time", slog.String("error", err.Error()))
	}

	logger.Info("server stopped gracefully")
	return nil
}

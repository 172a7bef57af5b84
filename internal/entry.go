// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/softmill/filedex/internal/api"
	"github.com/softmill/filedex/internal/fileops"
	"github.com/softmill/filedex/internal/mcpserver"
	"github.com/softmill/filedex/internal/recordservice"
	"github.com/softmill/filedex/internal/registry"
	"github.com/softmill/filedex/internal/sse"
	"github.com/softmill/filedex/internal/watch"
)

// Run starts the HTTP server mode with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("registry_dir", cfg.Registry.Dir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Open the registry. Failure here is fatal: the process must not run
	// without a working registry.
	reg, err := registry.Open(cfg.Registry.Dir)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	logger.Info("Registry opened", slog.Int("records", reg.Count()))

	fs := fileops.OS{}

	// SSE broker for record change and drift events.
	broker := sse.NewBroker()
	defer broker.Close()

	svc := recordservice.New(reg, fs,
		recordservice.WithChangeCallback(broker.PublishRecordEvent))

	// Startup audit: the registry never verifies disk state on its own.
	report := svc.Audit(ctx)
	for _, rec := range report.Missing {
		logger.Warn("audit: tracked file missing on disk",
			slog.String("id", rec.ShortID()),
			slog.String("path", rec.Path()))
	}
	for _, rec := range report.Drifted {
		logger.Warn("audit: disk content differs from registry",
			slog.String("id", rec.ShortID()),
			slog.String("path", rec.Path()))
	}
	for _, rec := range report.Unreadable {
		logger.Warn("audit: tracked file exists but cannot be read",
			slog.String("id", rec.ShortID()),
			slog.String("path", rec.Path()))
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, http.HandlerFunc(broker.ServeHTTP))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Drift watcher over the tracked storage directories.
	g.Go(func() error {
		if err := watch.Run(gCtx, reg, fs, logger, broker.PublishRecordEvent); err != nil {
			logger.Warn("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	// HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server mode. Logs go to stderr because the
// stdio transport owns stdout.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	reg, err := registry.Open(cfg.Registry.Dir)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	logger.Info("Registry opened", slog.Int("records", reg.Count()))

	svc := recordservice.New(reg, fileops.OS{})
	return mcpserver.New(svc).ServeStdio()
}

// Package main is the entry point for the ZodForge Cloud landing API server.
//
// It loads configuration, connects to Postgres, wires the Stripe and Resend
// clients through the resilient HTTP base client, builds the HTTP server with
// the core chassis (middleware, routing, health checks), and starts listening.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
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

	"zodforge/internal/admission"
	"zodforge/internal/api/handlers"
	"zodforge/internal/config"
	"zodforge/internal/core"
	"zodforge/internal/db"
	"zodforge/internal/external"
	"zodforge/internal/notifications/email"
	"zodforge/internal/provisioning"
	"zodforge/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("zodforge API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	// Database pool. The startup context bounds connection establishment so a
	// dead database fails the boot instead of hanging it.
	startupCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := db.NewPool(startupCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	customers := db.NewCustomerRepository(pool)

	// Outbound clients share the resilience layer (retries, circuit breaker)
	// but keep separate HTTP clients so one provider's latency cannot starve
	// the other's connection pool.
	stripeClient := external.NewStripeClient(
		&http.Client{Timeout: 20 * time.Second},
		external.StripeClientConfig{
			SecretKey: cfg.Billing.StripeSecretKey.Unmask(),
			Logger:    logger,
		},
	)
	resendClient := external.NewResendClient(
		&http.Client{Timeout: 10 * time.Second},
		external.ResendClientConfig{
			APIKey: cfg.Email.ResendAPIKey.Unmask(),
			Logger: logger,
		},
	)

	renderer, err := email.NewRenderer(email.RendererConfig{
		FromAddress: cfg.Email.FromAddress,
		APIBaseURL:  cfg.Server.APIBaseURL,
		DocsURL:     cfg.Server.DocsURL,
	})
	if err != nil {
		return fmt.Errorf("building email renderer: %w", err)
	}
	sender := email.NewSender(renderer, resendClient, logger)

	provisioner := provisioning.NewService(customers, sender, logger)
	guard := admission.New(cfg.Security, cfg.Server.PublicOrigin, types.RealClock{})

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.OnShutdown(func() error {
		pool.Close()
		return nil
	})
	srv.HealthProbes = append(srv.HealthProbes, db.NewHealthProbe(pool))

	checkoutHandler := handlers.NewCheckoutHandler(guard, stripeClient, srv.Validator, srv.Responder, logger)
	webhookHandler := handlers.NewStripeWebhookHandler(
		&external.StripeVerifier{},
		provisioner,
		srv.Responder,
		cfg.Billing.StripeWebhookSecret.Unmask(),
		logger,
	)
	srv.APIRouteRegistrars = append(srv.APIRouteRegistrars,
		checkoutHandler.RegisterRoutes,
		webhookHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to capture server errors from ListenAndServe.
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with a 10-second deadline.
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Shutdown server resources (DB pool).
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}

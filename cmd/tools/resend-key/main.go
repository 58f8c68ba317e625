// Package main implements the resend-key CLI tool for manually re-delivering
// a customer's API key.
//
// A fresh key is generated, its hash replaces the stored one (the previous
// key stops working immediately), and the onboarding email is sent again.
// This is the recovery path when the original delivery bounced or landed in
// spam.
//
// Usage:
//
//	go run ./cmd/tools/resend-key --email=customer@example.com
//	go run ./cmd/tools/resend-key customer@example.com
//
// The tool reads DATABASE_URL, RESEND_API_KEY, and the other service
// environment variables (or a .env file via godotenv).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zodforge/internal/config"
	"zodforge/internal/db"
	"zodforge/internal/external"
	"zodforge/internal/notifications/email"
	"zodforge/internal/provisioning"
)

func main() {
	emailFlag := flag.String("email", "", "Email address of the customer to re-key")
	flag.Parse()

	address := *emailFlag
	if address == "" && flag.NArg() > 0 {
		address = flag.Arg(0)
	}
	if address == "" {
		fmt.Fprintln(os.Stderr, "usage: resend-key --email=customer@example.com")
		os.Exit(2)
	}

	if err := run(address); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(address string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, 60*time.Second)
	defer timeoutCancel()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

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

	svc := provisioning.NewService(
		db.NewCustomerRepository(pool),
		email.NewSender(renderer, resendClient, logger),
		logger,
	)

	if err := svc.ResendKey(ctx, address); err != nil {
		return err
	}

	fmt.Printf("New API key generated and sent to %s\n", email.RedactEmail(address))
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

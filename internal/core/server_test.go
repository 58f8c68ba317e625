package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"zodforge/internal/config"
)

func TestNewServerNilChecks(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	if _, err := NewServer(nil, logger); err == nil {
		t.Error("NewServer(nil config) error = nil, want error")
	}
	if _, err := NewServer(&config.Config{}, nil); err == nil {
		t.Error("NewServer(nil logger) error = nil, want error")
	}
}

func TestNewServerInitializesResponder(t *testing.T) {
	s := testServer(t, config.EnvProduction)

	if s.Responder == nil {
		t.Fatal("Responder not initialized")
	}
	if s.Responder.Env != config.EnvProduction {
		t.Errorf("Responder.Env = %q, want %q", s.Responder.Env, config.EnvProduction)
	}
	if s.Validator == nil {
		t.Error("Validator not initialized")
	}
}

func TestShutdownRunsHooksInOrder(t *testing.T) {
	s := testServer(t, config.EnvProduction)

	var order []string
	s.OnShutdown(func() error {
		order = append(order, "first")
		return nil
	})
	s.OnShutdown(func() error {
		order = append(order, "second")
		return nil
	})

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("hook order = %v", order)
	}
}

func TestShutdownReturnsFirstError(t *testing.T) {
	s := testServer(t, config.EnvProduction)

	errFirst := errors.New("pool close failed")
	ranSecond := false
	s.OnShutdown(func() error { return errFirst })
	s.OnShutdown(func() error {
		ranSecond = true
		return errors.New("second failure")
	})

	err := s.Shutdown(context.Background())
	if !errors.Is(err, errFirst) {
		t.Errorf("Shutdown() error = %v, want first hook error", err)
	}
	if !ranSecond {
		t.Error("later hooks must still run after a failure")
	}
}

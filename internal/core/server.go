// Package core provides the API chassis for the ZodForge Cloud backend.
// It creates a chi router and enforces cross-cutting concerns -- security,
// logging, and error handling -- before requests reach domain-specific
// handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zodforge/internal/config"
)

// Server encapsulates all dependencies for the ZodForge API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Responder *Responder

	// HealthProbes are the subsystem checks executed by GET /health.
	HealthProbes []HealthProbe

	// APIRouteRegistrars are populated by the application entry point to mount
	// domain handlers without import cycles between core and handler packages.
	APIRouteRegistrars []APIRouteRegistrar

	// shutdownHooks run in registration order during Shutdown.
	shutdownHooks []func() error

	// Internal router
	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a "fail-fast" check on critical
// configuration.
//
// The caller is responsible for mounting routes (via MountRoutes or equivalent)
// after construction. This separation allows tests to customize route
// registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		Responder: NewResponder(cfg.Environment),
		router:    chi.NewRouter(),
	}

	return s, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
// This is used internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a cleanup hook (e.g., closing the database pool) to be
// executed during graceful shutdown, in registration order.
func (s *Server) OnShutdown(hook func() error) {
	s.shutdownHooks = append(s.shutdownHooks, hook)
}

// Shutdown performs a graceful termination of server resources by running all
// registered shutdown hooks. The first hook error is returned, after all
// hooks have run.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var firstErr error
	for _, hook := range s.shutdownHooks {
		if err := hook(); err != nil {
			s.Logger.Error("shutdown hook failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.Logger.Info("server shutdown complete")
	return firstErr
}

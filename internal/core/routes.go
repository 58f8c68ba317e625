package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"zodforge/internal/types"
)

// defaultRequestTimeout is the soft deadline applied to request contexts.
// Checkout and webhook handlers each make one outbound call, so anything
// still running after 29 seconds is stuck.
const defaultRequestTimeout = 29 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in request
// logs to prevent accidental leakage of credentials or webhook signatures.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"Stripe-Signature",
}

// APIRouteRegistrar mounts a group of domain handler routes onto the /api
// subtree. The application entry point populates Server.APIRouteRegistrars
// before calling MountRoutes.
type APIRouteRegistrar func(r chi.Router)

// MountRoutes defines the top-level routing hierarchy.
// It registers the global middleware chain, the /api group, and the top-level
// health check.
func (s *Server) MountRoutes() {
	// Global Middleware Registration (strict order matters).
	s.registerGlobalMiddleware()

	// Domain handlers live under /api (e.g., /api/v1/checkout).
	s.router.Route("/api", s.mountAPI)

	// Top-Level Routes (outside /api namespace)
	s.router.Get("/health", s.HandleHealth)
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering Rationale:
//  1. Recoverer        - Catches panics; outermost to catch all failures.
//  2. ContextTimeout   - Sets soft deadline on the request context.
//  3. RequestID        - Generates/propagates correlation ID for tracing.
//  4. SecurityHeaders  - Ensures all responses include security headers.
//  5. RequestLogger    - Structured logging (redacted headers).
//  6. CORS             - Browser security headers.
//
// Origin checks, rate limiting and body caps are not global middleware: they
// guard only the checkout endpoint and run inside its handler, so that the
// Stripe webhook (server-to-server, no Origin header) is never throttled.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
}

// mountAPI registers all /api endpoints via the registrars populated by the
// application entry point. This indirection avoids import cycles between core
// and handler packages.
func (s *Server) mountAPI(r chi.Router) {
	for _, registrar := range s.APIRouteRegistrars {
		registrar(r)
	}
}

// corsAllowedOrigins returns the CORS allowed origins from configuration.
func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Security.AllowedOrigins) > 0 {
		return s.Config.Security.AllowedOrigins
	}
	return []string{"*"}
}

// ContextTimeoutMiddleware sets a deadline on the request context. If the
// deadline is exceeded, downstream handlers receive a cancelled context; the
// response is controlled by the handler's behavior on context cancellation.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware generates or propagates a unique request ID for
// correlation across logs and traces. If the incoming request contains an
// X-Request-Id header, that value is reused; otherwise, a new random ID is
// generated.
//
// The request ID is stored in the context via types.WithRequestID and set as
// the X-Request-Id response header for client correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Store in context for downstream access.
		ctx := types.WithRequestID(r.Context(), requestID)

		// Set the response header so clients can correlate responses.
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID produces a cryptographically random hex string suitable
// for use as a request correlation ID. It generates 16 random bytes encoded
// as 32 hex characters.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback: this should never happen in practice. If crypto/rand
		// fails, we still need a non-empty ID for correlation.
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

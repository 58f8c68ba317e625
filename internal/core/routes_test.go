package core

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"zodforge/internal/config"
)

func TestMountRoutesHealthEndpoint(t *testing.T) {
	s := testServer(t, config.EnvProduction)
	s.MountRoutes()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", rec.Code)
	}
}

func TestMountRoutesRegistrars(t *testing.T) {
	s := testServer(t, config.EnvProduction)
	s.APIRouteRegistrars = append(s.APIRouteRegistrars, func(r chi.Router) {
		r.Post("/create-checkout-session", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	s.MountRoutes()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/create-checkout-session", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("POST /api/create-checkout-session status = %d, want 200", rec.Code)
	}
}

func TestRequestIDMiddlewareGenerates(t *testing.T) {
	var captured string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = w.Header().Get("X-Request-Id")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if captured == "" {
		t.Error("X-Request-Id response header not set")
	}
	if len(captured) != 32 {
		t.Errorf("generated request ID length = %d, want 32 hex chars", len(captured))
	}
}

func TestRequestIDMiddlewarePropagates(t *testing.T) {
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "client-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "client-supplied-id" {
		t.Errorf("X-Request-Id = %q, want client-supplied-id", got)
	}
}

func TestContextTimeoutMiddleware(t *testing.T) {
	handler := ContextTimeoutMiddleware(defaultRequestTimeout)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); !ok {
			t.Error("request context has no deadline")
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
}

// Package admission guards the public checkout endpoint. It bundles the three
// pre-handler checks applied to browser traffic: the origin allow-list, a
// fixed-window per-client rate limit, and the request body size cap.
//
// The guard is injected into handlers rather than installed as global
// middleware so that server-to-server endpoints (the Stripe webhook) are never
// throttled and tests can drive the clock deterministically.
package admission

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"zodforge/internal/config"
	"zodforge/internal/types"
)

// windowState tracks one client's requests inside the current fixed window.
type windowState struct {
	count   int
	resetAt time.Time
}

// RateResult is the outcome of a rate limit check.
type RateResult struct {
	// Allowed indicates whether the request is within the rate limit.
	Allowed bool
	// Remaining is the number of requests remaining in the current window.
	Remaining int
	// RetryAfter is the whole-second wait the client is told to observe when
	// denied, rounded up. Zero when the request is allowed.
	RetryAfter int
	// ResetAt is the time when the current window resets.
	ResetAt time.Time
}

// Guard performs admission checks for the checkout endpoint.
type Guard struct {
	allowedOrigins []string
	defaultOrigin  string
	limit          int
	window         time.Duration
	maxBody        int64
	clock          types.Clock

	mu      sync.Mutex
	windows map[string]*windowState
}

// New constructs a Guard from the security configuration. The clock is
// injectable for tests; pass types.RealClock{} in production.
func New(sec config.SecurityConfig, defaultOrigin string, clock types.Clock) *Guard {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Guard{
		allowedOrigins: sec.AllowedOrigins,
		defaultOrigin:  defaultOrigin,
		limit:          sec.RateLimitMax,
		window:         sec.RateLimitWindow,
		maxBody:        sec.MaxBodyBytes,
		clock:          clock,
		windows:        make(map[string]*windowState),
	}
}

// CheckOrigin verifies the Origin header against the allow-list. Requests
// without an Origin header are allowed: they are server-to-server calls or
// same-origin form posts, and CORS does not apply to them. A present but
// unlisted origin is rejected before any rate limit budget is consumed.
func (g *Guard) CheckOrigin(origin string) error {
	if origin == "" {
		return nil
	}
	for _, allowed := range g.allowedOrigins {
		if origin == allowed {
			return nil
		}
	}
	return types.NewAppError(types.ErrCodeForbiddenOrigin, "Origin not allowed", nil)
}

// SafeOrigin picks the origin used to build Stripe redirect URLs. It trusts
// the Origin header, then the Referer, but only when one of them prefix-matches
// an allow-listed origin. Anything else falls back to the canonical public
// origin so that redirect URLs can never point at an attacker's site.
func (g *Guard) SafeOrigin(origin, referer string) string {
	for _, candidate := range []string{origin, referer} {
		if candidate == "" {
			continue
		}
		for _, allowed := range g.allowedOrigins {
			if strings.HasPrefix(candidate, allowed) {
				return allowed
			}
		}
	}
	return g.defaultOrigin
}

// CheckRate applies the fixed-window rate limit for the given client key.
// The first request in a window (or after the previous window expired) resets
// the counter. Once the limit is reached, further requests in the window are
// denied with the number of whole seconds until the window resets.
//
// Windows are kept in memory; state resets on process restart, which is
// acceptable for an abuse brake on a single-instance deployment.
func (g *Guard) CheckRate(key string) RateResult {
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok := g.windows[key]
	if !ok || now.After(state.resetAt) {
		g.windows[key] = &windowState{count: 1, resetAt: now.Add(g.window)}
		return RateResult{Allowed: true, Remaining: g.limit - 1, ResetAt: now.Add(g.window)}
	}

	if state.count >= g.limit {
		retry := int((state.resetAt.Sub(now) + time.Second - 1) / time.Second)
		if retry < 0 {
			retry = 0
		}
		return RateResult{Allowed: false, Remaining: 0, RetryAfter: retry, ResetAt: state.resetAt}
	}

	state.count++
	return RateResult{Allowed: true, Remaining: g.limit - state.count, ResetAt: state.resetAt}
}

// Limit returns the configured per-window request limit, used by handlers to
// populate the X-RateLimit-Limit response header.
func (g *Guard) Limit() int {
	return g.limit
}

// CheckBodySize rejects requests whose declared Content-Length exceeds the
// configured cap. Chunked requests (no Content-Length) pass here and are
// bounded later by the JSON decoder's MaxBytesReader.
func (g *Guard) CheckBodySize(contentLength int64) error {
	if contentLength > g.maxBody {
		return types.NewAppError(
			types.ErrCodePayloadTooLarge,
			fmt.Sprintf("Request body must not exceed %d bytes", g.maxBody),
			nil,
		)
	}
	return nil
}

// ClientKey derives the rate limiting key for a request. Railway terminates
// TLS in front of the service, so the client address arrives in
// X-Forwarded-For (first hop) or X-Real-Ip.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return real
	}
	return "unknown"
}

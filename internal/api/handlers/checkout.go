// Package handlers contains the HTTP handler implementations for the
// ZodForge Cloud landing backend.
//
// This file implements checkout session creation. The endpoint is public
// (the landing page calls it before any customer exists), so it carries its
// own admission checks: origin allow-list, per-client rate limit, and a
// request body size cap.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"zodforge/internal/admission"
	"zodforge/internal/core"
	"zodforge/internal/external"
	"zodforge/internal/types"
)

// checkoutRequest is the JSON body accepted by the checkout endpoint.
type checkoutRequest struct {
	PriceID string `json:"priceId" validate:"required"`
	Tier    string `json:"tier"`
	Email   string `json:"email" validate:"omitempty,email"`
}

// checkoutResponse is returned on success. The URL is the Stripe-hosted
// payment page the frontend redirects to.
type checkoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// CheckoutHandler creates Stripe checkout sessions for the landing page.
type CheckoutHandler struct {
	guard     *admission.Guard
	checkout  external.CheckoutService
	validator *core.Validator
	respond   *core.Responder
	logger    *slog.Logger
}

// NewCheckoutHandler creates a CheckoutHandler with the provided dependencies.
func NewCheckoutHandler(
	guard *admission.Guard,
	checkout external.CheckoutService,
	validator *core.Validator,
	respond *core.Responder,
	logger *slog.Logger,
) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{
		guard:     guard,
		checkout:  checkout,
		validator: validator,
		respond:   respond,
		logger:    logger,
	}
}

// RegisterRoutes mounts the checkout endpoint.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/checkout", h.Handle)
}

// Handle creates a checkout session.
//
// Admission order matters: the origin check runs before the rate limit so a
// blocked caller is told 403 without burning a slot in some client's window,
// and the body cap runs before any decode work.
func (h *CheckoutHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.CheckOrigin(r.Header.Get("Origin")); err != nil {
		h.logger.WarnContext(r.Context(), "checkout request from disallowed origin",
			"origin", r.Header.Get("Origin"),
		)
		h.respond.Error(w, r, err)
		return
	}

	rate := h.guard.CheckRate(admission.ClientKey(r))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.guard.Limit()))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rate.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rate.ResetAt.Unix(), 10))
	if !rate.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(rate.RetryAfter))
		h.respond.Error(w, r, types.NewAppError(
			types.ErrCodeRateLimit,
			"Too many requests. Please try again later.",
			nil,
		))
		return
	}

	if err := h.guard.CheckBodySize(r.ContentLength); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	var req checkoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	tier := types.NormalizeTier(req.Tier)
	origin := h.guard.SafeOrigin(r.Header.Get("Origin"), r.Header.Get("Referer"))

	session, err := h.checkout.CreateCheckoutSession(r.Context(), external.CheckoutParams{
		PriceID:       req.PriceID,
		Tier:          tier,
		Origin:        origin,
		CustomerEmail: req.Email,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create checkout session",
			"tier", string(tier),
			"error", err,
		)
		h.respond.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "checkout session created",
		"session_id", session.ID,
		"tier", string(tier),
	)
	core.JSON(w, r, http.StatusOK, checkoutResponse{
		URL:       session.URL,
		SessionID: session.ID,
	})
}

// This file implements the Stripe webhook handler. The endpoint is NOT
// behind the checkout admission checks: Stripe calls it directly and must
// never be throttled or origin-filtered. Security comes from verifying the
// Stripe-Signature header with HMAC-SHA256.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zodforge/internal/core"
	"zodforge/internal/external"
	"zodforge/internal/types"
)

// maxWebhookBodySize is the maximum allowed size of a Stripe webhook payload
// (64 KB). Stripe payloads are typically small; this limit protects against
// abuse.
const maxWebhookBodySize = 64 * 1024

// Provisioner is the provisioning surface the webhook handler needs.
// *provisioning.Service satisfies it.
type Provisioner interface {
	// Provision creates a customer, generates an API key, and emails it.
	// Idempotent on the checkout session ID.
	Provision(ctx context.Context, event types.CheckoutEvent) error
	// SyncSubscriptionStatus updates a customer's subscription lifecycle state.
	SyncSubscriptionStatus(ctx context.Context, stripeCustomerID string, status types.SubscriptionStatus) error
}

// StripeWebhookHandler handles asynchronous events from Stripe.
type StripeWebhookHandler struct {
	verifier    external.WebhookVerifier
	provisioner Provisioner
	respond     *core.Responder
	secret      string
	logger      *slog.Logger
}

// NewStripeWebhookHandler creates a StripeWebhookHandler with the provided
// dependencies.
func NewStripeWebhookHandler(
	verifier external.WebhookVerifier,
	provisioner Provisioner,
	respond *core.Responder,
	secret string,
	logger *slog.Logger,
) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier:    verifier,
		provisioner: provisioner,
		respond:     respond,
		secret:      secret,
		logger:      logger,
	}
}

// RegisterRoutes mounts the Stripe webhook endpoint.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/webhooks/stripe", h.Handle)
}

// Handle processes incoming Stripe webhook events.
//
//  1. Reads the raw body with a size limit.
//  2. Verifies the Stripe-Signature header.
//  3. Parses the event JSON and routes by event type.
//  4. checkout.session.completed failures return 500 so Stripe retries;
//     subscription sync failures are logged and acknowledged.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body",
			"error", err,
		)
		h.respond.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"Failed to read request body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		h.respond.Error(w, r, types.NewAppError(
			types.ErrCodeSignatureMissing,
			"Missing signature",
			nil,
		))
		return
	}

	if err := h.verifier.Verify(payload, sigHeader, h.secret); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed",
			"error", err,
		)
		h.respond.Error(w, r, types.NewAppError(
			types.ErrCodeSignatureInvalid,
			"Invalid signature",
			err,
		))
		return
	}

	var event stripeWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to parse webhook event JSON",
			"error", err,
		)
		h.respond.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"Invalid webhook event JSON",
			err,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	if err := h.routeEvent(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		// Provisioning failures must surface as 5xx so Stripe retries the
		// delivery; the insert is idempotent on the session ID so a retry
		// cannot double-provision.
		h.respond.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, map[string]bool{"received": true})
}

// routeEvent dispatches the webhook event based on its type.
func (h *StripeWebhookHandler) routeEvent(ctx context.Context, event *stripeWebhookEvent) error {
	switch event.Type {
	case external.EventStripeCheckoutCompleted:
		return h.handleCheckoutCompleted(ctx, event)

	case external.EventStripeSubUpdated:
		return h.handleSubscriptionUpdated(ctx, event)

	case external.EventStripeSubDeleted:
		return h.handleSubscriptionDeleted(ctx, event)

	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"event_type", event.Type,
		)
		return nil
	}
}

// handleCheckoutCompleted processes checkout.session.completed events by
// provisioning the customer and delivering their API key.
func (h *StripeWebhookHandler) handleCheckoutCompleted(ctx context.Context, event *stripeWebhookEvent) error {
	session, err := event.checkoutSession()
	if err != nil {
		return fmt.Errorf("checkout.session.completed: event %s: %w", event.ID, err)
	}
	if session.CustomerDetails.Email == "" {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"Checkout session has no customer email",
			fmt.Errorf("event %s session %s", event.ID, session.ID),
		)
	}

	return h.provisioner.Provision(ctx, types.CheckoutEvent{
		EventID:          event.ID,
		SessionID:        session.ID,
		StripeCustomerID: session.Customer,
		Email:            session.CustomerDetails.Email,
		Tier:             types.NormalizeTier(session.Metadata["tier"]),
	})
}

// handleSubscriptionUpdated syncs the subscription status reported by Stripe.
// Sync failures are logged and acknowledged; Stripe retrying these events
// would not help.
func (h *StripeWebhookHandler) handleSubscriptionUpdated(ctx context.Context, event *stripeWebhookEvent) error {
	sub, err := event.subscription()
	if err != nil {
		return fmt.Errorf("customer.subscription.updated: event %s: %w", event.ID, err)
	}

	status := types.SubscriptionStatus(sub.Status)
	if err := h.provisioner.SyncSubscriptionStatus(ctx, sub.Customer, status); err != nil {
		h.logger.ErrorContext(ctx, "subscription status sync failed",
			"event_id", event.ID,
			"stripe_customer_id", sub.Customer,
			"status", sub.Status,
			"error", err,
		)
	}
	return nil
}

// handleSubscriptionDeleted marks the customer's subscription canceled.
func (h *StripeWebhookHandler) handleSubscriptionDeleted(ctx context.Context, event *stripeWebhookEvent) error {
	sub, err := event.subscription()
	if err != nil {
		return fmt.Errorf("customer.subscription.deleted: event %s: %w", event.ID, err)
	}

	if err := h.provisioner.SyncSubscriptionStatus(ctx, sub.Customer, types.SubStatusCanceled); err != nil {
		h.logger.ErrorContext(ctx, "subscription cancellation sync failed",
			"event_id", event.ID,
			"stripe_customer_id", sub.Customer,
			"error", err,
		)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Stripe Event Parsing
// ---------------------------------------------------------------------------

// stripeWebhookEvent is a minimal representation of a Stripe webhook event
// tailored to the fields needed for routing and processing. We avoid the
// full stripe.Event type to keep the handler decoupled from the stripe-go
// library and to make testing straightforward.
type stripeWebhookEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// stripeEventData wraps the event data object.
type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

// stripeCheckoutSessionObj holds the minimal fields from a
// checkout.session.completed event's data object.
type stripeCheckoutSessionObj struct {
	ID              string             `json:"id"`
	Customer        string             `json:"customer"`
	CustomerDetails stripeCustomerInfo `json:"customer_details"`
	Metadata        map[string]string  `json:"metadata"`
}

type stripeCustomerInfo struct {
	Email string `json:"email"`
}

// stripeSubscriptionObj holds the minimal fields from a
// customer.subscription.updated/deleted event's data object.
type stripeSubscriptionObj struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
}

func (e *stripeWebhookEvent) checkoutSession() (*stripeCheckoutSessionObj, error) {
	var data stripeEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("malformed event data: %w", err)
	}
	var session stripeCheckoutSessionObj
	if err := json.Unmarshal(data.Object, &session); err != nil {
		return nil, fmt.Errorf("malformed checkout session object: %w", err)
	}
	return &session, nil
}

func (e *stripeWebhookEvent) subscription() (*stripeSubscriptionObj, error) {
	var data stripeEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("malformed event data: %w", err)
	}
	var sub stripeSubscriptionObj
	if err := json.Unmarshal(data.Object, &sub); err != nil {
		return nil, fmt.Errorf("malformed subscription object: %w", err)
	}
	return &sub, nil
}

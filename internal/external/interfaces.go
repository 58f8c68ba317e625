package external

import (
	"context"

	"zodforge/internal/types"
)

// ---------------------------------------------------------------------------
// Billing Integration (Stripe)
// ---------------------------------------------------------------------------

// CheckoutParams carries everything needed to open a Stripe Checkout session
// for a landing page visitor.
type CheckoutParams struct {
	// PriceID is the Stripe price the visitor is subscribing to.
	PriceID string
	// Tier is recorded in session and subscription metadata so the webhook
	// can provision the right plan.
	Tier types.Tier
	// Origin is the allow-listed origin used to build success/cancel URLs.
	Origin string
	// CustomerEmail pre-fills the checkout form when the visitor supplied it.
	CustomerEmail string
}

// CheckoutSession is the subset of Stripe's checkout session the frontend
// needs: where to redirect the visitor, and the session ID for correlation.
type CheckoutSession struct {
	URL string
	ID  string
}

// CheckoutService abstracts interactions with the payment provider (Stripe).
// Implementations translate between domain types and vendor-specific APIs.
type CheckoutService interface {
	// CreateCheckoutSession generates a Stripe Checkout URL for the visitor
	// to enter payment info.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
}

// WebhookVerifier abstracts Stripe webhook signature checking.
type WebhookVerifier interface {
	// Verify validates a webhook payload against the provided signature header
	// and signing secret. Returns nil on success, an error on failure.
	Verify(payload []byte, header string, secret string) error
}

// Stripe event type constants prevent magic strings in webhook handlers.
const (
	EventStripeCheckoutCompleted = "checkout.session.completed"
	EventStripeSubUpdated        = "customer.subscription.updated"
	EventStripeSubDeleted        = "customer.subscription.deleted"
)

// ---------------------------------------------------------------------------
// Email Integration (Resend)
// ---------------------------------------------------------------------------

// EmailProvider abstracts interactions with the email delivery service.
// Implementations transmit pre-rendered email content.
type EmailProvider interface {
	// Send transmits an email with pre-rendered content.
	// Returns the provider's message ID for tracking and correlation.
	Send(ctx context.Context, msg types.EmailMessage) (providerMsgID string, err error)
}

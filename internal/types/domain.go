package types

import "time"

// Tier identifies the subscription plan a customer purchased.
type Tier string

const (
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// DefaultTier is assumed when a checkout session carries no tier metadata.
const DefaultTier = TierPro

// NormalizeTier maps a raw metadata value to a Tier, falling back to the
// default for empty or unknown values.
func NormalizeTier(raw string) Tier {
	switch Tier(raw) {
	case TierPro, TierEnterprise:
		return Tier(raw)
	default:
		return DefaultTier
	}
}

// SubscriptionStatus mirrors Stripe's subscription status strings. Values are
// stored verbatim so that status sync never lags behind new Stripe states.
type SubscriptionStatus string

const (
	SubStatusActive   SubscriptionStatus = "active"
	SubStatusPastDue  SubscriptionStatus = "past_due"
	SubStatusCanceled SubscriptionStatus = "canceled"
	SubStatusUnpaid   SubscriptionStatus = "unpaid"
)

// Customer is a provisioned account created from a completed checkout.
// The plaintext API key is never stored; only its SHA-256 hash.
type Customer struct {
	ID                 string
	Email              string
	StripeCustomerID   string
	CheckoutSessionID  string
	APIKeyHash         string
	Tier               Tier
	SubscriptionStatus SubscriptionStatus
	KeyDeliveredAt     *time.Time
	CreatedAt          time.Time
}

// CheckoutEvent carries the fields extracted from a checkout.session.completed
// webhook that the provisioning workflow needs.
type CheckoutEvent struct {
	EventID          string
	SessionID        string
	StripeCustomerID string
	Email            string
	Tier             Tier
}

// EmailMessage is a fully rendered email ready for transmission by an
// EmailProvider implementation.
type EmailMessage struct {
	From    string
	To      string
	Subject string
	HTML    string
}

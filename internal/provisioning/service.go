// Package provisioning implements the customer provisioning workflow: when a
// Stripe checkout completes, a customer record is created, an API key is
// generated, and the key is delivered by email. All operations are idempotent
// on the checkout session so Stripe webhook retries cannot mint duplicate
// keys for a customer who already received one.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"zodforge/internal/keygen"
	"zodforge/internal/notifications/email"
	"zodforge/internal/types"
)

// CustomerStore is the persistence surface the provisioning service needs.
// *db.CustomerRepository satisfies it.
type CustomerStore interface {
	// InsertProvisioned creates or refreshes a customer row keyed by the
	// checkout session. It returns false when the customer already has a
	// delivered key and nothing was written.
	InsertProvisioned(ctx context.Context, c *types.Customer) (bool, error)
	// MarkKeyDelivered records that the onboarding email reached the provider.
	MarkKeyDelivered(ctx context.Context, checkoutSessionID string) error
	// GetByEmail looks up a customer for manual key resends.
	GetByEmail(ctx context.Context, email string) (*types.Customer, error)
	// UpdateKeyHash replaces the stored key hash, invalidating the prior key.
	UpdateKeyHash(ctx context.Context, customerID, keyHash string) error
	// UpdateSubscriptionStatus syncs the lifecycle state from Stripe.
	UpdateSubscriptionStatus(ctx context.Context, stripeCustomerID string, status types.SubscriptionStatus) error
}

// KeySender delivers a plaintext API key to a customer.
// *email.Sender satisfies it.
type KeySender interface {
	SendKey(ctx context.Context, to string, tier types.Tier, apiKey string) (string, error)
}

// Service orchestrates key generation, persistence, and delivery.
type Service struct {
	store  CustomerStore
	sender KeySender
	logger *slog.Logger
}

// NewService constructs a provisioning Service.
func NewService(store CustomerStore, sender KeySender, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		sender: sender,
		logger: logger,
	}
}

// Provision handles a completed checkout: generate a key, persist the
// customer with the key's hash, and email the plaintext key.
//
// Delivery state is tracked separately from the customer row. If the email
// fails after the row was written, the row stays undelivered and a webhook
// retry (or the resend tool) generates a fresh key and tries again. If the
// customer already received a key, the event is acknowledged without any
// writes or sends.
func (s *Service) Provision(ctx context.Context, event types.CheckoutEvent) error {
	key, err := keygen.Generate()
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "Failed to generate API key", err)
	}

	customer := &types.Customer{
		Email:              event.Email,
		StripeCustomerID:   event.StripeCustomerID,
		CheckoutSessionID:  event.SessionID,
		APIKeyHash:         key.Hash,
		Tier:               event.Tier,
		SubscriptionStatus: types.SubStatusActive,
	}

	created, err := s.store.InsertProvisioned(ctx, customer)
	if err != nil {
		return err
	}
	if !created {
		s.logger.InfoContext(ctx, "customer already provisioned, skipping key delivery",
			"checkout_session_id", event.SessionID,
			"event_id", event.EventID,
		)
		return nil
	}

	if _, err := s.sender.SendKey(ctx, event.Email, event.Tier, key.Plaintext); err != nil {
		return fmt.Errorf("provisioning: key delivery for session %s failed: %w", event.SessionID, err)
	}

	if err := s.store.MarkKeyDelivered(ctx, event.SessionID); err != nil {
		// The customer has their key; a stale delivery flag only risks one
		// redundant email on a webhook retry.
		s.logger.ErrorContext(ctx, "failed to mark key delivered",
			"checkout_session_id", event.SessionID,
			"error", err,
		)
		return nil
	}

	s.logger.InfoContext(ctx, "customer provisioned",
		"checkout_session_id", event.SessionID,
		"tier", string(event.Tier),
		"key_preview", keygen.Preview(key.Plaintext),
	)
	return nil
}

// SyncSubscriptionStatus updates a customer's subscription lifecycle state.
// A missing customer is logged and swallowed: subscription events can arrive
// for customers provisioned outside this system, and Stripe should not retry
// them.
func (s *Service) SyncSubscriptionStatus(ctx context.Context, stripeCustomerID string, status types.SubscriptionStatus) error {
	err := s.store.UpdateSubscriptionStatus(ctx, stripeCustomerID, status)
	if err == nil {
		s.logger.InfoContext(ctx, "subscription status synced",
			"stripe_customer_id", stripeCustomerID,
			"status", string(status),
		)
		return nil
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundCustomer {
		s.logger.WarnContext(ctx, "subscription event for unknown customer",
			"stripe_customer_id", stripeCustomerID,
			"status", string(status),
		)
		return nil
	}
	return err
}

// ResendKey generates a fresh API key for an existing customer and emails it.
// The previous key stops working as soon as the new hash is stored.
func (s *Service) ResendKey(ctx context.Context, customerEmail string) error {
	customer, err := s.store.GetByEmail(ctx, customerEmail)
	if err != nil {
		return err
	}

	key, err := keygen.Generate()
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "Failed to generate API key", err)
	}

	if err := s.store.UpdateKeyHash(ctx, customer.ID, key.Hash); err != nil {
		return err
	}

	if _, err := s.sender.SendKey(ctx, customer.Email, customer.Tier, key.Plaintext); err != nil {
		return fmt.Errorf("provisioning: key resend to %s failed: %w", email.RedactEmail(customer.Email), err)
	}

	s.logger.InfoContext(ctx, "api key resent",
		"customer_id", customer.ID,
		"to", email.RedactEmail(customer.Email),
		"key_preview", keygen.Preview(key.Plaintext),
	)
	return nil
}

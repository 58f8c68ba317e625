package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"zodforge/internal/types"
)

// CustomerRepository provides data access for the customers table.
type CustomerRepository struct {
	db DBTX
}

// NewCustomerRepository creates a new CustomerRepository backed by the given
// database connection (pool or transaction).
func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// customerColumns defines the standard set of columns selected for customer
// queries. Used consistently across all query methods to avoid column drift.
const customerColumns = `c.id, c.email, c.stripe_customer_id, c.checkout_session_id,
	c.api_key_hash, c.tier, c.subscription_status, c.key_delivered_at, c.created_at`

// scanCustomer scans a single customer row into a types.Customer struct.
// The columns must match the order defined in customerColumns.
func scanCustomer(row pgx.Row) (*types.Customer, error) {
	var (
		c              types.Customer
		keyDeliveredAt *time.Time
	)
	err := row.Scan(
		&c.ID,
		&c.Email,
		&c.StripeCustomerID,
		&c.CheckoutSessionID,
		&c.APIKeyHash,
		&c.Tier,
		&c.SubscriptionStatus,
		&keyDeliveredAt,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.KeyDeliveredAt = keyDeliveredAt
	return &c, nil
}

// InsertProvisioned records a customer provisioned from a completed checkout
// session. The insert is idempotent on checkout_session_id: Stripe retries
// webhook deliveries, and each retry must not mint a second customer row.
//
// Behavior per delivery attempt:
//   - First delivery inserts the row and returns created=true.
//   - A retry before the onboarding email went out overwrites the key hash
//     (the retry generated a fresh key that will now be emailed) and returns
//     created=true so the caller sends that email.
//   - A retry after the key was delivered changes nothing and returns
//     created=false; the caller must not email again.
func (r *CustomerRepository) InsertProvisioned(ctx context.Context, c *types.Customer) (bool, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO customers (
			id, email, stripe_customer_id, checkout_session_id,
			api_key_hash, tier, subscription_status
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (checkout_session_id) DO UPDATE
			SET api_key_hash = EXCLUDED.api_key_hash,
			    email        = EXCLUDED.email
			WHERE customers.key_delivered_at IS NULL
		 RETURNING id`,
		c.ID,
		c.Email,
		c.StripeCustomerID,
		c.CheckoutSessionID,
		c.APIKeyHash,
		c.Tier,
		c.SubscriptionStatus,
	)

	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict row exists and the key was already delivered; the
			// DO UPDATE's WHERE clause suppressed the write.
			return false, nil
		}
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to insert customer", err)
	}
	c.ID = id
	return true, nil
}

// MarkKeyDelivered records that the onboarding email containing the API key
// was handed to the email provider. After this point retried webhooks become
// no-ops for the session.
func (r *CustomerRepository) MarkKeyDelivered(ctx context.Context, checkoutSessionID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE customers SET key_delivered_at = NOW()
		 WHERE checkout_session_id = $1 AND key_delivered_at IS NULL`,
		checkoutSessionID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark key delivered", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundCustomer, "customer not found for checkout session", nil)
	}
	return nil
}

// GetByEmail retrieves a customer by email address.
// Returns ErrCodeNotFoundCustomer if no customer exists.
func (r *CustomerRepository) GetByEmail(ctx context.Context, email string) (*types.Customer, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+customerColumns+`
		 FROM customers c
		 WHERE c.email = $1`,
		email,
	)

	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCustomer, "customer not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve customer", err)
	}
	return c, nil
}

// UpdateKeyHash replaces the stored API key hash for a customer. Used by the
// manual resend flow; the previous key stops working immediately since only
// the new hash remains.
func (r *CustomerRepository) UpdateKeyHash(ctx context.Context, customerID, keyHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE customers SET api_key_hash = $2 WHERE id = $1`,
		customerID,
		keyHash,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update key hash", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundCustomer, "customer not found", nil)
	}
	return nil
}

// UpdateSubscriptionStatus syncs the Stripe subscription status for the
// customer identified by their Stripe customer ID.
// Returns ErrCodeNotFoundCustomer if no matching row exists (e.g., a
// subscription event arrived before the checkout completed event).
func (r *CustomerRepository) UpdateSubscriptionStatus(ctx context.Context, stripeCustomerID string, status types.SubscriptionStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE customers SET subscription_status = $2 WHERE stripe_customer_id = $1`,
		stripeCustomerID,
		status,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundCustomer, "no customer for stripe customer id", nil)
	}
	return nil
}

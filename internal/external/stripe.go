package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"zodforge/internal/types"

	stripe "github.com/stripe/stripe-go/v82"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeClientConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	SecretKey string
	BaseURL   string // Override for testing; defaults to stripeAPIBase
	Logger    *slog.Logger
}

// StripeClient implements CheckoutService by making direct HTTP calls to the
// Stripe REST API through BaseClient. This approach routes all requests
// through the platform's resilience infrastructure (circuit breaker, retries,
// error mapping) and makes testing with httptest straightforward.
type StripeClient struct {
	base      *BaseClient
	secretKey string
	baseURL   string
	logger    *slog.Logger
}

// NewStripeClient creates a new StripeClient. The httpClient timeout should be
// around 20 seconds; checkout session creation is a single synchronous call on
// the visitor's critical path.
func NewStripeClient(httpClient *http.Client, cfg StripeClientConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"stripe",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"ZodForge/1.0",
		WithSleepFunc(time.Sleep),
	)

	return &StripeClient{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// NewStripeClientWithBase creates a StripeClient with a pre-configured BaseClient.
// This is useful for testing when you want to control the BaseClient configuration.
func NewStripeClientWithBase(base *BaseClient, cfg StripeClientConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StripeClient{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// Compile-time interface check.
var _ CheckoutService = (*StripeClient)(nil)

// CreateCheckoutSession generates a Stripe Checkout Session for a subscription
// purchase. The tier is written to both the session metadata and the
// subscription metadata so that provisioning and later subscription events can
// both recover it. Redirect URLs are built from the caller-verified origin.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := url.Values{}
	params.Set("mode", "subscription")
	params.Set("payment_method_types[0]", "card")
	params.Set("line_items[0][price]", p.PriceID)
	params.Set("line_items[0][quantity]", "1")
	params.Set("success_url", p.Origin+"/success?session_id={CHECKOUT_SESSION_ID}")
	params.Set("cancel_url", p.Origin+"/#pricing")
	params.Set("metadata[tier]", string(p.Tier))
	params.Set("subscription_data[metadata][tier]", string(p.Tier))
	params.Set("allow_promotion_codes", "true")
	params.Set("billing_address_collection", "required")
	if p.CustomerEmail != "" {
		params.Set("customer_email", p.CustomerEmail)
	}

	resp, err := s.doPost(ctx, "/v1/checkout/sessions", params)
	if err != nil {
		return nil, s.wrapStripeError("CreateCheckoutSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "CreateCheckoutSession")
	}

	var session stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe checkout session response",
			err,
		)
	}

	return &CheckoutSession{URL: session.URL, ID: session.ID}, nil
}

// doPost performs an authenticated POST request to the Stripe API with
// form-encoded body.
func (s *StripeClient) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := s.baseURL + path
	body := params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

// setAuthHeaders sets the Stripe API authentication and content headers.
func (s *StripeClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)
}

// ---------------------------------------------------------------------------
// Error Handling
// ---------------------------------------------------------------------------

// stripeErrorResponse represents the JSON error body returned by the Stripe API.
type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
	DocURL  string `json:"doc_url"`
}

// handleErrorResponse reads a Stripe error response and maps it to a types.AppError.
func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d with non-JSON body", operation, resp.StatusCode),
			jsonErr,
		)
	}

	return s.mapStripeError(operation, resp.StatusCode, &stripeErr.Error)
}

// mapStripeError translates a Stripe error into a types.AppError.
func (s *StripeClient) mapStripeError(operation string, statusCode int, stripeErr *stripeErrorBody) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s: Stripe rate limit exceeded", operation),
			nil,
		)
	case statusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s: Stripe server error: %s", operation, stripeErr.Message),
			nil,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe error (%d): %s", operation, statusCode, stripeErr.Message),
			nil,
			map[string]any{
				"stripe_code": stripeErr.Code,
				"param":       stripeErr.Param,
			},
		)
	}
}

// wrapStripeError wraps a BaseClient transport error with context.
func (s *StripeClient) wrapStripeError(operation string, err error) error {
	// If it's already an AppError from BaseClient (circuit breaker, retries
	// exhausted), return it as-is since it already has the right error code.
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamStripe,
		fmt.Sprintf("%s: Stripe request failed: %v", operation, err),
		err,
	)
}

// ---------------------------------------------------------------------------
// Stripe Response Types (for JSON deserialization)
// ---------------------------------------------------------------------------

type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ---------------------------------------------------------------------------
// Webhook Verification
// ---------------------------------------------------------------------------

// StripeVerifier implements WebhookVerifier using stripe-go's webhook
// signature verification. This provides HMAC-SHA256 signature checking
// with timestamp tolerance.
type StripeVerifier struct{}

// Verify validates a Stripe webhook payload against the signature header
// and signing secret. Uses stripe-go's ValidatePayload which checks both
// the HMAC signature and the timestamp tolerance.
func (v *StripeVerifier) Verify(payload []byte, header string, secret string) error {
	return stripe.ValidatePayload(payload, header, secret)
}

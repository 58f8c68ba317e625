package external

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"zodforge/internal/types"
)

// ---------------------------------------------------------------------------
// Helper: Create test stripe client pointed at httptest server
// ---------------------------------------------------------------------------

func newTestStripeClient(t *testing.T, serverURL string) *StripeClient {
	t.Helper()
	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-stripe",
		RetryPolicy{
			MaxRetries: 0, // No retries in tests for deterministic behavior
			MinWait:    1 * time.Millisecond,
			MaxWait:    10 * time.Millisecond,
		},
		"ZodForge-Test/1.0",
		WithSleepFunc(noopSleep),
	)

	return NewStripeClientWithBase(base, StripeClientConfig{
		SecretKey: "sk_test_secret",
		BaseURL:   serverURL,
	})
}

func testCheckoutParams() CheckoutParams {
	return CheckoutParams{
		PriceID:       "price_pro_monthly",
		Tier:          types.TierPro,
		Origin:        "https://zodforge.dev",
		CustomerEmail: "dev@example.com",
	}
}

// ---------------------------------------------------------------------------
// CreateCheckoutSession Tests
// ---------------------------------------------------------------------------

func TestCreateCheckoutSession_Success(t *testing.T) {
	var gotForm map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("path = %s, want /v1/checkout/sessions", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk_test_secret" {
			t.Errorf("Authorization = %q", auth)
		}
		if r.Header.Get("Stripe-Version") == "" {
			t.Error("Stripe-Version header not set")
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", ct)
		}

		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		gotForm = make(map[string]string)
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":  "cs_test_abc123",
			"url": "https://checkout.stripe.com/c/pay/cs_test_abc123",
		})
	}))
	defer server.Close()

	client := newTestStripeClient(t, server.URL)
	session, err := client.CreateCheckoutSession(context.Background(), testCheckoutParams())
	if err != nil {
		t.Fatalf("CreateCheckoutSession() error = %v", err)
	}

	if session.ID != "cs_test_abc123" {
		t.Errorf("session ID = %q", session.ID)
	}
	if session.URL != "https://checkout.stripe.com/c/pay/cs_test_abc123" {
		t.Errorf("session URL = %q", session.URL)
	}

	wantParams := map[string]string{
		"mode":                              "subscription",
		"payment_method_types[0]":           "card",
		"line_items[0][price]":              "price_pro_monthly",
		"line_items[0][quantity]":           "1",
		"success_url":                       "https://zodforge.dev/success?session_id={CHECKOUT_SESSION_ID}",
		"cancel_url":                        "https://zodforge.dev/#pricing",
		"metadata[tier]":                    "pro",
		"subscription_data[metadata][tier]": "pro",
		"allow_promotion_codes":             "true",
		"billing_address_collection":        "required",
		"customer_email":                    "dev@example.com",
	}
	for k, want := range wantParams {
		if gotForm[k] != want {
			t.Errorf("form[%q] = %q, want %q", k, gotForm[k], want)
		}
	}
}

func TestCreateCheckoutSession_OmitsEmptyEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if _, present := r.PostForm["customer_email"]; present {
			t.Error("customer_email sent despite empty input")
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "cs_1", "url": "https://example.com"})
	}))
	defer server.Close()

	params := testCheckoutParams()
	params.CustomerEmail = ""

	client := newTestStripeClient(t, server.URL)
	if _, err := client.CreateCheckoutSession(context.Background(), params); err != nil {
		t.Fatalf("CreateCheckoutSession() error = %v", err)
	}
}

func TestCreateCheckoutSession_StripeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"type":    "invalid_request_error",
				"code":    "resource_missing",
				"message": "No such price: price_bogus",
				"param":   "line_items[0][price]",
			},
		})
	}))
	defer server.Close()

	client := newTestStripeClient(t, server.URL)
	_, err := client.CreateCheckoutSession(context.Background(), testCheckoutParams())
	if err == nil {
		t.Fatal("CreateCheckoutSession() error = nil, want error")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error type = %T, want *types.AppError", err)
	}
	if appErr.Code != types.ErrCodeUpstreamStripe {
		t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeUpstreamStripe)
	}
	if appErr.Details["stripe_code"] != "resource_missing" {
		t.Errorf("details = %v", appErr.Details)
	}
}

func TestCreateCheckoutSession_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestStripeClient(t, server.URL)
	_, err := client.CreateCheckoutSession(context.Background(), testCheckoutParams())
	if err == nil {
		t.Fatal("CreateCheckoutSession() error = nil, want error")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error type = %T, want *types.AppError", err)
	}
	if appErr.Code != types.ErrCodeUpstreamUnavailable {
		t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeUpstreamUnavailable)
	}
}

// ---------------------------------------------------------------------------
// StripeVerifier Tests
// ---------------------------------------------------------------------------

// signStripePayload builds a valid Stripe-Signature header over the payload
// using the same HMAC-SHA256 scheme stripe-go validates.
func signStripePayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeVerifier_ValidSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	header := signStripePayload(payload, "whsec_test", time.Now())

	verifier := &StripeVerifier{}
	if err := verifier.Verify(payload, header, "whsec_test"); err != nil {
		t.Errorf("Verify() error = %v, want nil", err)
	}
}

func TestStripeVerifier_WrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := signStripePayload(payload, "whsec_other", time.Now())

	verifier := &StripeVerifier{}
	if err := verifier.Verify(payload, header, "whsec_test"); err == nil {
		t.Error("Verify() error = nil, want signature mismatch")
	}
}

func TestStripeVerifier_TamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := signStripePayload(payload, "whsec_test", time.Now())

	verifier := &StripeVerifier{}
	if err := verifier.Verify([]byte(`{"id":"evt_2"}`), header, "whsec_test"); err == nil {
		t.Error("Verify() error = nil, want signature mismatch for tampered payload")
	}
}

func TestStripeVerifier_StaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := signStripePayload(payload, "whsec_test", time.Now().Add(-time.Hour))

	verifier := &StripeVerifier{}
	if err := verifier.Verify(payload, header, "whsec_test"); err == nil {
		t.Error("Verify() error = nil, want tolerance failure for stale timestamp")
	}
}

package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationInvalidEmail, http.StatusBadRequest},
		{ErrCodeValidationInvalidTier, http.StatusBadRequest},
		{ErrCodeSignatureMissing, http.StatusBadRequest},
		{ErrCodeSignatureInvalid, http.StatusBadRequest},
		{ErrCodeForbiddenOrigin, http.StatusForbidden},
		{ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeRateLimit, http.StatusTooManyRequests},
		{ErrCodeNotFoundCustomer, http.StatusNotFound},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrCodeUpstreamStripe, http.StatusBadGateway},
		{ErrCodeUpstreamEmailProvider, http.StatusBadGateway},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusBadGateway},
		{ErrorCode("something_new"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Errorf("%s: HTTPStatus() = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	appErr := NewAppError(ErrCodeInternalDB, "Database operation failed", cause)

	if !errors.Is(appErr, cause) {
		t.Error("errors.Is() should reach the wrapped cause")
	}

	var target *AppError
	if !errors.As(error(appErr), &target) {
		t.Fatal("errors.As() should match *AppError")
	}
	if target.Code != ErrCodeInternalDB {
		t.Errorf("Code = %q", target.Code)
	}
}

func TestSecretStringRedaction(t *testing.T) {
	secret := SecretString("sk_live_supersecret")

	if got := fmt.Sprintf("%v", secret); got != "***REDACTED***" {
		t.Errorf("fmt output = %q, want redacted placeholder", got)
	}
	if got := fmt.Sprintf("%s", secret); got != "***REDACTED***" {
		t.Errorf("fmt %%s output = %q, want redacted placeholder", got)
	}

	b, err := json.Marshal(struct {
		Key SecretString `json:"key"`
	}{Key: secret})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if string(b) != `{"key":"***REDACTED***"}` {
		t.Errorf("json output = %s", b)
	}

	if secret.Unmask() != "sk_live_supersecret" {
		t.Error("Unmask() should return the raw value")
	}
}

func TestNormalizeTier(t *testing.T) {
	tests := []struct {
		raw  string
		want Tier
	}{
		{"pro", TierPro},
		{"enterprise", TierEnterprise},
		{"", TierPro},
		{"platinum", TierPro},
		{"PRO", TierPro},
	}

	for _, tc := range tests {
		if got := NormalizeTier(tc.raw); got != tc.want {
			t.Errorf("NormalizeTier(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

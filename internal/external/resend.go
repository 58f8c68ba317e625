package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"zodforge/internal/types"
)

// resendAPIBase is the default Resend API base URL.
// Overridable in tests via ResendClientConfig.BaseURL.
const resendAPIBase = "https://api.resend.com"

// ResendClientConfig holds the configuration for creating a ResendClient.
type ResendClientConfig struct {
	APIKey  string
	BaseURL string // Override for testing; defaults to resendAPIBase
	Logger  *slog.Logger
}

// ResendClient implements EmailProvider by making direct HTTP calls to the
// Resend Emails API through BaseClient. This approach routes all requests
// through the platform's resilience infrastructure (circuit breaker, retries,
// error mapping) and makes testing with httptest straightforward.
type ResendClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewResendClient creates a new ResendClient. The httpClient timeout should be
// around 10 seconds; onboarding emails are sent synchronously from the webhook
// handler and Stripe's delivery timeout bounds the whole request.
func NewResendClient(httpClient *http.Client, cfg ResendClientConfig) *ResendClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = resendAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"resend",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"ZodForge/1.0",
		WithSleepFunc(time.Sleep),
	)

	return &ResendClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// NewResendClientWithBase creates a ResendClient with a pre-configured
// BaseClient. This is useful for testing when you want to control the
// BaseClient configuration (e.g., disable retries).
func NewResendClientWithBase(base *BaseClient, cfg ResendClientConfig) *ResendClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = resendAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ResendClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Compile-time interface check.
var _ EmailProvider = (*ResendClient)(nil)

// ---------------------------------------------------------------------------
// EmailProvider Implementation
// ---------------------------------------------------------------------------

// resendEmailPayload represents the Resend POST /emails JSON request body.
type resendEmailPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// resendEmailResponse is the success body: the created email's ID.
type resendEmailResponse struct {
	ID string `json:"id"`
}

// Send transmits a pre-rendered email via Resend's POST /emails endpoint and
// returns the provider message ID on success.
//
// Error mapping:
//   - 429 Too Many Requests -> handled by BaseClient (retry + ErrCodeUpstreamRateLimited)
//   - 5xx -> handled by BaseClient (retry + ErrCodeUpstreamUnavailable)
//   - Other 4xx -> types.ErrCodeUpstreamEmailProvider
func (c *ResendClient) Send(ctx context.Context, msg types.EmailMessage) (string, error) {
	payload := resendEmailPayload{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to marshal Resend email payload",
			err,
		)
	}

	reqURL := c.baseURL + "/emails"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create Resend email request",
			err,
		)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", c.wrapResendError("Send", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var created resendEmailResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&created); decodeErr != nil {
			// The email was accepted; a missing ID only hurts correlation.
			c.logger.WarnContext(ctx, "failed to decode Resend response", "error", decodeErr)
			return "", nil
		}
		return created.ID, nil
	}

	return "", c.handleErrorResponse(resp, "Send")
}

// ---------------------------------------------------------------------------
// Error Handling
// ---------------------------------------------------------------------------

// resendErrorResponse represents the JSON error body returned by Resend.
type resendErrorResponse struct {
	Name       string `json:"name"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// handleErrorResponse reads a Resend error response and maps it to a
// types.AppError.
func (c *ResendClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("%s: Resend returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var apiErr resendErrorResponse
	errMsg := ""
	if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Message != "" {
		errMsg = apiErr.Message
	} else {
		errMsg = string(body)
	}

	return c.mapResendError(operation, resp.StatusCode, errMsg)
}

// mapResendError translates a Resend HTTP error into a types.AppError.
func (c *ResendClient) mapResendError(operation string, statusCode int, message string) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s: Resend rate limit exceeded", operation),
			nil,
		)
	case statusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s: Resend server error: %s", operation, message),
			nil,
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("%s: Resend error (%d): %s", operation, statusCode, message),
			nil,
		)
	}
}

// wrapResendError wraps a BaseClient transport error with context.
func (c *ResendClient) wrapResendError(operation string, err error) error {
	// If it's already an AppError from BaseClient (circuit breaker, retries
	// exhausted), return it as-is since it already has the right error code.
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamEmailProvider,
		fmt.Sprintf("%s: Resend request failed: %v", operation, err),
		err,
	)
}

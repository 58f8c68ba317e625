package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"zodforge/internal/types"
)

// maxRequestBodySize is the maximum allowed size of a request body (10 KiB).
// Checkout requests carry at most a price ID, a tier and an email address, so
// anything larger is abuse.
const maxRequestBodySize = 10 << 10

// sanitizedMessage replaces internal error details in responses when the
// process runs against production.
const sanitizedMessage = "An error occurred while processing your request"

// APIErrorResponse is the standard envelope for all error API responses.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned to clients.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON writes a JSON response with the given status code and data.
// It sets the Content-Type header, marshals the data, and writes the response.
// If marshalling fails, it falls back to a 500 error response.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		// Fall back to a plain error if marshalling fails.
		// Log at the call site is not available; use the raw writer.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fallback := APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(types.ErrCodeInternalUnexpected),
				Message:   "failed to marshal response",
				RequestID: types.GetRequestID(r.Context()),
			},
		}
		// Best-effort write; if this also fails, there is nothing more we can do.
		_ = json.NewEncoder(w).Encode(fallback)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Responder writes error responses with environment-aware detail. In
// production, messages for internal and upstream failures are replaced with a
// generic message so that infrastructure details never reach clients. Outside
// production the original message is kept and the wrapped cause is attached to
// the details map to speed up local debugging.
type Responder struct {
	// Env is the APP_ENV value the process was started with.
	Env string
}

// NewResponder constructs a Responder for the given environment name.
func NewResponder(env string) *Responder {
	return &Responder{Env: env}
}

// Error writes an error response to the client. It inspects the error chain:
//   - If the error is (or wraps) a *types.AppError, it uses its Code to determine
//     the HTTP status and writes a structured APIErrorResponse.
//   - If the error is a generic (non-AppError) error, it returns a 500 Internal
//     Server Error with the code "internal_unexpected_error".
//
// Wrapped causes are only exposed outside production, and never for client
// errors where the message itself is the contract.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := types.GetRequestID(r.Context())

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		detail := ErrorDetail{
			Code:      string(appErr.Code),
			Message:   appErr.Message,
			Details:   appErr.Details,
			RequestID: requestID,
		}
		if serverFault(appErr.Code) {
			if rs.sanitize() {
				detail.Message = sanitizedMessage
				detail.Details = nil
			} else if appErr.Err != nil {
				detail.Details = withCause(detail.Details, appErr.Err)
			}
		}
		JSON(w, r, appErr.HTTPStatus(), APIErrorResponse{Error: detail})
		return
	}

	// Generic error: return 500 without leaking internal details.
	detail := ErrorDetail{
		Code:      string(types.ErrCodeInternalUnexpected),
		Message:   sanitizedMessage,
		RequestID: requestID,
	}
	if !rs.sanitize() {
		detail.Details = withCause(nil, err)
	}
	JSON(w, r, http.StatusInternalServerError, APIErrorResponse{Error: detail})
}

// sanitize reports whether server-fault messages must be replaced before
// leaving the process.
func (rs *Responder) sanitize() bool {
	return rs.Env == "production"
}

// serverFault reports whether the code describes a failure inside our
// infrastructure rather than a problem with the client's request.
func serverFault(code types.ErrorCode) bool {
	return strings.HasPrefix(string(code), "internal_") ||
		strings.HasPrefix(string(code), "upstream_")
}

func withCause(details map[string]any, err error) map[string]any {
	if details == nil {
		details = make(map[string]any, 1)
	}
	details["cause"] = err.Error()
	return details
}

// DecodeJSON reads the request body into dst, enforcing:
//   - A maximum body size of 10 KiB to prevent abuse.
//   - DisallowUnknownFields to enforce strict JSON contracts.
//
// It returns a *types.AppError with code "validation_invalid_json" (400) on:
//   - JSON syntax errors
//   - Unknown fields in the request body
//   - Empty body
//   - Body containing more than one JSON value
//
// A body exceeding the size limit maps to "payload_too_large" (413).
// On success, it returns nil.
//
// The w parameter is accepted for signature consistency with the other response
// utilities; MaxBytesReader uses it to close the connection once the limit is
// hit.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}

	// Ensure the body contains only a single JSON value.
	// A second Decode call should return io.EOF if the body is well-formed.
	if dec.More() {
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"request body must contain a single JSON object",
			nil,
		)
	}

	return nil
}

// mapDecodeError translates a json.Decoder error into a structured AppError.
func mapDecodeError(err error) *types.AppError {
	// Check for max bytes exceeded (request too large).
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return types.NewAppError(
			types.ErrCodePayloadTooLarge,
			"Request body too large",
			err,
		)
	}

	// Check for JSON syntax errors.
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"malformed JSON in request body",
			err,
		)
	}

	// Check for type mismatch errors.
	var unmarshalTypeErr *json.UnmarshalTypeError
	if errors.As(err, &unmarshalTypeErr) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidJSON,
			"invalid value for field",
			err,
			map[string]any{
				"field":    unmarshalTypeErr.Field,
				"expected": unmarshalTypeErr.Type.String(),
			},
		)
	}

	// Check for unknown field errors (DisallowUnknownFields).
	if strings.HasPrefix(err.Error(), "json: unknown field") {
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "),
			err,
		)
	}

	// Check for empty body.
	if errors.Is(err, io.EOF) {
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"request body must not be empty",
			err,
		)
	}

	// Fallback for any other decode error.
	return types.NewAppError(
		types.ErrCodeValidationInvalidJSON,
		"invalid JSON in request body",
		err,
	)
}

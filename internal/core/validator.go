package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"zodforge/internal/types"
)

// Validator wraps go-playground/validator and translates tag failures into
// structured AppErrors with per-field detail.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator. Field names in validation errors use
// the `json` struct tag so they match what the client actually sent.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates s against its `validate` struct tags. On failure it
// returns a *types.AppError whose code reflects the first failed rule:
//   - "required"  -> validation_missing_required_field
//   - "email"     -> validation_invalid_email
//   - "oneof" on a Tier field -> validation_invalid_tier
//   - anything else -> validation_invalid_json
//
// The details map carries one entry per failed field (field name -> failed tag).
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		// s was not a struct; a programming error, not client input.
		return types.NewAppError(types.ErrCodeInternalUnexpected, "invalid validation target", err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request validation failed", err)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fieldName(fe)] = fe.Tag()
	}

	first := fieldErrs[0]
	code := types.ErrCodeValidationInvalidJSON
	message := "request validation failed"
	switch {
	case first.Tag() == "required":
		code = types.ErrCodeValidationMissingField
		message = "Missing required field: " + fieldName(first)
	case first.Tag() == "email":
		code = types.ErrCodeValidationInvalidEmail
		message = "Invalid email address"
	case first.Tag() == "oneof" && strings.EqualFold(first.Field(), "tier"):
		code = types.ErrCodeValidationInvalidTier
		message = "Unknown subscription tier"
	}

	return types.NewAppErrorWithDetails(code, message, err, details)
}

// fieldName prefers the JSON field name over the Go struct field name so that
// error details match what the client actually sent.
func fieldName(fe validator.FieldError) string {
	// Namespace is "Struct.Field"; strip the struct prefix.
	name := fe.Field()
	if name == "" {
		name = fe.StructField()
	}
	return name
}

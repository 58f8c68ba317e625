// Package config defines the global configuration structure for the ZodForge
// Cloud backend. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to exit
// immediately on startup (fail fast).
package config

import (
	"time"

	"zodforge/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Environment names accepted in APP_ENV.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config is the top-level configuration struct for the ZodForge Cloud backend.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require
// (Least Privilege principle).
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=development staging production"`
	Service     string `envconfig:"SERVICE_NAME" default:"zodforge-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Billing  BillingConfig
	Email    EmailConfig
	Security SecurityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// IsProduction reports whether the process is running against production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// IsDevelopment reports whether the process is running in local development.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// Public URLs for checkout redirects and emails (no trailing slash)
	PublicOrigin string `envconfig:"PUBLIC_ORIGIN" default:"https://zodforge.dev" validate:"url"`
	APIBaseURL   string `envconfig:"API_BASE_URL" default:"https://web-production-f15d.up.railway.app" validate:"url"`
	DocsURL      string `envconfig:"DOCS_URL" default:"https://zodforge.dev/docs" validate:"url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`     // Fail fast when pool exhausted
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"` // Detect dead connections during failover
}

// BillingConfig holds Stripe payment integration credentials.
type BillingConfig struct {
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
}

// EmailConfig holds email delivery provider credentials and sender identity.
type EmailConfig struct {
	ResendAPIKey SecretString `envconfig:"RESEND_API_KEY" validate:"required"`
	FromAddress  string       `envconfig:"EMAIL_FROM_ADDRESS" default:"ZodForge Cloud <onboarding@resend.dev>"`
}

// SecurityConfig holds checkout admission settings: the origin allow-list,
// the per-client rate limit, and the request body cap.
type SecurityConfig struct {
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"https://zodforge.dev,https://zodforge-landing.vercel.app"`
	RateLimitMax    int           `envconfig:"RATE_LIMIT_MAX" default:"5"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"60s"`
	MaxBodyBytes    int64         `envconfig:"MAX_BODY_BYTES" default:"10240"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

// Package email renders and sends the customer-facing transactional emails
// for ZodForge Cloud. Templates are embedded at build time so the binary
// is self-contained.
package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"zodforge/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// templateData is the struct passed into the onboarding template.
type templateData struct {
	TierUpper    string
	APIKey       string
	APIBaseURL   string
	DocsURL      string
	RequestQuota string
	SupportCopy  string
	Year         int
}

// Renderer renders onboarding emails using Go's html/template with embedded
// template files.
type Renderer struct {
	onboarding  *template.Template
	fromAddress string
	apiBaseURL  string
	docsURL     string
}

// RendererConfig holds the parameters needed to construct a Renderer.
type RendererConfig struct {
	// FromAddress is the full sender identity, e.g.
	// "ZodForge Cloud <onboarding@resend.dev>".
	FromAddress string
	// APIBaseURL is the public API host shown in the quick-start snippet.
	APIBaseURL string
	// DocsURL is the documentation link for the call-to-action button.
	DocsURL string
}

// NewRenderer parses the embedded templates and returns a Renderer.
// Returns an error if any template fails to parse.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/onboarding.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse onboarding.html: %w", err)
	}

	return &Renderer{
		onboarding:  tmpl,
		fromAddress: cfg.FromAddress,
		apiBaseURL:  cfg.APIBaseURL,
		docsURL:     cfg.DocsURL,
	}, nil
}

// RenderOnboarding produces the welcome email that delivers a customer's API
// key. The plaintext key appears only in the rendered message body.
func (r *Renderer) RenderOnboarding(to string, tier types.Tier, apiKey string) (types.EmailMessage, error) {
	data := templateData{
		TierUpper:    strings.ToUpper(string(tier)),
		APIKey:       apiKey,
		APIBaseURL:   r.apiBaseURL,
		DocsURL:      r.docsURL,
		RequestQuota: quotaCopy(tier),
		SupportCopy:  supportCopy(tier),
		Year:         time.Now().UTC().Year(),
	}

	var buf bytes.Buffer
	if err := r.onboarding.Execute(&buf, data); err != nil {
		return types.EmailMessage{}, fmt.Errorf("renderer: failed to execute onboarding template: %w", err)
	}

	return types.EmailMessage{
		From:    r.fromAddress,
		To:      to,
		Subject: fmt.Sprintf("Your ZodForge Cloud API Key - %s Plan", data.TierUpper),
		HTML:    buf.String(),
	}, nil
}

// quotaCopy returns the monthly request allowance shown in the plan summary.
func quotaCopy(tier types.Tier) string {
	if tier == types.TierPro {
		return "5,000"
	}
	return "Unlimited"
}

// supportCopy returns the support line shown in the plan summary.
func supportCopy(tier types.Tier) string {
	if tier == types.TierPro {
		return "Priority support"
	}
	return "Dedicated support + custom integrations"
}

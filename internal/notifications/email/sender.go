package email

import (
	"context"
	"log/slog"

	"zodforge/internal/external"
	"zodforge/internal/keygen"
	"zodforge/internal/types"
)

// Sender renders onboarding emails and hands them to the email provider.
// It is the only component that ever sees both a customer address and a
// plaintext API key, and it logs neither.
type Sender struct {
	renderer *Renderer
	provider external.EmailProvider
	logger   *slog.Logger
}

// NewSender wires a Renderer to an EmailProvider.
func NewSender(renderer *Renderer, provider external.EmailProvider, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		renderer: renderer,
		provider: provider,
		logger:   logger,
	}
}

// SendKey delivers the onboarding email containing the customer's API key.
// Returns the provider message ID when available.
func (s *Sender) SendKey(ctx context.Context, to string, tier types.Tier, apiKey string) (string, error) {
	msg, err := s.renderer.RenderOnboarding(to, tier, apiKey)
	if err != nil {
		return "", err
	}

	msgID, err := s.provider.Send(ctx, msg)
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "onboarding email sent",
		"to", RedactEmail(to),
		"tier", string(tier),
		"key_preview", keygen.Preview(apiKey),
		"provider_msg_id", msgID,
	)
	return msgID, nil
}

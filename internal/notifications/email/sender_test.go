package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"zodforge/internal/types"
)

type stubProvider struct {
	sent  []types.EmailMessage
	msgID string
	err   error
}

func (s *stubProvider) Send(_ context.Context, msg types.EmailMessage) (string, error) {
	s.sent = append(s.sent, msg)
	if s.err != nil {
		return "", s.err
	}
	return s.msgID, nil
}

func TestSendKeyDeliversRenderedMessage(t *testing.T) {
	provider := &stubProvider{msgID: "re_abc123"}
	sender := NewSender(newTestRenderer(t), provider, slog.New(slog.NewTextHandler(io.Discard, nil)))

	msgID, err := sender.SendKey(context.Background(), "dev@example.com", types.TierPro, testKey)
	if err != nil {
		t.Fatalf("SendKey() error = %v", err)
	}
	if msgID != "re_abc123" {
		t.Errorf("msgID = %q, want re_abc123", msgID)
	}
	if len(provider.sent) != 1 {
		t.Fatalf("provider received %d messages, want 1", len(provider.sent))
	}

	msg := provider.sent[0]
	if msg.To != "dev@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if msg.Subject != "Your ZodForge Cloud API Key - PRO Plan" {
		t.Errorf("Subject = %q", msg.Subject)
	}
}

func TestSendKeyPropagatesProviderError(t *testing.T) {
	wantErr := errors.New("resend unavailable")
	provider := &stubProvider{err: wantErr}
	sender := NewSender(newTestRenderer(t), provider, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := sender.SendKey(context.Background(), "dev@example.com", types.TierEnterprise, testKey)
	if !errors.Is(err, wantErr) {
		t.Fatalf("SendKey() error = %v, want %v", err, wantErr)
	}
	if len(provider.sent) != 1 {
		t.Errorf("provider received %d messages, want 1", len(provider.sent))
	}
}

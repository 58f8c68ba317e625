package types

import (
	"context"
	"testing"
)

// mockLogger implements the Logger interface for testing purposes.
type mockLogger struct {
	messages []string
	fields   []any
}

func (m *mockLogger) Info(msg string, args ...any)  { m.messages = append(m.messages, "info:"+msg) }
func (m *mockLogger) Error(msg string, args ...any) { m.messages = append(m.messages, "error:"+msg) }
func (m *mockLogger) Warn(msg string, args ...any)  { m.messages = append(m.messages, "warn:"+msg) }
func (m *mockLogger) With(args ...any) Logger {
	return &mockLogger{fields: append(append([]any{}, m.fields...), args...)}
}

func TestWithRequestID_GetRequestID(t *testing.T) {
	t.Run("round-trip stores and retrieves request ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-abc123")
		if got := GetRequestID(ctx); got != "req-abc123" {
			t.Errorf("got %q, want %q", got, "req-abc123")
		}
	})

	t.Run("missing request ID returns empty string", func(t *testing.T) {
		if got := GetRequestID(context.Background()); got != "" {
			t.Errorf("got %q, want empty string", got)
		}
	})

	t.Run("overwriting replaces the previous ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "first")
		ctx = WithRequestID(ctx, "second")
		if got := GetRequestID(ctx); got != "second" {
			t.Errorf("got %q, want %q", got, "second")
		}
	})
}

func TestWithLogger_LoggerFromContext(t *testing.T) {
	t.Run("round-trip stores and retrieves logger", func(t *testing.T) {
		ml := &mockLogger{}
		ctx := WithLogger(context.Background(), ml)
		got := LoggerFromContext(ctx)
		if got == nil {
			t.Fatal("expected logger, got nil")
		}
		got.Info("hello")
		if len(ml.messages) != 1 || ml.messages[0] != "info:hello" {
			t.Errorf("expected the stored logger to receive the call, got %v", ml.messages)
		}
	})

	t.Run("missing logger returns nil", func(t *testing.T) {
		if got := LoggerFromContext(context.Background()); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("enriched logger replaces the previous one", func(t *testing.T) {
		base := &mockLogger{}
		ctx := WithLogger(context.Background(), base)
		enriched := LoggerFromContext(ctx).With("request_id", "req-1")
		ctx = WithLogger(ctx, enriched)
		got := LoggerFromContext(ctx)
		ml, ok := got.(*mockLogger)
		if !ok {
			t.Fatalf("expected *mockLogger, got %T", got)
		}
		if len(ml.fields) != 2 || ml.fields[0] != "request_id" || ml.fields[1] != "req-1" {
			t.Errorf("expected enriched fields, got %v", ml.fields)
		}
	})
}

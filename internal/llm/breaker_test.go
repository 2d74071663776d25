package llm

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type failingProvider struct{ calls int }

func (f *failingProvider) IsAvailable() bool { return true }
func (f *failingProvider) Complete(ctx context.Context, prompt string, options CompletionOptions) (string, error) {
	f.calls++
	return "", errors.New("boom")
}

func TestResilientProvider_RetriesThenFails(t *testing.T) {
	inner := &failingProvider{}
	p := NewResilientProvider(inner, "test-breaker", zap.NewNop())
	_, err := p.Complete(context.Background(), "prompt", CompletionOptions{})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if inner.calls < 2 {
		t.Fatalf("expected multiple retry attempts, got %d calls", inner.calls)
	}
}

func TestResilientProvider_PassesThroughIsAvailable(t *testing.T) {
	inner := NewMockProvider(nil)
	inner.SetAvailable(false)
	p := NewResilientProvider(inner, "test-breaker-2", zap.NewNop())
	if p.IsAvailable() {
		t.Fatal("expected IsAvailable to reflect inner provider")
	}
}

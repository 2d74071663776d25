package llm

import (
	"context"
	"testing"
)

func TestMockProvider_MatchesSubstringCaseInsensitively(t *testing.T) {
	p := NewMockProvider(map[string]string{
		"classify": `{"memory_type":"semantic","domain":"General","category":"","entities":[]}`,
	})
	out, err := p.Complete(context.Background(), "Please CLASSIFY this note", CompletionOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == "" {
		t.Fatal("expected canned response, got empty string")
	}
}

func TestMockProvider_NoMatchReturnsError(t *testing.T) {
	p := NewMockProvider(map[string]string{"foo": "bar"})
	_, err := p.Complete(context.Background(), "unrelated prompt", CompletionOptions{})
	if err == nil {
		t.Fatal("expected error when no canned response matches")
	}
}

func TestMockProvider_Unavailable(t *testing.T) {
	p := NewMockProvider(map[string]string{"x": "y"})
	p.SetAvailable(false)
	if p.IsAvailable() {
		t.Fatal("expected IsAvailable to be false after SetAvailable(false)")
	}
	_, err := p.Complete(context.Background(), "x", CompletionOptions{})
	if err != ErrProviderUnavailable {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

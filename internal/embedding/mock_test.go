package embedding

import (
	"context"
	"testing"
)

func TestMockProvider_Deterministic(t *testing.T) {
	p := NewMockProvider(8)
	a, err := p.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := p.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Dimensions() != 8 {
		t.Fatalf("expected 8 dimensions, got %d", a.Dimensions())
	}
	av, bv := a.Values(), b.Values()
	for i := range av {
		if av[i] != bv[i] {
			t.Fatalf("expected deterministic vectors, differ at index %d", i)
		}
	}
}

func TestMockProvider_DifferentTextDifferentVector(t *testing.T) {
	p := NewMockProvider(8)
	a, _ := p.Embed(context.Background(), "alpha")
	b, _ := p.Embed(context.Background(), "beta")
	same := true
	av, bv := a.Values(), b.Values()
	for i := range av {
		if av[i] != bv[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different texts to produce different vectors")
	}
}

func TestMockProvider_Unavailable(t *testing.T) {
	p := NewMockProvider(4)
	p.SetAvailable(false)
	if _, err := p.Embed(context.Background(), "x"); err != ErrProviderUnavailable {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestMockProvider_EmbedBatch(t *testing.T) {
	p := NewMockProvider(4)
	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
}

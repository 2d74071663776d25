package embedding

import (
	"context"
	"hash/fnv"

	"memory-engine/internal/domain/shared"
)

// MockProvider derives deterministic pseudo-embeddings from a hash of the
// input text, for tests and local development without API keys.
type MockProvider struct {
	dimensions int
	available  bool
}

func NewMockProvider(dimensions int) *MockProvider {
	if dimensions == 0 {
		dimensions = defaultDimensions
	}
	return &MockProvider{dimensions: dimensions, available: true}
}

func (m *MockProvider) Dimensions() int             { return m.dimensions }
func (m *MockProvider) SetAvailable(available bool) { m.available = available }

func (m *MockProvider) Embed(ctx context.Context, text string) (shared.EmbeddingVector, error) {
	if !m.available {
		return shared.EmbeddingVector{}, ErrProviderUnavailable
	}
	return shared.NewEmbeddingVector(deterministicVector(text, m.dimensions)), nil
}

func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([]shared.EmbeddingVector, error) {
	if !m.available {
		return nil, ErrProviderUnavailable
	}
	out := make([]shared.EmbeddingVector, len(texts))
	for i, t := range texts {
		out[i] = shared.NewEmbeddingVector(deterministicVector(t, m.dimensions))
	}
	return out, nil
}

func deterministicVector(text string, dimensions int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float32, dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(seed%1000)/1000.0 - 0.5
	}
	return vec
}

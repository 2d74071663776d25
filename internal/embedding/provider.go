// Package embedding adapts third-party embedding APIs behind a single
// narrow Provider interface, with a content-hash cache in front of it
// (spec §4.1 step 2, §5).
package embedding

import (
	"context"

	"memory-engine/internal/domain/shared"
	apperrors "memory-engine/pkg/errors"
)

// Provider embeds one or many texts into fixed-width vectors.
type Provider interface {
	Embed(ctx context.Context, text string) (shared.EmbeddingVector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]shared.EmbeddingVector, error)
	Dimensions() int
}

// ErrProviderUnavailable mirrors llm.ErrProviderUnavailable for the
// embedding side of the upstream boundary.
var ErrProviderUnavailable = apperrors.UpstreamEmbedding("embedding provider is not available", nil, 0)

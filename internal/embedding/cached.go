package embedding

import (
	"context"
	"time"

	"memory-engine/internal/cache"
	"memory-engine/internal/domain/shared"
)

const embeddingCacheTTL = 24 * time.Hour

// CachedProvider wraps a Provider with the content-hash cache spec §4.1
// step 2 requires, so re-submitting unchanged content through Embed (a
// dedup probe, a repeated recall query) never re-pays the embedding call.
type CachedProvider struct {
	inner Provider
	store cache.Store
}

func NewCachedProvider(inner Provider, store cache.Store) *CachedProvider {
	return &CachedProvider{inner: inner, store: store}
}

func (p *CachedProvider) Dimensions() int { return p.inner.Dimensions() }

func (p *CachedProvider) Embed(ctx context.Context, userID, text string) (shared.EmbeddingVector, error) {
	key := cache.EmbeddingKey(userID, text)
	if raw, err := p.store.Get(ctx, key); err == nil {
		var values []float32
		if decodeErr := cache.Decode(raw, &values); decodeErr == nil {
			return shared.NewEmbeddingVector(values), nil
		}
	}
	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return shared.EmbeddingVector{}, err
	}
	if encoded, encErr := cache.Encode(vec.Values()); encErr == nil {
		_ = p.store.Set(ctx, key, encoded, embeddingCacheTTL)
	}
	return vec, nil
}

// EmbedBatch bypasses the cache: batch embedding calls (consolidation's
// claim extraction) submit fresh, rarely-repeated text, so a per-item
// cache probe would only add overhead.
func (p *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([]shared.EmbeddingVector, error) {
	return p.inner.EmbedBatch(ctx, texts)
}

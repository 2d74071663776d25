package entityhub

import (
	"context"

	"memory-engine/internal/domain/shared"
)

// Repository defines persistence and lookup methods for Entity Hubs and
// their memory links (spec §4.5).
type Repository interface {
	Save(ctx context.Context, h *EntityHub) error
	FindByID(ctx context.Context, userID string, id shared.EntityID) (*EntityHub, error)

	// FindByName looks up a hub by its normalised entity_name, the key
	// get_or_create race-safety relies on (spec §4.5 step 5).
	FindByName(ctx context.Context, userID string, entityName string) (*EntityHub, error)

	// TopByUsage loads the user's top-N hubs by usage_count, the seed
	// set for the dictionary-pass trie (spec §4.5 step 1, N=500).
	TopByUsage(ctx context.Context, userID string, n int) ([]*EntityHub, error)

	// Search performs a name/alias/category substring search
	// (spec §4.5's search contract).
	Search(ctx context.Context, userID string, query string) ([]*EntityHub, error)

	// TopEntities returns the user's highest-usage hubs, optionally
	// filtered to one HubType (spec §4.5's top_entities contract).
	TopEntities(ctx context.Context, userID string, hubType HubType, limit int) ([]*EntityHub, error)

	// SaveLink upserts a memory-entity link, applying the
	// keep-greater-strength/increment-mention_count merge rule.
	SaveLink(ctx context.Context, link MemoryEntityLink) error
	LinksForMemory(ctx context.Context, userID string, memoryID shared.MemoryID) ([]MemoryEntityLink, error)
	MemoriesForEntity(ctx context.Context, userID string, entityID shared.EntityID) ([]shared.MemoryID, error)
	DeleteLinksForMemory(ctx context.Context, userID string, memoryID shared.MemoryID) error
}

package edge

import (
	"context"

	"memory-engine/internal/domain/shared"
)

// Repository defines the persistence and traversal methods for the
// knowledge graph's edges (spec §4.3).
type Repository interface {
	Save(ctx context.Context, e *Edge) error
	Delete(ctx context.Context, userID string, id shared.EdgeID) error

	// FindByID loads a single edge by its own identity.
	FindByID(ctx context.Context, userID string, id shared.EdgeID) (*Edge, error)

	// EdgesFrom returns every outgoing edge from a memory.
	EdgesFrom(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*Edge, error)

	// EdgesTo returns every incoming edge into a memory.
	EdgesTo(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*Edge, error)

	// AllEdgesFor returns every edge touching a memory, in either direction.
	AllEdgesFor(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*Edge, error)

	// FindByEndpoints looks up the edge (if any) for a given
	// (user, from, to, edge_type) tuple — the uniqueness key enforced by
	// upsert-on-reobservation (spec §4.2 step 8, §4.3 invariant).
	FindByEndpoints(ctx context.Context, userID string, from, to shared.MemoryID, edgeType Type) (*Edge, error)

	// Related performs a bounded breadth-first walk from a memory up to
	// depth hops, considering only edges at or above minStrength
	// (spec §4.3's related(depth, min_strength) operation).
	Related(ctx context.Context, userID string, memoryID shared.MemoryID, depth int, minStrength float64) ([]*Edge, error)

	// FindPath finds a path between two memories, or ErrNotFound if none
	// exists within the traversal bound (spec §4.3's find_path operation).
	FindPath(ctx context.Context, userID string, from, to shared.MemoryID, maxDepth int) ([]*Edge, error)

	// FindContradictions returns every CONTRADICTS edge touching a memory
	// (spec §4.3's find_contradictions operation).
	FindContradictions(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*Edge, error)
}

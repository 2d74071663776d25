package memory

import (
	"context"

	"memory-engine/internal/domain/shared"
)

// NearestNeighbor is one result row of a vector similarity probe.
type NearestNeighbor struct {
	Memory     *Memory
	Similarity float64
}

// DateRange is recall's coarse recency filter (spec §4.4 step 2).
type DateRange string

const (
	DateRangeLast7Days  DateRange = "last_7_days"
	DateRangeLast30Days DateRange = "last_30_days"
	DateRangeLastYear   DateRange = "last_year"
	DateRangeAllTime    DateRange = "all_time"
)

// ListFilter narrows Memory.List / recall queries (spec §4.4 step 2: honoured
// at the SQL layer — memory_type, min_importance, entity containment,
// date_range, domain, category prefix, status).
type ListFilter struct {
	Domain         string
	CategoryPrefix string
	MemoryType     Type
	MinImportance  int
	Entity         string
	DateRange      DateRange
	Status         Status
	Limit          int
	Offset         int
}

// Repository defines the persistence and similarity-search methods for
// the Memory aggregate.
type Repository interface {
	FindByID(ctx context.Context, userID string, id shared.MemoryID) (*Memory, error)
	Save(ctx context.Context, m *Memory) error
	Delete(ctx context.Context, userID string, id shared.MemoryID) error

	// List returns memories for a user matching the filter, most-recent
	// first, for recall's filtered-browse path (spec §4.4 step 3).
	List(ctx context.Context, userID string, filter ListFilter) ([]*Memory, error)

	// NearestNeighbors runs the vector similarity probe used by the write
	// path's dedup/maturation/conflict branch (spec §4.1 step 5).
	NearestNeighbors(ctx context.Context, userID string, embedding shared.EmbeddingVector, k int) ([]NearestNeighbor, error)

	// SearchSimilar runs recall's filtered semantic search (spec §4.4 step
	// 2): a vector probe narrowed by filter at the SQL layer, so the
	// over-fetch recall needs for evolution filtering never has to
	// re-apply filters in Go.
	SearchSimilar(ctx context.Context, userID string, embedding shared.EmbeddingVector, limit int, filter ListFilter) ([]NearestNeighbor, error)

	// CountActive reports how many active memories a user currently has,
	// used by capacity/pruning policies.
	CountActive(ctx context.Context, userID string) (int, error)
}

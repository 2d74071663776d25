package entityhub

import "memory-engine/internal/domain/shared"

// MemoryEntityLink is the many-to-many join between a memory and an
// entity hub it mentions (spec §3). Uniqueness is on (memory_id, entity_id);
// upserts keep the greater strength and increment mention_count
// (spec §4.5's linking rule).
type MemoryEntityLink struct {
	MemoryID       shared.MemoryID
	EntityID       shared.EntityID
	UserID         shared.UserID
	Strength       float64
	IsPrimary      bool
	MentionCount   int
	ContextSnippet string
}

// NewMemoryEntityLink creates a link with the given initial strength.
func NewMemoryEntityLink(memoryID shared.MemoryID, entityID shared.EntityID, userID shared.UserID, strength float64, isPrimary bool, contextSnippet string) MemoryEntityLink {
	return MemoryEntityLink{
		MemoryID:       memoryID,
		EntityID:       entityID,
		UserID:         userID,
		Strength:       clampUnit(strength),
		IsPrimary:      isPrimary,
		MentionCount:   1,
		ContextSnippet: contextSnippet,
	}
}

// Merge applies the upsert rule for a repeated (memory, entity) pair:
// keep the greater strength, increment mention_count (spec §4.5 "Linking").
func (l MemoryEntityLink) Merge(other MemoryEntityLink) MemoryEntityLink {
	merged := l
	if other.Strength > merged.Strength {
		merged.Strength = other.Strength
	}
	merged.MentionCount += other.MentionCount
	merged.IsPrimary = merged.IsPrimary || other.IsPrimary
	if other.ContextSnippet != "" {
		merged.ContextSnippet = other.ContextSnippet
	}
	return merged
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

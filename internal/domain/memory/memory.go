// Package memory implements the Memory aggregate: the central entity of
// the personal memory engine. A Memory is a user-owned piece of content
// with an embedding, a type/status/source taxonomy, salience counters,
// and an ordered list of mentioned entities.
package memory

import (
	"time"

	"memory-engine/internal/domain/shared"
)

// Memory is the central aggregate root of the system (spec §3).
//
// Key design principles:
//   - Rich domain model: dedup/maturation/supersession are methods, not
//     repository-layer SQL.
//   - Value objects for identity, content and embedding.
//   - Domain events for every lifecycle transition a write path produces.
type Memory struct {
	id        shared.MemoryID
	userID    shared.UserID
	content   shared.Content
	embedding shared.EmbeddingVector
	entities  shared.EntityList

	memoryType Type
	domain     string
	category   string

	importance   int
	confidence   float64
	accessCount  int
	lastAccessed *time.Time

	status       Status
	supersededBy *shared.MemoryID

	source   Source
	sourceID string
	metadata map[string]string

	// maturation bookkeeping for draft memories (spec §4.1 maturation rule)
	evidenceEvents        int
	accumulatedConfidence float64

	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
	version   shared.Version

	events []shared.DomainEvent
}

// NewMemoryParams bundles the fields a freshly classified write supplies.
type NewMemoryParams struct {
	UserID     shared.UserID
	Content    shared.Content
	Embedding  shared.EmbeddingVector
	Entities   shared.EntityList
	MemoryType Type
	Domain     string
	Category   string
	Importance int
	Confidence float64
	Status     Status
	Source     Source
	SourceID   string
	Metadata   map[string]string
}

// NewMemory constructs a brand-new memory, already classified and
// embedded by the caller (the Memory Processor pipeline owns
// classification/embedding — this constructor only enforces invariants).
func NewMemory(p NewMemoryParams) (*Memory, error) {
	if !p.MemoryType.Valid() {
		return nil, shared.ErrInvalidMemoryType
	}
	status := p.Status
	if status == "" {
		status = StatusActive
	}
	if !status.Valid() {
		return nil, shared.ErrInvalidStatus
	}
	importance := clampImportance(p.Importance)

	now := time.Now()
	id := shared.NewMemoryID()
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	m := &Memory{
		id:                id,
		userID:            p.UserID,
		content:           p.Content,
		embedding:         p.Embedding,
		entities:          p.Entities,
		memoryType:        p.MemoryType,
		domain:            p.Domain,
		category:          p.Category,
		importance:        importance,
		confidence:        p.Confidence,
		status:            status,
		source:            p.Source,
		sourceID:          p.SourceID,
		metadata:          metadata,
		createdAt:         now,
		updatedAt:         now,
		version:           shared.NewVersion(),
		events:            []shared.DomainEvent{},
	}
	if status == StatusDraft {
		m.evidenceEvents = 1
		m.accumulatedConfidence = p.Confidence
	}

	m.addEvent(shared.NewMemoryCreatedEvent(id, p.UserID, string(p.MemoryType), p.Entities.ToSlice(), importance, m.version))
	return m, nil
}

// ReconstructMemory rebuilds a memory from persistence without generating events.
func ReconstructMemory(
	id shared.MemoryID, userID shared.UserID, content shared.Content, embedding shared.EmbeddingVector,
	entities shared.EntityList, memoryType Type, domain, category string, importance int, confidence float64,
	accessCount int, lastAccessed *time.Time, status Status, supersededBy *shared.MemoryID,
	source Source, sourceID string, metadata map[string]string,
	evidenceEvents int, accumulatedConfidence float64,
	createdAt, updatedAt time.Time, deletedAt *time.Time, version shared.Version,
) *Memory {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &Memory{
		id:                    id,
		userID:                userID,
		content:               content,
		embedding:             embedding,
		entities:              entities,
		memoryType:            memoryType,
		domain:                domain,
		category:              category,
		importance:            importance,
		confidence:            confidence,
		accessCount:           accessCount,
		lastAccessed:          lastAccessed,
		status:                status,
		supersededBy:          supersededBy,
		source:                source,
		sourceID:              sourceID,
		metadata:              metadata,
		evidenceEvents:        evidenceEvents,
		accumulatedConfidence: accumulatedConfidence,
		createdAt:             createdAt,
		updatedAt:             updatedAt,
		deletedAt:             deletedAt,
		version:               version,
		events:                []shared.DomainEvent{},
	}
}

// Getters

func (m *Memory) ID() shared.MemoryID               { return m.id }
func (m *Memory) UserID() shared.UserID             { return m.userID }
func (m *Memory) Content() shared.Content           { return m.content }
func (m *Memory) Embedding() shared.EmbeddingVector { return m.embedding }
func (m *Memory) Entities() shared.EntityList       { return m.entities }
func (m *Memory) Type() Type                        { return m.memoryType }
func (m *Memory) Domain() string                    { return m.domain }
func (m *Memory) Category() string                  { return m.category }
func (m *Memory) Importance() int                   { return m.importance }
func (m *Memory) Confidence() float64               { return m.confidence }
func (m *Memory) AccessCount() int                  { return m.accessCount }
func (m *Memory) LastAccessed() *time.Time          { return m.lastAccessed }
func (m *Memory) Status() Status                    { return m.status }
func (m *Memory) SupersededBy() *shared.MemoryID     { return m.supersededBy }
func (m *Memory) Source() Source                    { return m.source }
func (m *Memory) SourceID() string                  { return m.sourceID }
func (m *Memory) Metadata() map[string]string       { return m.metadata }
func (m *Memory) CreatedAt() time.Time              { return m.createdAt }
func (m *Memory) UpdatedAt() time.Time              { return m.updatedAt }
func (m *Memory) DeletedAt() *time.Time             { return m.deletedAt }
func (m *Memory) Version() shared.Version           { return m.version }
func (m *Memory) IsDraft() bool                     { return m.status == StatusDraft }
func (m *Memory) IsActive() bool                    { return m.status == StatusActive }
func (m *Memory) EvidenceEvents() int               { return m.evidenceEvents }
func (m *Memory) AccumulatedConfidence() float64    { return m.accumulatedConfidence }

// Business methods

// RecordAccess applies the recall engine's side-effectful read update
// (spec §4.4 step 8): bump access_count and refresh last_accessed.
func (m *Memory) RecordAccess() {
	now := time.Now()
	m.accessCount++
	m.lastAccessed = &now
	m.updatedAt = now
	m.addEvent(shared.NewMemoryAccessedEvent(m.id, m.userID, m.version))
}

// Deduplicate applies the s >= 0.95 branch of spec §4.1 step 5: bump
// confidence by up to +0.1 (capped at 1.0) and record access.
func (m *Memory) Deduplicate(similarity float64) {
	m.confidence = clampConfidence(m.confidence + 0.1)
	m.RecordAccess()
	m.version = m.version.Next()
	m.addEvent(shared.NewMemoryDeduplicatedEvent(m.id, m.userID, similarity, m.version))
}

// AccumulateEvidence applies one consolidation event onto a draft memory
// (spec §4.1 maturation rule: +max(new_confidence*0.2, 0.1) per event) and
// reports whether the memory should now mature to active.
func (m *Memory) AccumulateEvidence(newConfidence float64) (shouldMature bool) {
	m.evidenceEvents++
	m.accumulatedConfidence += max(newConfidence*0.2, 0.1)
	m.updatedAt = time.Now()
	return m.evidenceEvents >= MaturationMinEvidenceEvents || m.accumulatedConfidence >= MaturationActivationConfidence
}

// Mature promotes a draft memory to active.
func (m *Memory) Mature() error {
	if m.status != StatusDraft {
		return nil
	}
	m.status = StatusActive
	m.updatedAt = time.Now()
	m.version = m.version.Next()
	m.addEvent(shared.NewMemoryMaturedEvent(m.id, m.userID, m.evidenceEvents, m.accumulatedConfidence, m.version))
	return nil
}

// MergeEvidence folds metadata/recency from a new observation into an
// existing memory without changing its status (spec §4.1 step 5, the
// "otherwise merge evidence" branch).
func (m *Memory) MergeEvidence(metadata map[string]string) {
	for k, v := range metadata {
		m.metadata[k] = v
	}
	now := time.Now()
	m.lastAccessed = &now
	m.updatedAt = now
	m.version = m.version.Next()
}

// SetStatus applies a direct lifecycle transition requested by a caller
// (the update_memory operation), as opposed to the automatic
// dedup/maturation/supersession transitions the write path derives itself.
func (m *Memory) SetStatus(s Status) error {
	if !s.Valid() {
		return shared.ErrInvalidStatus
	}
	if m.status == StatusDeleted {
		return shared.ErrCannotUpdateDeleted
	}
	m.status = s
	m.updatedAt = time.Now()
	m.version = m.version.Next()
	return nil
}

// Supersede marks this memory as replaced by a newer one (spec §4.1 step 5
// conflict-resolution branch, and §4.3 mark_superseded). The caller is
// responsible for ensuring newID refers to an active memory of the same user.
func (m *Memory) Supersede(newID shared.MemoryID, reason string) error {
	if m.status == StatusDeleted {
		return shared.ErrCannotUpdateDeleted
	}
	m.status = StatusSuperseded
	m.supersededBy = &newID
	m.updatedAt = time.Now()
	m.version = m.version.Next()
	m.addEvent(shared.NewMemorySupersededEvent(m.id, m.userID, newID, reason, m.version))
	return nil
}

// SoftDelete marks the memory deleted without erasing it (spec §4.1
// failure semantics: "Deletion is soft by default").
func (m *Memory) SoftDelete() error {
	if m.status == StatusDeleted {
		return nil
	}
	now := time.Now()
	m.status = StatusDeleted
	m.deletedAt = &now
	m.updatedAt = now
	m.version = m.version.Next()
	m.addEvent(shared.NewMemoryDeletedEvent(m.id, m.userID, false, m.version))
	return nil
}

// ValidateInvariants checks the invariants spec §3/§8 require hold for
// every memory.
func (m *Memory) ValidateInvariants() error {
	if m.status == StatusSuperseded && m.supersededBy == nil {
		return shared.ErrInvalidStatus
	}
	if m.status == StatusDeleted && m.deletedAt == nil {
		return shared.ErrInvalidStatus
	}
	if m.status != StatusDeleted && m.deletedAt != nil {
		return shared.ErrInvalidStatus
	}
	if m.importance < 1 || m.importance > 10 {
		return shared.ErrInvalidMemoryType
	}
	return nil
}

// GetID / GetVersion / IncrementVersion satisfy the generic
// aggregate-root interfaces shared across the domain layer.

func (m *Memory) GetID() string      { return m.id.String() }
func (m *Memory) GetVersion() int    { return m.version.Int() }
func (m *Memory) IncrementVersion()  { m.version = m.version.Next() }

func (m *Memory) GetUncommittedEvents() []shared.DomainEvent { return m.events }
func (m *Memory) MarkEventsAsCommitted()                     { m.events = []shared.DomainEvent{} }

func (m *Memory) addEvent(event shared.DomainEvent) { m.events = append(m.events, event) }

func clampImportance(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

func clampConfidence(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

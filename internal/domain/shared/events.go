package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents an important business occurrence in the domain.
type DomainEvent interface {
	EventID() string
	EventType() string
	AggregateID() string
	UserID() string
	Timestamp() time.Time
	Version() int
	EventData() map[string]interface{}
}

// BaseEvent provides common functionality for all domain events.
type BaseEvent struct {
	eventID     string
	eventType   string
	aggregateID string
	userID      string
	timestamp   time.Time
	version     int
}

func (e BaseEvent) EventID() string        { return e.eventID }
func (e BaseEvent) EventType() string       { return e.eventType }
func (e BaseEvent) AggregateID() string     { return e.aggregateID }
func (e BaseEvent) UserID() string         { return e.userID }
func (e BaseEvent) Timestamp() time.Time   { return e.timestamp }
func (e BaseEvent) Version() int           { return e.version }

func newBaseEvent(eventType, aggregateID, userID string, version int) BaseEvent {
	return BaseEvent{
		eventID:     uuid.New().String(),
		eventType:   eventType,
		aggregateID: aggregateID,
		userID:      userID,
		timestamp:   time.Now(),
		version:     version,
	}
}

// NewBaseEvent creates a new base event with common fields (exported for external packages).
func NewBaseEvent(eventType, aggregateID, userID string, version int) BaseEvent {
	return newBaseEvent(eventType, aggregateID, userID, version)
}

// Memory events

// MemoryCreatedEvent is fired when a new memory is inserted (§4.1 step 6, outcome=created).
type MemoryCreatedEvent struct {
	BaseEvent
	MemoryType string   `json:"memory_type"`
	Entities   []string `json:"entities"`
	Importance int      `json:"importance"`
}

func NewMemoryCreatedEvent(id MemoryID, userID UserID, memoryType string, entities []string, importance int, version Version) *MemoryCreatedEvent {
	return &MemoryCreatedEvent{
		BaseEvent:  newBaseEvent("MemoryCreated", id.String(), userID.String(), version.Int()),
		MemoryType: memoryType,
		Entities:   entities,
		Importance: importance,
	}
}

func (e *MemoryCreatedEvent) EventData() map[string]interface{} {
	return map[string]interface{}{"memory_type": e.MemoryType, "entities": e.Entities, "importance": e.Importance}
}

// MemoryDeduplicatedEvent is fired when a write resolves to an existing memory (outcome=deduplicated).
type MemoryDeduplicatedEvent struct {
	BaseEvent
	Similarity float64 `json:"similarity"`
}

func NewMemoryDeduplicatedEvent(id MemoryID, userID UserID, similarity float64, version Version) *MemoryDeduplicatedEvent {
	return &MemoryDeduplicatedEvent{
		BaseEvent:  newBaseEvent("MemoryDeduplicated", id.String(), userID.String(), version.Int()),
		Similarity: similarity,
	}
}

func (e *MemoryDeduplicatedEvent) EventData() map[string]interface{} {
	return map[string]interface{}{"similarity": e.Similarity}
}

// MemoryMaturedEvent is fired when a draft memory ripens to active (§4.1 maturation rule).
type MemoryMaturedEvent struct {
	BaseEvent
	EvidenceEvents        int     `json:"evidence_events"`
	AccumulatedConfidence float64 `json:"accumulated_confidence"`
}

func NewMemoryMaturedEvent(id MemoryID, userID UserID, evidenceEvents int, accumulatedConfidence float64, version Version) *MemoryMaturedEvent {
	return &MemoryMaturedEvent{
		BaseEvent:             newBaseEvent("MemoryMatured", id.String(), userID.String(), version.Int()),
		EvidenceEvents:        evidenceEvents,
		AccumulatedConfidence: accumulatedConfidence,
	}
}

func (e *MemoryMaturedEvent) EventData() map[string]interface{} {
	return map[string]interface{}{"evidence_events": e.EvidenceEvents, "accumulated_confidence": e.AccumulatedConfidence}
}

// MemorySupersededEvent is fired when a conflict resolution supersedes an
// older memory in favour of a new one (§4.1 step 5, conflict-resolution case).
type MemorySupersededEvent struct {
	BaseEvent
	SupersededByID string `json:"superseded_by_id"`
	Reason         string `json:"reason"`
}

func NewMemorySupersededEvent(id MemoryID, userID UserID, supersededBy MemoryID, reason string, version Version) *MemorySupersededEvent {
	return &MemorySupersededEvent{
		BaseEvent:      newBaseEvent("MemorySuperseded", id.String(), userID.String(), version.Int()),
		SupersededByID: supersededBy.String(),
		Reason:         reason,
	}
}

func (e *MemorySupersededEvent) EventData() map[string]interface{} {
	return map[string]interface{}{"superseded_by_id": e.SupersededByID, "reason": e.Reason}
}

// MemoryDeletedEvent is fired on soft or hard deletion (§4.1 failure semantics).
type MemoryDeletedEvent struct {
	BaseEvent
	Hard bool `json:"hard"`
}

func NewMemoryDeletedEvent(id MemoryID, userID UserID, hard bool, version Version) *MemoryDeletedEvent {
	return &MemoryDeletedEvent{
		BaseEvent: newBaseEvent("MemoryDeleted", id.String(), userID.String(), version.Int()),
		Hard:      hard,
	}
}

func (e *MemoryDeletedEvent) EventData() map[string]interface{} {
	return map[string]interface{}{"hard": e.Hard}
}

// MemoryAccessedEvent is fired by the recall engine's side-effectful read
// update (§4.4 step 8).
type MemoryAccessedEvent struct {
	BaseEvent
}

func NewMemoryAccessedEvent(id MemoryID, userID UserID, version Version) *MemoryAccessedEvent {
	return &MemoryAccessedEvent{BaseEvent: newBaseEvent("MemoryAccessed", id.String(), userID.String(), version.Int())}
}

func (e *MemoryAccessedEvent) EventData() map[string]interface{} { return map[string]interface{}{} }

// Edge events

// EdgeCreatedEvent is fired when a knowledge edge is materialised (§4.3).
type EdgeCreatedEvent struct {
	BaseEvent
	FromMemoryID string  `json:"from_memory_id"`
	ToMemoryID   string  `json:"to_memory_id"`
	EdgeType     string  `json:"edge_type"`
	Strength     float64 `json:"strength"`
}

func NewEdgeCreatedEvent(id EdgeID, from, to MemoryID, userID UserID, edgeType string, strength float64) *EdgeCreatedEvent {
	return &EdgeCreatedEvent{
		BaseEvent:    newBaseEvent("EdgeCreated", id.String(), userID.String(), 0),
		FromMemoryID: from.String(),
		ToMemoryID:   to.String(),
		EdgeType:     edgeType,
		Strength:     strength,
	}
}

func (e *EdgeCreatedEvent) EventData() map[string]interface{} {
	return map[string]interface{}{
		"from_memory_id": e.FromMemoryID,
		"to_memory_id":   e.ToMemoryID,
		"edge_type":      e.EdgeType,
		"strength":       e.Strength,
	}
}

// EdgeUpsertedEvent is fired when a relationship-inference upsert updates
// an existing edge's strength/confidence instead of inserting (§4.2 step 8).
type EdgeUpsertedEvent struct {
	BaseEvent
	NewStrength   float64 `json:"new_strength"`
	NewConfidence float64 `json:"new_confidence"`
}

func NewEdgeUpsertedEvent(id EdgeID, userID UserID, newStrength, newConfidence float64) *EdgeUpsertedEvent {
	return &EdgeUpsertedEvent{
		BaseEvent:     newBaseEvent("EdgeUpserted", id.String(), userID.String(), 0),
		NewStrength:   newStrength,
		NewConfidence: newConfidence,
	}
}

func (e *EdgeUpsertedEvent) EventData() map[string]interface{} {
	return map[string]interface{}{"new_strength": e.NewStrength, "new_confidence": e.NewConfidence}
}

// Entity hub events

// EntityLearnedEvent is fired when a new entity hub is created (§4.5 step 5).
type EntityLearnedEvent struct {
	BaseEvent
	EntityName string `json:"entity_name"`
	Source     string `json:"source"`
}

func NewEntityLearnedEvent(id EntityID, userID UserID, entityName, source string) *EntityLearnedEvent {
	return &EntityLearnedEvent{
		BaseEvent:  newBaseEvent("EntityLearned", id.String(), userID.String(), 0),
		EntityName: entityName,
		Source:     source,
	}
}

func (e *EntityLearnedEvent) EventData() map[string]interface{} {
	return map[string]interface{}{"entity_name": e.EntityName, "source": e.Source}
}

// EntityReusedEvent is fired when get_or_create resolves to an existing hub.
type EntityReusedEvent struct {
	BaseEvent
	UsageCount int `json:"usage_count"`
}

func NewEntityReusedEvent(id EntityID, userID UserID, usageCount int) *EntityReusedEvent {
	return &EntityReusedEvent{
		BaseEvent:  newBaseEvent("EntityReused", id.String(), userID.String(), 0),
		UsageCount: usageCount,
	}
}

func (e *EntityReusedEvent) EventData() map[string]interface{} {
	return map[string]interface{}{"usage_count": e.UsageCount}
}

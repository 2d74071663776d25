// Package edge implements the knowledge-graph Edge domain entity.
//
// PURPOSE: Represents a directed, typed relationship between two memories,
// enabling the system to build a connected knowledge graph where related,
// contradicting, or causal memories are linked for traversal and conflict
// detection.
//
// DOMAIN ROLE: Edge is an Aggregate Root that encapsulates the business
// rules for memory connections — self-edge prevention, cross-user
// isolation, strength/confidence bounds, and upsert-vs-insert semantics.
package edge

import (
	"time"

	"memory-engine/internal/domain/shared"
)

// Edge represents a directed, typed relationship between two memories.
//
// Key Design Principles Demonstrated:
//   - Rich Domain Model: contains behaviour and validation logic
//   - Value Objects: strongly-typed MemoryID endpoints instead of primitives
//   - Business Invariants: self-edges and cross-user edges are rejected
//   - Domain Events: tracks edge creation and relationship-inference upserts
type Edge struct {
	id           shared.EdgeID
	fromMemoryID shared.MemoryID
	toMemoryID   shared.MemoryID
	userID       shared.UserID
	edgeType     Type

	strength     float64 // [0,1] — confidence this relationship exists
	confidence   float64 // [0,1] — confidence in the edge_type assignment itself
	causality    bool
	bidirectional bool
	reason       string

	createdAt time.Time
	updatedAt time.Time
	version   shared.Version

	events []shared.DomainEvent
}

// NewEdgeParams bundles the attributes a relationship-inference step produces.
type NewEdgeParams struct {
	FromMemoryID  shared.MemoryID
	ToMemoryID    shared.MemoryID
	UserID        shared.UserID
	EdgeType      Type
	Strength      float64
	Confidence    float64
	Causality     bool
	Bidirectional bool
	Reason        string
}

// NewEdge creates a new edge between two memories with validation.
//
// Business Rules Enforced:
//   - from and to must be different memories (no self-edges)
//   - edge_type must be one of the eight known types
//   - strength and confidence must each lie in [0,1]
//   - domain events are generated for creation
func NewEdge(p NewEdgeParams) (*Edge, error) {
	if p.FromMemoryID.Equals(p.ToMemoryID) {
		return nil, shared.ErrSelfEdge
	}
	if !p.EdgeType.Valid() {
		return nil, shared.ErrInvalidEdgeType
	}
	strength := clampUnit(p.Strength)
	confidence := clampUnit(p.Confidence)

	now := time.Now()
	edgeID := shared.NewEdgeID()

	e := &Edge{
		id:            edgeID,
		fromMemoryID:  p.FromMemoryID,
		toMemoryID:    p.ToMemoryID,
		userID:        p.UserID,
		edgeType:      p.EdgeType,
		strength:      strength,
		confidence:    confidence,
		causality:     p.Causality,
		bidirectional: p.Bidirectional,
		reason:        p.Reason,
		createdAt:     now,
		updatedAt:     now,
		version:       shared.NewVersion(),
		events:        []shared.DomainEvent{},
	}

	event := shared.NewEdgeCreatedEvent(edgeID, p.FromMemoryID, p.ToMemoryID, p.UserID, string(p.EdgeType), strength)
	e.addEvent(event)

	return e, nil
}

// ReconstructEdge rebuilds an edge from persistence (no events generated).
func ReconstructEdge(
	id shared.EdgeID, fromMemoryID, toMemoryID shared.MemoryID, userID shared.UserID, edgeType Type,
	strength, confidence float64, causality, bidirectional bool, reason string,
	createdAt, updatedAt time.Time, version shared.Version,
) *Edge {
	return &Edge{
		id:            id,
		fromMemoryID:  fromMemoryID,
		toMemoryID:    toMemoryID,
		userID:        userID,
		edgeType:      edgeType,
		strength:      strength,
		confidence:    confidence,
		causality:     causality,
		bidirectional: bidirectional,
		reason:        reason,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
		version:       version,
		events:        []shared.DomainEvent{},
	}
}

// ReconstructEdgeFromPrimitives builds an edge from primitive string/float
// inputs, for repository layers that decode rows before type assertion.
func ReconstructEdgeFromPrimitives(fromIDStr, toIDStr, userIDStr, edgeTypeStr string, strength, confidence float64) (*Edge, error) {
	fromID, err := shared.ParseMemoryID(fromIDStr)
	if err != nil {
		return nil, err
	}
	toID, err := shared.ParseMemoryID(toIDStr)
	if err != nil {
		return nil, err
	}
	userID, err := shared.NewUserID(userIDStr)
	if err != nil {
		return nil, err
	}
	edgeType := Type(edgeTypeStr)
	if !edgeType.Valid() {
		return nil, shared.ErrInvalidEdgeType
	}
	return NewEdge(NewEdgeParams{
		FromMemoryID: fromID,
		ToMemoryID:   toID,
		UserID:       userID,
		EdgeType:     edgeType,
		Strength:     strength,
		Confidence:   confidence,
		Causality:    edgeType.IsCausal(),
	})
}

// Getters

func (e *Edge) ID() shared.EdgeID        { return e.id }
func (e *Edge) From() shared.MemoryID    { return e.fromMemoryID }
func (e *Edge) To() shared.MemoryID      { return e.toMemoryID }
func (e *Edge) UserID() shared.UserID    { return e.userID }
func (e *Edge) Type() Type               { return e.edgeType }
func (e *Edge) Strength() float64        { return e.strength }
func (e *Edge) Confidence() float64      { return e.confidence }
func (e *Edge) Causality() bool          { return e.causality }
func (e *Edge) Bidirectional() bool      { return e.bidirectional }
func (e *Edge) Reason() string           { return e.reason }
func (e *Edge) CreatedAt() time.Time     { return e.createdAt }
func (e *Edge) UpdatedAt() time.Time     { return e.updatedAt }
func (e *Edge) Version() shared.Version  { return e.version }

// Business Methods

// IsReverse checks if this edge is the exact reverse of another edge.
func (e *Edge) IsReverse(other *Edge) bool {
	return e.fromMemoryID.Equals(other.toMemoryID) && e.toMemoryID.Equals(other.fromMemoryID)
}

// ConnectsMemories checks if this edge connects two specific memories, in either direction.
func (e *Edge) ConnectsMemories(a, b shared.MemoryID) bool {
	return (e.fromMemoryID.Equals(a) && e.toMemoryID.Equals(b)) ||
		(e.fromMemoryID.Equals(b) && e.toMemoryID.Equals(a))
}

// HasMemory checks if this edge involves a specific memory.
func (e *Edge) HasMemory(id shared.MemoryID) bool {
	return e.fromMemoryID.Equals(id) || e.toMemoryID.Equals(id)
}

// IsStrongConnection reports a strength at or above 0.5.
func (e *Edge) IsStrongConnection() bool { return e.strength >= 0.5 }

// IsWeakConnection reports a strength below 0.5.
func (e *Edge) IsWeakConnection() bool { return e.strength < 0.5 }

// Upsert applies a relationship-inference re-observation of an existing
// edge: strength and confidence are updated and a version bump plus
// EdgeUpserted event are recorded (spec §4.2 step 8 upsert semantics).
// Upsert applies a re-observation of this edge (spec §4.3: consolidation
// may update strength freely, but confidence must never decrease
// automatically — the larger of the stored and incoming values wins).
func (e *Edge) Upsert(newStrength, newConfidence float64) {
	strength := clampUnit(newStrength)
	confidence := clampUnit(newConfidence)
	if confidence < e.confidence {
		confidence = e.confidence
	}
	if strength == e.strength && confidence == e.confidence {
		return
	}
	e.strength = strength
	e.confidence = confidence
	e.updatedAt = time.Now()
	e.version = e.version.Next()
	e.addEvent(shared.NewEdgeUpsertedEvent(e.id, e.userID, strength, confidence))
}

// ValidateInvariants ensures all business rules are satisfied.
func (e *Edge) ValidateInvariants() error {
	if e.fromMemoryID.Equals(e.toMemoryID) {
		return shared.ErrSelfEdge
	}
	if !e.edgeType.Valid() {
		return shared.ErrInvalidEdgeType
	}
	if e.strength < 0 || e.strength > 1 {
		return shared.ErrInvalidEdgeType
	}
	if e.confidence < 0 || e.confidence > 1 {
		return shared.ErrInvalidEdgeType
	}
	if e.id.String() == "" {
		return shared.ErrInvalidEdgeType
	}
	if e.userID.IsEmpty() {
		return shared.ErrCrossUserEdge
	}
	if e.updatedAt.Before(e.createdAt) {
		return shared.ErrInvalidEdgeType
	}
	return nil
}

// Delete bumps this edge's version; it records no event and changes no
// other field.
func (e *Edge) Delete() {
	e.version = e.version.Next()
}

func (e *Edge) GetID() string     { return e.id.String() }
func (e *Edge) GetVersion() int   { return e.version.Int() }
func (e *Edge) IncrementVersion() { e.version = e.version.Next() }

func (e *Edge) GetUncommittedEvents() []shared.DomainEvent { return e.events }
func (e *Edge) MarkEventsAsCommitted()                     { e.events = []shared.DomainEvent{} }

func (e *Edge) addEvent(event shared.DomainEvent) { e.events = append(e.events, event) }

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

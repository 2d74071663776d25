package edge

import (
	"testing"
	"time"

	"memory-engine/internal/domain/shared"
)

func newTestEdge(t *testing.T, edgeType Type, strength float64) *Edge {
	t.Helper()
	userID, _ := shared.NewUserID("user123")
	e, err := NewEdge(NewEdgeParams{
		FromMemoryID: shared.NewMemoryID(),
		ToMemoryID:   shared.NewMemoryID(),
		UserID:       userID,
		EdgeType:     edgeType,
		Strength:     strength,
		Confidence:   0.9,
	})
	if err != nil {
		t.Fatalf("NewEdge() error = %v", err)
	}
	return e
}

func TestNewEdge_RejectsSelfEdge(t *testing.T) {
	userID, _ := shared.NewUserID("user123")
	id := shared.NewMemoryID()
	_, err := NewEdge(NewEdgeParams{
		FromMemoryID: id,
		ToMemoryID:   id,
		UserID:       userID,
		EdgeType:     TypeRelatedTo,
		Strength:     0.5,
		Confidence:   0.5,
	})
	if err == nil {
		t.Fatal("expected self-edge to be rejected")
	}
}

func TestNewEdge_RejectsInvalidType(t *testing.T) {
	userID, _ := shared.NewUserID("user123")
	_, err := NewEdge(NewEdgeParams{
		FromMemoryID: shared.NewMemoryID(),
		ToMemoryID:   shared.NewMemoryID(),
		UserID:       userID,
		EdgeType:     Type("NOT_A_TYPE"),
		Strength:     0.5,
	})
	if err == nil {
		t.Fatal("expected invalid edge type to be rejected")
	}
}

func TestNewEdge_ClampsStrengthAndConfidence(t *testing.T) {
	userID, _ := shared.NewUserID("user123")
	e, err := NewEdge(NewEdgeParams{
		FromMemoryID: shared.NewMemoryID(),
		ToMemoryID:   shared.NewMemoryID(),
		UserID:       userID,
		EdgeType:     TypeRelatedTo,
		Strength:     1.5,
		Confidence:   -0.3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Strength() != 1 {
		t.Errorf("expected strength clamped to 1, got %v", e.Strength())
	}
	if e.Confidence() != 0 {
		t.Errorf("expected confidence clamped to 0, got %v", e.Confidence())
	}
}

func TestEdge_Upsert(t *testing.T) {
	e := newTestEdge(t, TypeSupports, 0.5)
	e.MarkEventsAsCommitted()

	e.Upsert(0.5, 0.9) // no-op: identical values
	if len(e.GetUncommittedEvents()) != 0 {
		t.Error("expected no event when upsert does not change values")
	}

	initialVersion := e.GetVersion()
	e.Upsert(0.8, 0.95)
	if e.Strength() != 0.8 || e.Confidence() != 0.95 {
		t.Errorf("expected strength/confidence updated, got %v/%v", e.Strength(), e.Confidence())
	}
	if e.GetVersion() != initialVersion+1 {
		t.Error("expected version bump on upsert")
	}
	events := e.GetUncommittedEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if _, ok := events[0].(*shared.EdgeUpsertedEvent); !ok {
		t.Error("expected EdgeUpsertedEvent")
	}
}

func TestEdge_Upsert_ConfidenceNeverDecreases(t *testing.T) {
	e := newTestEdge(t, TypeSupports, 0.5)
	e.Upsert(0.8, 0.95)
	e.Upsert(0.7, 0.2)
	if e.Confidence() != 0.95 {
		t.Errorf("expected confidence to stay at the prior maximum 0.95, got %v", e.Confidence())
	}
	if e.Strength() != 0.7 {
		t.Errorf("expected strength to still update freely, got %v", e.Strength())
	}
}

func TestEdge_ValidateInvariants(t *testing.T) {
	t.Run("valid edge", func(t *testing.T) {
		e := newTestEdge(t, TypeRelatedTo, 0.5)
		if err := e.ValidateInvariants(); err != nil {
			t.Errorf("valid edge should pass invariants: %v", err)
		}
	})

	t.Run("stale timestamps", func(t *testing.T) {
		e := newTestEdge(t, TypeRelatedTo, 0.5)
		e.updatedAt = e.createdAt.Add(-time.Hour)
		if err := e.ValidateInvariants(); err == nil {
			t.Error("updatedAt before createdAt should fail invariants")
		}
	})
}

func TestEdge_ClassificationMethods(t *testing.T) {
	tests := []struct {
		strength float64
		isStrong bool
		isWeak   bool
	}{
		{strength: 0.8, isStrong: true, isWeak: false},
		{strength: 0.2, isStrong: false, isWeak: true},
		{strength: 0.5, isStrong: true, isWeak: false},
	}

	for _, tt := range tests {
		e := newTestEdge(t, TypeRelatedTo, tt.strength)
		if e.IsStrongConnection() != tt.isStrong {
			t.Errorf("strength %v: IsStrongConnection = %v, want %v", tt.strength, e.IsStrongConnection(), tt.isStrong)
		}
		if e.IsWeakConnection() != tt.isWeak {
			t.Errorf("strength %v: IsWeakConnection = %v, want %v", tt.strength, e.IsWeakConnection(), tt.isWeak)
		}
	}
}

func TestEdge_ConnectsAndHasMemory(t *testing.T) {
	userID, _ := shared.NewUserID("user123")
	from := shared.NewMemoryID()
	to := shared.NewMemoryID()
	other := shared.NewMemoryID()

	e, err := NewEdge(NewEdgeParams{FromMemoryID: from, ToMemoryID: to, UserID: userID, EdgeType: TypeRelatedTo, Strength: 0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !e.ConnectsMemories(from, to) || !e.ConnectsMemories(to, from) {
		t.Error("expected ConnectsMemories to match in either direction")
	}
	if e.ConnectsMemories(from, other) {
		t.Error("expected ConnectsMemories to reject unrelated memory")
	}
	if !e.HasMemory(from) || !e.HasMemory(to) {
		t.Error("expected HasMemory to match both endpoints")
	}
	if e.HasMemory(other) {
		t.Error("expected HasMemory to reject unrelated memory")
	}
}

func TestEdge_CausalTypes(t *testing.T) {
	if !TypeLeadsTo.IsCausal() || !TypeDependsOn.IsCausal() || !TypeEvolvesInto.IsCausal() {
		t.Error("expected LEADS_TO/DEPENDS_ON/EVOLVES_INTO to be causal")
	}
	if TypeRelatedTo.IsCausal() || TypeLikes.IsCausal() {
		t.Error("expected RELATED_TO/LIKES to be non-causal")
	}
}

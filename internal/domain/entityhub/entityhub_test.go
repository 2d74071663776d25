package entityhub

import (
	"testing"

	"memory-engine/internal/domain/shared"
)

func newTestHub(t *testing.T) *EntityHub {
	t.Helper()
	userID, _ := shared.NewUserID("user123")
	h, err := NewEntityHub(NewEntityHubParams{
		UserID:     userID,
		EntityName: "PostgreSQL",
		HubType:    HubTypeTech,
		Source:     SourceLLM,
	})
	if err != nil {
		t.Fatalf("NewEntityHub() error = %v", err)
	}
	return h
}

func TestNewEntityHub_NormalisesName(t *testing.T) {
	h := newTestHub(t)
	if h.EntityName() != "postgresql" {
		t.Errorf("expected normalised name 'postgresql', got %q", h.EntityName())
	}
}

func TestNewEntityHub_RejectsShortName(t *testing.T) {
	userID, _ := shared.NewUserID("user123")
	_, err := NewEntityHub(NewEntityHubParams{UserID: userID, EntityName: "a", HubType: HubTypeTech})
	if err == nil {
		t.Fatal("expected short entity name to be rejected")
	}
}

func TestNewEntityHub_RejectsInvalidHubType(t *testing.T) {
	userID, _ := shared.NewUserID("user123")
	_, err := NewEntityHub(NewEntityHubParams{UserID: userID, EntityName: "rust", HubType: HubType("bogus")})
	if err == nil {
		t.Fatal("expected invalid hub type to be rejected")
	}
}

func TestNewEntityHub_GeneratesLearnedEvent(t *testing.T) {
	h := newTestHub(t)
	events := h.GetUncommittedEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if _, ok := events[0].(*shared.EntityLearnedEvent); !ok {
		t.Error("expected EntityLearnedEvent")
	}
}

func TestEntityHub_Matches(t *testing.T) {
	h := newTestHub(t)
	h.AddAlias("Postgres")
	h.AddAlias("pg")

	if !h.Matches("postgresql") || !h.Matches("Postgres") || !h.Matches("PG") {
		t.Error("expected Matches to find entity name and aliases case-insensitively")
	}
	if h.Matches("mysql") {
		t.Error("expected Matches to reject an unrelated name")
	}
}

func TestEntityHub_Reuse(t *testing.T) {
	h := newTestHub(t)
	h.MarkEventsAsCommitted()

	initialUsage := h.UsageCount()
	h.Reuse()
	if h.UsageCount() != initialUsage+1 {
		t.Error("expected usage count to increment")
	}
	if h.LastUsed() == nil {
		t.Error("expected last_used to be set")
	}
	events := h.GetUncommittedEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if _, ok := events[0].(*shared.EntityReusedEvent); !ok {
		t.Error("expected EntityReusedEvent")
	}
}

func TestEntityHub_LinkedUnlinkedMemory(t *testing.T) {
	h := newTestHub(t)
	h.LinkedMemory()
	h.LinkedMemory()
	if h.MemoryCount() != 2 {
		t.Errorf("expected memory count 2, got %d", h.MemoryCount())
	}
	h.UnlinkedMemory()
	h.UnlinkedMemory()
	h.UnlinkedMemory() // should not go negative
	if h.MemoryCount() != 0 {
		t.Errorf("expected memory count floored at 0, got %d", h.MemoryCount())
	}
}

func TestMemoryEntityLink_MergeKeepsGreaterStrength(t *testing.T) {
	userID, _ := shared.NewUserID("user123")
	memID := shared.NewMemoryID()
	entID := shared.NewEntityID()

	a := NewMemoryEntityLink(memID, entID, userID, 0.4, false, "first mention")
	b := NewMemoryEntityLink(memID, entID, userID, 0.9, true, "second mention")

	merged := a.Merge(b)
	if merged.Strength != 0.9 {
		t.Errorf("expected merged strength 0.9, got %v", merged.Strength)
	}
	if merged.MentionCount != 2 {
		t.Errorf("expected mention count 2, got %d", merged.MentionCount)
	}
	if !merged.IsPrimary {
		t.Error("expected IsPrimary to be true after merge")
	}
}

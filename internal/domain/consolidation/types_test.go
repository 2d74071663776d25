package consolidation

import (
	"testing"

	"memory-engine/internal/domain/memory"
)

func TestClaim_ToMemoryType(t *testing.T) {
	tests := []struct {
		claimType string
		want      memory.Type
	}{
		{"preference", memory.TypePreference},
		{"decision", memory.TypePreference},
		{"workflow", memory.TypeProcedural},
		{"insight", memory.TypeSemantic},
		{"learning", memory.TypeEpisodic},
		{"how_to", memory.TypeProcedural},
		{"struggle", memory.TypeMeta},
		{"unrecognised", memory.TypeSemantic},
	}
	for _, tt := range tests {
		c := Claim{ClaimType: tt.claimType}
		if got := c.ToMemoryType(); got != tt.want {
			t.Errorf("Claim{ClaimType: %q}.ToMemoryType() = %v, want %v", tt.claimType, got, tt.want)
		}
	}
}

func TestNewHistoryFromResult(t *testing.T) {
	r := Result{
		ConsolidationID:  "c1",
		UserID:           "user123",
		NewMemoriesCount: 3,
		MergedCount:      2,
		Status:           StatusCompleted,
	}
	h := NewHistoryFromResult(r, "0.5-0.85")
	if h.MemoriesProcessed != 5 {
		t.Errorf("expected memories processed 5, got %d", h.MemoriesProcessed)
	}
	if h.ConflictSimilarityRange != "0.5-0.85" {
		t.Errorf("expected conflict range carried through, got %q", h.ConflictSimilarityRange)
	}
	if h.DuplicateSimilarityThreshold != memory.ConflictSimilarityHigh {
		t.Errorf("expected duplicate threshold to match memory.ConflictSimilarityHigh, got %v", h.DuplicateSimilarityThreshold)
	}
}

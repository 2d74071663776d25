// Package consolidation models the session-consolidation pipeline's
// intermediate and final shapes: claims extracted from a transcript,
// duplicate groups, detected conflicts and their resolutions, inferred
// relationships, and the audit trail of past consolidation runs
// (spec §4.2, supplemented from original_source/src/models/consolidation.py).
package consolidation

import (
	"time"

	"memory-engine/internal/domain/memory"
)

// Claim is a single factual statement, preference, or learning the
// language model extracted from a transcript (spec §4.2 step 1).
type Claim struct {
	Text        string
	Source      string
	Confidence  float64
	ClaimType   string
	Entities    []string
	Importance  int
	Domain      string
	Category    string
	Embedding   []float32
	ConsumedBy  int // index into the final claim list, -1 if not consumed by a merge/evolution
}

// ToMemoryType maps claim_type to a memory.Type via the fixed table
// (spec §4.2 step 1), delegating to memory.MemoryTypeForClaim so the
// table is defined once.
func (c Claim) ToMemoryType() memory.Type {
	return memory.MemoryTypeForClaim(c.ClaimType)
}

// DuplicateGroup is a set of claims judged duplicates of one another
// (s >= 0.85 transitively), with the first-by-transcript-order claim
// chosen as canonical (spec §4.2 step 3).
type DuplicateGroup struct {
	Claims     []Claim
	Canonical  Claim
	Similarity float64
}

// ConflictType distinguishes the kinds of contradiction the language
// model can report for a claim pair (spec §4.2 step 4).
type ConflictType string

const (
	ConflictTypePreference ConflictType = "preference_conflict"
	ConflictTypeFactual    ConflictType = "factual_conflict"
)

// Conflict is a detected contradiction between two claims of matching
// type, in the 0.5 < s <= 0.85 similarity band.
type Conflict struct {
	ClaimA       Claim
	ClaimB       Claim
	Similarity   float64
	ConflictType ConflictType
}

// ConflictResolution is the language model's verdict on a Conflict:
// whether it is a real contradiction, and if the pair instead describes
// an evolution over time, the synthesized evolved statement.
type ConflictResolution struct {
	OriginalConflict Conflict
	Resolution       string
	IsRealConflict   bool
	EvolvedMemory    string
	Confidence       float64
}

// Relationship is an inferred edge between two entities, produced by
// relationship inference over the finalised claim list (spec §4.2 step 8).
type Relationship struct {
	FromEntity       string
	ToEntity         string
	RelationshipType string
	Confidence       float64
}

// Status is a consolidation job's terminal lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Result is consolidate()'s return value: the full accounting of one
// transcript's processing (spec §4.2 contract, supplemented per
// original_source/src/models/consolidation.py with session_transcript_length,
// claims_extracted, and key_entities).
type Result struct {
	ConsolidationID string
	UserID          string
	ConversationID  string

	SessionTranscriptLength int
	ClaimsExtracted         int

	NewMemoriesCount int
	NewMemoryIDs     []string
	MergedCount      int
	ConflictsResolved int
	EdgesCreated     int

	PatternsDetected []string
	KeyEntities      []string

	ProcessingTimeMs int
	Status           Status
	ErrorMessage     string
	CreatedAt        time.Time
}

// History is the persisted audit record of a consolidation run
// (spec §3's Consolidation History entity, supplemented with
// tokens_used/embedding_cost_usd/duplicate_similarity_threshold/
// conflict_similarity_range/sentiment_analysis per the original model).
type History struct {
	ID                string
	UserID            string
	ConsolidationDate time.Time
	SessionID         string
	ConversationID    string

	SessionTranscriptLength int
	ClaimsExtracted         int
	MemoriesProcessed       int
	NewMemoriesCreated      int
	MergedCount             int
	ConflictsResolved       int
	EdgesCreated            int

	ProcessingTimeMs  int
	TokensUsed        int
	EmbeddingCostUSD  float64

	DuplicateSimilarityThreshold float64
	ConflictSimilarityRange      string

	PatternsDetected  []string
	KeyEntities       []string
	SentimentAnalysis map[string]string

	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
	Metadata     map[string]string
}

// NewHistoryFromResult builds the audit row for a completed/failed run,
// carrying forward the fixed thresholds the pipeline used (spec §4.2's
// sizing constraints, memory.ConflictSimilarityHigh and friends).
func NewHistoryFromResult(r Result, conflictRangeLabel string) History {
	return History{
		ID:                           r.ConsolidationID,
		UserID:                       r.UserID,
		ConsolidationDate:            r.CreatedAt,
		ConversationID:               r.ConversationID,
		SessionTranscriptLength:      r.SessionTranscriptLength,
		ClaimsExtracted:              r.ClaimsExtracted,
		MemoriesProcessed:            r.NewMemoriesCount + r.MergedCount,
		NewMemoriesCreated:           r.NewMemoriesCount,
		MergedCount:                  r.MergedCount,
		ConflictsResolved:            r.ConflictsResolved,
		EdgesCreated:                 r.EdgesCreated,
		ProcessingTimeMs:             r.ProcessingTimeMs,
		DuplicateSimilarityThreshold: memory.ConflictSimilarityHigh,
		ConflictSimilarityRange:      conflictRangeLabel,
		PatternsDetected:             r.PatternsDetected,
		KeyEntities:                  r.KeyEntities,
		SentimentAnalysis:            map[string]string{},
		Status:                       r.Status,
		ErrorMessage:                 r.ErrorMessage,
		CreatedAt:                    r.CreatedAt,
		Metadata:                     map[string]string{},
	}
}

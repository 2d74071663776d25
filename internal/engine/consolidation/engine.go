// Package consolidation implements the Consolidation Engine (spec §4.2):
// turns a session transcript into claims, deduplicates and resolves
// conflicts among them, persists the survivors as memories, infers
// relationships between the entities they mention, and records the run
// in the consolidation history. Grounded on original_source's
// ConsolidationEngine.consolidate(), re-expressed in the teacher's
// orchestration style — a thin struct over engine/repository interfaces
// with a single documented entry point and non-critical-path errors
// logged rather than propagated.
package consolidation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"memory-engine/internal/domain/consolidation"
	"memory-engine/internal/domain/edge"
	"memory-engine/internal/domain/memory"
	"memory-engine/internal/domain/shared"
	"memory-engine/internal/embedding"
	"memory-engine/internal/engine/processor"
	"memory-engine/internal/infrastructure/observability"
	"memory-engine/internal/llm"
	apperrors "memory-engine/pkg/errors"
)

// Transcript sizing bounds (spec §4.2). Expressed as two distinct
// sentinel errors rather than one generic validation message, so a
// caller can tell "too short" from "too long" with errors.Is instead of
// string matching.
const (
	minTranscriptLength = 10
	maxTranscriptLength = 100_000
)

var (
	ErrTranscriptTooShort = apperrors.Validation("transcript is shorter than the minimum 10 characters required for consolidation")
	ErrTranscriptTooLong  = apperrors.Validation("transcript exceeds the maximum 100,000 characters allowed for consolidation")
)

// persistBatchSize bounds how many claims are handed to the processor
// concurrently at once (spec §4.2 step 7's batches of 10).
const persistBatchSize = 10

// maxKeyEntities caps the result's key_entities summary field.
const maxKeyEntities = 20

// relationshipTypeToEdgeType maps an inferred relationship_type string to
// a knowledge-graph edge type, defaulting unrecognised types to
// RELATED_TO (spec §4.2 step 8, grounded on
// original_source/src/engine/knowledge_graph.py's create_edges_from_relationships).
var relationshipTypeToEdgeType = map[string]edge.Type{
	"likes":        edge.TypeLikes,
	"dislikes":     edge.TypeDislikes,
	"leads_to":     edge.TypeLeadsTo,
	"related_to":   edge.TypeRelatedTo,
	"depends_on":   edge.TypeDependsOn,
	"evolves_into": edge.TypeEvolvesInto,
	"contradicts":  edge.TypeContradicts,
	"supports":     edge.TypeSupports,
}

// EntityExtractor is the narrow surface the Entity Hub subsystem exposes
// for consolidation's per-claim entity extraction (spec §4.2 step 6).
type EntityExtractor interface {
	ExtractAndLearn(ctx context.Context, userID shared.UserID, text string) ([]string, error)
}

// Engine is the Consolidation Engine.
type Engine struct {
	edges     edge.Repository
	entities  EntityExtractor
	processor *processor.Processor
	llmClient llm.Provider
	embedder  *embedding.CachedProvider
	history   consolidation.HistoryRepository
	logger    *zap.Logger
}

func New(
	edges edge.Repository,
	entities EntityExtractor,
	proc *processor.Processor,
	llmClient llm.Provider,
	embedder *embedding.CachedProvider,
	history consolidation.HistoryRepository,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{edges: edges, entities: entities, processor: proc, llmClient: llmClient, embedder: embedder, history: history, logger: logger}
}

// Consolidate runs the full session-consolidation pipeline (spec §4.2
// steps 1-10) over a single transcript.
func (e *Engine) Consolidate(ctx context.Context, userID shared.UserID, transcript, conversationID string) (consolidation.Result, error) {
	ctx, span := observability.CreateChildSpan(ctx, "consolidation.Engine.Consolidate", "consolidate_session")
	defer span.End()

	start := time.Now()
	consolidationID := uuid.New().String()
	trimmed := strings.TrimSpace(transcript)

	if len(trimmed) < minTranscriptLength {
		return consolidation.Result{}, ErrTranscriptTooShort
	}
	if len(transcript) > maxTranscriptLength {
		return consolidation.Result{}, ErrTranscriptTooLong
	}

	if e.llmClient == nil || !e.llmClient.IsAvailable() {
		return e.emptyResult(consolidationID, userID.String(), len(transcript)), nil
	}

	prompt, opts := llm.ExtractClaimsPrompt(transcript)
	response, err := e.llmClient.Complete(ctx, prompt, opts)
	if err != nil {
		e.logger.Warn("consolidation: claim extraction failed", zap.Error(err))
		return e.emptyResult(consolidationID, userID.String(), len(transcript)), nil
	}
	extracted, err := llm.ParseClaims(response)
	if err != nil {
		e.logger.Warn("consolidation: claim extraction response unparsable", zap.Error(err))
		return e.emptyResult(consolidationID, userID.String(), len(transcript)), nil
	}
	if len(extracted) == 0 {
		return e.emptyResult(consolidationID, userID.String(), len(transcript)), nil
	}

	claims := make([]consolidation.Claim, len(extracted))
	texts := make([]string, len(extracted))
	for i, c := range extracted {
		claims[i] = consolidation.Claim{
			Text: c.Claim, Source: c.Source, Confidence: c.Confidence,
			ClaimType: c.ClaimType, Entities: c.Entities, Importance: c.Importance,
			ConsumedBy: -1,
		}
		texts[i] = c.Claim
	}

	embeddings, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return e.failedResult(ctx, consolidationID, userID.String(), len(transcript), len(claims), start, err)
	}
	for i := range claims {
		if i < len(embeddings) {
			claims[i].Embedding = embeddings[i].Values()
		}
	}

	duplicates := groupDuplicates(claims, embeddings, memory.ConflictSimilarityHigh)
	conflicts := findConflicts(claims, embeddings, memory.ConflictSimilarityLow, memory.ConflictSimilarityHigh)
	resolutions := e.resolveConflicts(ctx, conflicts)
	finalClaims := buildFinalClaims(claims, duplicates, resolutions)
	finalClaims = e.extractEntities(ctx, userID, finalClaims)

	created := e.persistClaims(ctx, userID, finalClaims, consolidationID, conversationID)

	entityToMemory, keyEntities := mapEntitiesToMemories(created)
	edgesCreated := e.inferAndCreateEdges(ctx, userID, finalClaims, entityToMemory)

	claimTexts := make([]string, len(finalClaims))
	for i, c := range finalClaims {
		claimTexts[i] = c.Text
	}
	patterns := e.detectPatterns(ctx, claimTexts)

	mergedCount := 0
	for _, d := range duplicates {
		mergedCount += len(d.Claims) - 1
	}

	memoryIDs := make([]string, len(created))
	for i, m := range created {
		memoryIDs[i] = m.ID().String()
	}

	result := consolidation.Result{
		ConsolidationID:         consolidationID,
		UserID:                  userID.String(),
		ConversationID:          conversationID,
		SessionTranscriptLength: len(transcript),
		ClaimsExtracted:         len(claims),
		NewMemoriesCount:        len(created),
		NewMemoryIDs:            memoryIDs,
		MergedCount:             mergedCount,
		ConflictsResolved:       len(resolutions),
		EdgesCreated:            edgesCreated,
		PatternsDetected:        patterns,
		KeyEntities:             keyEntities,
		ProcessingTimeMs:        int(time.Since(start).Milliseconds()),
		Status:                  consolidation.StatusCompleted,
		CreatedAt:               time.Now(),
	}
	e.saveHistory(ctx, result)
	return result, nil
}

func (e *Engine) emptyResult(consolidationID, userID string, transcriptLen int) consolidation.Result {
	result := consolidation.Result{
		ConsolidationID:         consolidationID,
		UserID:                  userID,
		SessionTranscriptLength: transcriptLen,
		Status:                  consolidation.StatusCompleted,
		CreatedAt:               time.Now(),
	}
	e.saveHistory(context.Background(), result)
	return result
}

// failedResult builds a terminal Failed result for an unrecoverable
// pipeline error (spec §4.2's "consolidation must never panic the
// caller's request" failure mode), saves it to the audit trail, and
// returns it alongside the triggering error.
func (e *Engine) failedResult(ctx context.Context, consolidationID, userID string, transcriptLen, claimsExtracted int, start time.Time, cause error) (consolidation.Result, error) {
	result := consolidation.Result{
		ConsolidationID:         consolidationID,
		UserID:                  userID,
		SessionTranscriptLength: transcriptLen,
		ClaimsExtracted:         claimsExtracted,
		ProcessingTimeMs:        int(time.Since(start).Milliseconds()),
		Status:                  consolidation.StatusFailed,
		ErrorMessage:            cause.Error(),
		CreatedAt:               time.Now(),
	}
	e.saveHistory(ctx, result)
	return result, cause
}

func (e *Engine) saveHistory(ctx context.Context, result consolidation.Result) {
	if e.history == nil {
		return
	}
	history := consolidation.NewHistoryFromResult(result, conflictRangeLabel())
	if err := e.history.Save(ctx, history); err != nil {
		e.logger.Warn("non-critical error saving consolidation history", zap.Error(err), zap.String("consolidation_id", result.ConsolidationID))
	}
}

func conflictRangeLabel() string {
	return fmt.Sprintf("%.2f-%.2f", memory.ConflictSimilarityLow, memory.ConflictSimilarityHigh)
}

// groupDuplicates finds the transitive closure of claims whose pairwise
// cosine similarity is at or above threshold, choosing the lowest-index
// (first-by-transcript-order) claim in each group as canonical and
// boosting its confidence (spec §4.2 step 3, grounded on
// original_source's _find_duplicates/_build_final_claims).
func groupDuplicates(claims []consolidation.Claim, embeddings []shared.EmbeddingVector, threshold float64) []consolidation.DuplicateGroup {
	type group struct {
		indices    []int
		similarity float64
	}
	var groups []group
	used := map[int]bool{}

	for i := 0; i < len(embeddings); i++ {
		for j := i + 1; j < len(embeddings); j++ {
			sim := embeddings[i].CosineSimilarity(embeddings[j])
			if sim < threshold {
				continue
			}
			if used[i] && used[j] {
				continue
			}
			found := false
			for gi := range groups {
				if containsInt(groups[gi].indices, i) || containsInt(groups[gi].indices, j) {
					if !containsInt(groups[gi].indices, i) {
						groups[gi].indices = append(groups[gi].indices, i)
					}
					if !containsInt(groups[gi].indices, j) {
						groups[gi].indices = append(groups[gi].indices, j)
					}
					found = true
					break
				}
			}
			if !found {
				groups = append(groups, group{indices: []int{i, j}, similarity: sim})
			}
			used[i], used[j] = true, true
		}
	}

	result := make([]consolidation.DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		sort.Ints(g.indices)
		members := make([]consolidation.Claim, len(g.indices))
		for k, idx := range g.indices {
			members[k] = claims[idx]
		}
		canonical := members[0]
		canonical.Confidence = math.Min(1.0, canonical.Confidence+0.1*float64(len(members)-1))
		result = append(result, consolidation.DuplicateGroup{Claims: members, Canonical: canonical, Similarity: g.similarity})
	}
	return result
}

func containsInt(values []int, target int) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// findConflicts flags claim pairs in the (low, high] similarity band that
// share the "preference" claim type (spec §4.2 step 4).
func findConflicts(claims []consolidation.Claim, embeddings []shared.EmbeddingVector, low, high float64) []consolidation.Conflict {
	var conflicts []consolidation.Conflict
	for i := 0; i < len(claims); i++ {
		for j := i + 1; j < len(claims); j++ {
			sim := embeddings[i].CosineSimilarity(embeddings[j])
			if sim <= low || sim > high {
				continue
			}
			if claims[i].ClaimType != "preference" || claims[j].ClaimType != "preference" {
				continue
			}
			conflicts = append(conflicts, consolidation.Conflict{
				ClaimA: claims[i], ClaimB: claims[j], Similarity: sim,
				ConflictType: consolidation.ConflictTypePreference,
			})
		}
	}
	return conflicts
}

// resolveConflicts asks the language model to adjudicate each detected
// conflict (spec §4.2 step 5). A failed or unparsable call degrades to a
// conservative "treat as a real, unresolved conflict" verdict rather than
// dropping the conflict silently.
func (e *Engine) resolveConflicts(ctx context.Context, conflicts []consolidation.Conflict) []consolidation.ConflictResolution {
	if len(conflicts) == 0 {
		return nil
	}
	resolutions := make([]consolidation.ConflictResolution, len(conflicts))
	for i, c := range conflicts {
		resolutions[i] = e.resolveOneConflict(ctx, c)
	}
	return resolutions
}

func (e *Engine) resolveOneConflict(ctx context.Context, c consolidation.Conflict) consolidation.ConflictResolution {
	fallback := consolidation.ConflictResolution{
		OriginalConflict: c, Resolution: "could not automatically resolve this conflict",
		IsRealConflict: true, Confidence: 0.5,
	}
	if e.llmClient == nil || !e.llmClient.IsAvailable() {
		return fallback
	}
	prompt, opts := llm.ResolveConflictPrompt(c.ClaimA.Text, c.ClaimB.Text, c.Similarity)
	response, err := e.llmClient.Complete(ctx, prompt, opts)
	if err != nil {
		e.logger.Warn("conflict resolution call failed", zap.Error(err))
		return fallback
	}
	verdict, err := llm.ParseResolution(response)
	if err != nil {
		e.logger.Warn("conflict resolution response unparsable", zap.Error(err))
		return fallback
	}
	return consolidation.ConflictResolution{
		OriginalConflict: c, Resolution: verdict.Resolution,
		IsRealConflict: verdict.IsRealConflict, EvolvedMemory: verdict.EvolvedMemory,
		Confidence: verdict.Confidence,
	}
}

// buildFinalClaims assembles the claim list consolidation will persist:
// canonical claims from duplicate groups, evolved claims synthesised from
// conflict resolutions, then every claim neither (spec §4.2 step 6). An
// evolved claim consumes both originals of its conflict; a resolution
// without one leaves both originals in the list.
func buildFinalClaims(claims []consolidation.Claim, duplicates []consolidation.DuplicateGroup, resolutions []consolidation.ConflictResolution) []consolidation.Claim {
	used := map[string]bool{}
	var final []consolidation.Claim

	for _, group := range duplicates {
		final = append(final, group.Canonical)
		for _, c := range group.Claims {
			used[c.Text] = true
		}
	}

	for _, res := range resolutions {
		if res.EvolvedMemory != "" {
			final = append(final, consolidation.Claim{
				Text: res.EvolvedMemory, Source: "conflict_resolution",
				Confidence: res.Confidence, ClaimType: "preference", ConsumedBy: -1,
			})
			used[res.OriginalConflict.ClaimA.Text] = true
			used[res.OriginalConflict.ClaimB.Text] = true
		}
	}

	for _, c := range claims {
		if !used[c.Text] {
			final = append(final, c)
		}
	}
	return final
}

// extractEntities fills in entities for every final claim that didn't
// already carry them, in parallel (spec §4.2 step 6's "per-claim entity
// extraction, parallel").
func (e *Engine) extractEntities(ctx context.Context, userID shared.UserID, claims []consolidation.Claim) []consolidation.Claim {
	if e.entities == nil {
		return claims
	}
	var pending []int
	for i, c := range claims {
		if len(c.Entities) == 0 {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return claims
	}

	results := make([][]string, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	for k, idx := range pending {
		k, idx := k, idx
		g.Go(func() error {
			names, err := e.entities.ExtractAndLearn(gctx, userID, claims[idx].Text)
			if err != nil {
				e.logger.Warn("non-critical error extracting claim entities", zap.Error(err))
				return nil
			}
			results[k] = names
			return nil
		})
	}
	_ = g.Wait()

	for k, idx := range pending {
		claims[idx].Entities = results[k]
	}
	return claims
}

// persistClaims writes the final claims through the Memory Processor in
// fixed-size batches, reusing each claim's embedding where one was already
// computed (spec §4.2 step 7).
func (e *Engine) persistClaims(ctx context.Context, userID shared.UserID, claims []consolidation.Claim, consolidationID, conversationID string) []*memory.Memory {
	var created []*memory.Memory
	for start := 0; start < len(claims); start += persistBatchSize {
		end := start + persistBatchSize
		if end > len(claims) {
			end = len(claims)
		}
		batch := claims[start:end]
		results := make([]*memory.Memory, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for k, c := range batch {
			k, c := k, c
			g.Go(func() error {
				m, err := e.persistOneClaim(gctx, userID, c, consolidationID, conversationID)
				if err != nil {
					e.logger.Warn("non-critical error persisting claim", zap.Error(err))
					return nil
				}
				results[k] = m
				return nil
			})
		}
		_ = g.Wait()

		for _, m := range results {
			if m != nil {
				created = append(created, m)
			}
		}
	}
	return created
}

func (e *Engine) persistOneClaim(ctx context.Context, userID shared.UserID, c consolidation.Claim, consolidationID, conversationID string) (*memory.Memory, error) {
	content, err := shared.NewContent(c.Text)
	if err != nil {
		return nil, err
	}
	var vec shared.EmbeddingVector
	if len(c.Embedding) > 0 {
		vec = shared.NewEmbeddingVector(c.Embedding)
	}
	result, err := e.processor.Process(ctx, processor.Request{
		UserID: userID, Content: content, Type: c.ToMemoryType(),
		Entities: c.Entities, Importance: c.Importance, Confidence: c.Confidence,
		Source: memory.SourceConsolidation, SourceID: conversationID,
		Metadata: map[string]string{
			"consolidation_id":     consolidationID,
			"claim_type":           c.ClaimType,
			"source_in_transcript": c.Source,
		},
		Embedding: vec,
	})
	if err != nil {
		return nil, err
	}
	return result.Memory, nil
}

// mapEntitiesToMemories builds the entity-name to memory-ID lookup
// relationship inference needs to turn entity pairs into edges
// (last writer wins per entity, matching original_source's
// entity_to_memory construction), plus the sorted key_entities summary.
func mapEntitiesToMemories(created []*memory.Memory) (map[string]shared.MemoryID, []string) {
	entityToMemory := map[string]shared.MemoryID{}
	for _, m := range created {
		for _, ent := range m.Entities().ToSlice() {
			entityToMemory[ent] = m.ID()
		}
	}
	names := make([]string, 0, len(entityToMemory))
	for name := range entityToMemory {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > maxKeyEntities {
		names = names[:maxKeyEntities]
	}
	return entityToMemory, names
}

// inferAndCreateEdges asks the language model for relationships among the
// finalised claims' entities, then materialises each as a knowledge-graph
// edge between the entities' representative memories (spec §4.2 step 8).
func (e *Engine) inferAndCreateEdges(ctx context.Context, userID shared.UserID, finalClaims []consolidation.Claim, entityToMemory map[string]shared.MemoryID) int {
	if e.llmClient == nil || !e.llmClient.IsAvailable() || len(entityToMemory) == 0 {
		return 0
	}
	entityNames := make([]string, 0, len(entityToMemory))
	for name := range entityToMemory {
		entityNames = append(entityNames, name)
	}
	sort.Strings(entityNames)

	claimTexts := make([]string, len(finalClaims))
	for i, c := range finalClaims {
		claimTexts[i] = c.Text
	}

	prompt, opts := llm.RelationshipInferencePrompt(claimTexts, entityNames)
	response, err := e.llmClient.Complete(ctx, prompt, opts)
	if err != nil {
		e.logger.Warn("relationship inference call failed", zap.Error(err))
		return 0
	}
	relationships, err := llm.ParseRelationships(response)
	if err != nil {
		e.logger.Warn("relationship inference response unparsable", zap.Error(err))
		return 0
	}

	created := 0
	for _, rel := range relationships {
		fromID, ok := entityToMemory[rel.FromEntity]
		if !ok {
			continue
		}
		toID, ok := entityToMemory[rel.ToEntity]
		if !ok || fromID.Equals(toID) {
			continue
		}
		edgeType, ok := relationshipTypeToEdgeType[rel.RelationshipType]
		if !ok {
			edgeType = edge.TypeRelatedTo
		}
		reason := "inferred from entities: " + rel.FromEntity + " -> " + rel.ToEntity
		if err := e.upsertEdge(ctx, userID, fromID, toID, edgeType, rel.Confidence, reason); err != nil {
			e.logger.Warn("non-critical error creating inferred edge", zap.Error(err))
			continue
		}
		created++
	}
	return created
}

// upsertEdge materialises or re-observes the edge between two memories
// (spec §4.2 step 8's upsert-on-reobservation rule, shared with
// internal/engine/graph's traversal layer).
func (e *Engine) upsertEdge(ctx context.Context, userID shared.UserID, from, to shared.MemoryID, edgeType edge.Type, confidence float64, reason string) error {
	existing, err := e.edges.FindByEndpoints(ctx, userID.String(), from, to, edgeType)
	if err == nil && existing != nil {
		existing.Upsert(confidence, confidence)
		return e.edges.Save(ctx, existing)
	}
	if err != nil && !shared.IsNotFoundError(err) {
		return err
	}

	newEdge, err := edge.NewEdge(edge.NewEdgeParams{
		FromMemoryID: from, ToMemoryID: to, UserID: userID, EdgeType: edgeType,
		Strength: confidence, Confidence: confidence, Causality: edgeType.IsCausal(), Reason: reason,
	})
	if err != nil {
		return err
	}
	return e.edges.Save(ctx, newEdge)
}

// detectPatterns asks the language model to summarise the finalised
// claims into a handful of short behavioural patterns (spec §4.2 step 9).
func (e *Engine) detectPatterns(ctx context.Context, claimTexts []string) []string {
	if e.llmClient == nil || !e.llmClient.IsAvailable() || len(claimTexts) == 0 {
		return nil
	}
	prompt, opts := llm.DetectPatternsPrompt(claimTexts)
	response, err := e.llmClient.Complete(ctx, prompt, opts)
	if err != nil {
		e.logger.Warn("pattern detection call failed", zap.Error(err))
		return nil
	}
	patterns, err := llm.ParsePatterns(response)
	if err != nil {
		e.logger.Warn("pattern detection response unparsable", zap.Error(err))
		return nil
	}
	return patterns
}

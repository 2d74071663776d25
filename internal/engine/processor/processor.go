// Package processor implements the Memory Processor: the engine's write
// path (spec §4.1). It orchestrates classification, embedding, importance
// derivation, the nearest-neighbour resolution decision, atomic
// persistence, and entity linkage behind a single process_memory-style
// entry point. Grounded on the teacher's internal/service/memory.Service
// orchestration style: a thin struct over repository/provider interfaces,
// a documented step-by-step workflow, and non-critical-path errors logged
// rather than propagated.
package processor

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"memory-engine/internal/domain/edge"
	"memory-engine/internal/domain/memory"
	"memory-engine/internal/domain/shared"
	"memory-engine/internal/embedding"
	"memory-engine/internal/llm"
	apperrors "memory-engine/pkg/errors"
	"memory-engine/pkg/retry"
)

// NearestNeighborK bounds the vector probe width (spec §4.1 step 4: "top-k ≤ 5").
const NearestNeighborK = 5

// Request is the caller-supplied shape of a process_memory call (spec
// §4.1 contract). Zero-valued optional fields trigger the classification
// fallback / heuristic derivation steps.
type Request struct {
	UserID     shared.UserID
	Content    shared.Content
	Type       memory.Type
	Domain     string
	Category   string
	Entities   []string
	Importance int
	Confidence float64
	Status     memory.Status
	Source     memory.Source
	SourceID   string
	Metadata   map[string]string

	// Embedding, when non-empty, is used in place of a fresh embedding call
	// (spec §4.2 step 7: consolidation already embedded every claim while
	// grouping duplicates/conflicts, and shouldn't pay for it twice).
	Embedding shared.EmbeddingVector
}

// Result is process_memory's return shape.
type Result struct {
	Memory  *memory.Memory
	Outcome memory.Outcome
}

// EntityExtractor is the narrow surface the Entity Hub subsystem (§4.5)
// exposes to the write path: extracting and learning entities from
// content, then linking them to the freshly persisted memory.
type EntityExtractor interface {
	ExtractAndLearn(ctx context.Context, userID shared.UserID, text string) ([]string, error)
	LinkMemoryToEntities(ctx context.Context, userID shared.UserID, memoryID shared.MemoryID, entityNames []string) error
}

// Processor is the Memory Processor.
type Processor struct {
	memories   memory.Repository
	edges      edge.Repository
	entities   EntityExtractor
	llmClient  llm.Provider
	embedder   *embedding.CachedProvider
	logger     *zap.Logger
}

func New(memories memory.Repository, edges edge.Repository, entities EntityExtractor, llmClient llm.Provider, embedder *embedding.CachedProvider, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{memories: memories, edges: edges, entities: entities, llmClient: llmClient, embedder: embedder, logger: logger}
}

// Process runs the full write-path pipeline (spec §4.1, steps 1-7).
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	memType, domainLabel, category, entities, err := p.classify(ctx, req)
	if err != nil {
		return Result{}, err
	}

	vec := req.Embedding
	if vec.IsEmpty() {
		var err error
		vec, err = p.embed(ctx, req.UserID, req.Content.String())
		if err != nil {
			return Result{}, err
		}
	}

	importance := req.Importance
	if importance == 0 {
		importance = deriveImportance(memType, req.Content, entities)
	}

	confidence := req.Confidence
	if confidence == 0 {
		confidence = 0.7
	}

	neighbors, err := p.memories.NearestNeighbors(ctx, req.UserID.String(), vec, NearestNeighborK)
	if err != nil {
		p.logger.Warn("non-critical error probing nearest neighbours", zap.Error(err))
	}

	status := req.Status
	if status == "" {
		status = memory.StatusActive
	}

	result, err := p.resolve(ctx, resolveInput{
		userID:     req.UserID,
		content:    req.Content,
		embedding:  vec,
		entities:   shared.NewEntityList(entities),
		memType:    memType,
		domain:     domainLabel,
		category:   category,
		importance: importance,
		confidence: confidence,
		status:     status,
		source:     req.Source,
		sourceID:   req.SourceID,
		metadata:   req.Metadata,
		neighbors:  neighbors,
	})
	if err != nil {
		return Result{}, err
	}

	if p.entities != nil && len(entities) > 0 {
		if err := p.entities.LinkMemoryToEntities(ctx, req.UserID, result.Memory.ID(), entities); err != nil {
			p.logger.Warn("non-critical error linking entities", zap.Error(err), zap.String("memory_id", result.Memory.ID().String()))
		}
	}

	return result, nil
}

// classify fills in type/domain/category/entities the caller omitted,
// falling back to heuristics when the language model is unavailable or
// every retry fails (spec §4.1 step 1, failure semantics).
func (p *Processor) classify(ctx context.Context, req Request) (memory.Type, string, string, []string, error) {
	memType, domainLabel, category, entities := req.Type, req.Domain, req.Category, req.Entities

	needsClassification := memType == "" || domainLabel == "" || len(entities) == 0
	if !needsClassification || p.llmClient == nil || !p.llmClient.IsAvailable() {
		return fallbackClassification(memType, domainLabel, category, entities, req.Content)
	}

	prompt, opts := llm.ClassifyPrompt(req.Content.String())
	var response string
	err := retry.Do(ctx, retry.LlmDefault(), func() error {
		out, callErr := p.llmClient.Complete(ctx, prompt, opts)
		if callErr != nil {
			return callErr
		}
		response = out
		return nil
	})
	if err != nil {
		p.logger.Warn("classification fallback: language model exhausted retries", zap.Error(err))
		return fallbackClassification(memType, domainLabel, category, entities, req.Content)
	}

	classified, err := llm.ParseClassification(response)
	if err != nil {
		p.logger.Warn("classification fallback: unparsable response", zap.Error(err))
		return fallbackClassification(memType, domainLabel, category, entities, req.Content)
	}

	if memType == "" {
		memType = memory.Type(classified.MemoryType)
		if !memType.Valid() {
			memType = memory.TypeSemantic
		}
	}
	if domainLabel == "" {
		coerced, prefix := memory.CoerceDomain(classified.Domain)
		domainLabel = string(coerced)
		if category == "" {
			category = prefix
		}
	}
	if category == "" {
		category = classified.Category
	}
	if len(entities) == 0 {
		entities = classified.Entities
	}
	return memType, domainLabel, category, entities, nil
}

// fallbackClassification applies spec §4.1's exhausted-retry defaults:
// type=semantic, domain=KnowWhere, category=General, importance via
// heuristic — with a keyword-based memory_type guess first, since that
// heuristic is cheap and strictly better than a blind default.
func fallbackClassification(memType memory.Type, domainLabel, category string, entities []string, content shared.Content) (memory.Type, string, string, []string, error) {
	if memType == "" {
		memType = heuristicMemoryType(content)
	}
	if !memType.Valid() {
		return "", "", "", nil, apperrors.Validation("invalid memory type")
	}
	if domainLabel == "" {
		domainLabel = string(memory.DomainKnowWhere)
	}
	if category == "" {
		category = "General"
	}
	if entities == nil {
		entities = content.ExtractKeywords().ToSlice()
	}
	return memType, domainLabel, category, entities, nil
}

var preferenceMarkers = []string{"i like", "i prefer", "i love", "i hate", "i dislike", "i want", "i always", "i never"}
var proceduralMarkers = []string{"step 1", "first,", "then,", "how to", "instructions", "recipe"}
var metaMarkers = []string{"note to self", "todo", "reminder", "remember to"}

// heuristicMemoryType infers memory_type from lexical markers when the
// language model is unavailable (spec §4.1 step 1, "infer memory_type
// from keyword heuristics").
func heuristicMemoryType(content shared.Content) memory.Type {
	lowered := strings.ToLower(content.String())
	for _, marker := range preferenceMarkers {
		if strings.Contains(lowered, marker) {
			return memory.TypePreference
		}
	}
	for _, marker := range proceduralMarkers {
		if strings.Contains(lowered, marker) {
			return memory.TypeProcedural
		}
	}
	for _, marker := range metaMarkers {
		if strings.Contains(lowered, marker) {
			return memory.TypeMeta
		}
	}
	return memory.TypeSemantic
}

// embed requests (and caches) the embedding for the content (spec §4.1 step 2).
func (p *Processor) embed(ctx context.Context, userID shared.UserID, content string) (shared.EmbeddingVector, error) {
	if p.embedder == nil {
		return shared.EmbeddingVector{}, apperrors.UpstreamEmbedding("no embedding provider configured", nil, 0)
	}
	var vec shared.EmbeddingVector
	err := retry.Do(ctx, retry.LlmDefault(), func() error {
		out, callErr := p.embedder.Embed(ctx, userID.String(), content)
		if callErr != nil {
			return callErr
		}
		vec = out
		return nil
	})
	if err != nil {
		return shared.EmbeddingVector{}, apperrors.UpstreamEmbedding("embedding failed after retries", err, 0)
	}
	return vec, nil
}

// deriveImportance applies spec §4.1 step 3's scoring rules. The ≥5
// entity bonus is evaluated before the ≥3 bonus so both thresholds are
// reachable (see the step's note on the original's branch ordering).
func deriveImportance(memType memory.Type, content shared.Content, entities []string) int {
	score := memType.DefaultImportance()
	length := content.Len()
	if length >= 500 {
		score++
	} else if length < 50 {
		score--
	}
	switch {
	case len(entities) >= 5:
		score += 2
	case len(entities) >= 3:
		score++
	}
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

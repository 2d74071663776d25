package processor

import (
	"context"

	"go.uber.org/zap"

	"memory-engine/internal/domain/edge"
	"memory-engine/internal/domain/memory"
	"memory-engine/internal/domain/shared"
	"memory-engine/internal/llm"
)

type resolveInput struct {
	userID     shared.UserID
	content    shared.Content
	embedding  shared.EmbeddingVector
	entities   shared.EntityList
	memType    memory.Type
	domain     string
	category   string
	importance int
	confidence float64
	status     memory.Status
	source     memory.Source
	sourceID   string
	metadata   map[string]string
	neighbors  []memory.NearestNeighbor
}

// resolve applies spec §4.1 step 5's resolution decision on the top
// neighbour's similarity, then persists atomically (step 6).
func (p *Processor) resolve(ctx context.Context, in resolveInput) (Result, error) {
	if len(in.neighbors) == 0 {
		return p.insert(ctx, in)
	}

	top := in.neighbors[0]
	switch {
	case top.Similarity >= memory.DedupSimilarityThreshold:
		top.Memory.Deduplicate(top.Similarity)
		if err := p.memories.Save(ctx, top.Memory); err != nil {
			return Result{}, err
		}
		return Result{Memory: top.Memory, Outcome: memory.OutcomeDeduplicated}, nil

	case top.Similarity >= memory.MaturationSimilarityLow:
		return p.maturateOrConsolidate(ctx, top.Memory, in)

	case top.Similarity >= memory.ConflictSimilarityLow && p.looksContradictory(ctx, top.Memory, in):
		return p.conflictResolve(ctx, top.Memory, in)

	default:
		return p.insert(ctx, in)
	}
}

func (p *Processor) insert(ctx context.Context, in resolveInput) (Result, error) {
	m, err := memory.NewMemory(memory.NewMemoryParams{
		UserID: in.userID, Content: in.content, Embedding: in.embedding, Entities: in.entities,
		MemoryType: in.memType, Domain: in.domain, Category: in.category,
		Importance: in.importance, Confidence: in.confidence, Status: in.status,
		Source: in.source, SourceID: in.sourceID, Metadata: in.metadata,
	})
	if err != nil {
		return Result{}, err
	}
	if err := p.memories.Save(ctx, m); err != nil {
		return Result{}, err
	}
	return Result{Memory: m, Outcome: memory.OutcomeCreated}, nil
}

func (p *Processor) maturateOrConsolidate(ctx context.Context, existing *memory.Memory, in resolveInput) (Result, error) {
	outcome := memory.OutcomeConsolidated
	if existing.IsDraft() {
		if existing.AccumulateEvidence(in.confidence) {
			if err := existing.Mature(); err != nil {
				return Result{}, err
			}
			outcome = memory.OutcomeMatured
		} else {
			existing.MergeEvidence(in.metadata)
		}
	} else {
		existing.MergeEvidence(in.metadata)
	}
	if err := p.memories.Save(ctx, existing); err != nil {
		return Result{}, err
	}
	return Result{Memory: existing, Outcome: outcome}, nil
}

// looksContradictory asks the language model whether the candidate
// contradicts (or evolves) the existing memory, restricted to same-type
// pairs per spec §4.1 step 5 ("same type, conflicting polarity"). Graceful
// degradation: with no language model available, the write falls through
// to a plain insert rather than guessing.
func (p *Processor) looksContradictory(ctx context.Context, existing *memory.Memory, in resolveInput) bool {
	if existing.Type() != in.memType || p.llmClient == nil || !p.llmClient.IsAvailable() {
		return false
	}
	prompt, opts := llm.ContradictionPrompt(existing.Content().String(), in.content.String())
	response, err := p.llmClient.Complete(ctx, prompt, opts)
	if err != nil {
		p.logger.Warn("contradiction check failed, defaulting to insert", zap.Error(err))
		return false
	}
	verdict, err := llm.ParseContradiction(response)
	if err != nil {
		p.logger.Warn("contradiction check unparsable, defaulting to insert", zap.Error(err))
		return false
	}
	return verdict.IsContradiction || verdict.IsEvolution
}

// conflictResolve implements spec §4.1 step 5's conflict-resolution
// branch: the new observation wins, the old memory is superseded, and an
// EVOLVES_INTO edge records the transition — same fixed constants
// mark_superseded uses (spec §4.3: strength=1.0, confidence=0.95, causality=true).
func (p *Processor) conflictResolve(ctx context.Context, existing *memory.Memory, in resolveInput) (Result, error) {
	newStatus := in.status
	if newStatus == "" {
		newStatus = memory.StatusActive
	}
	newMem, err := memory.NewMemory(memory.NewMemoryParams{
		UserID: in.userID, Content: in.content, Embedding: in.embedding, Entities: in.entities,
		MemoryType: in.memType, Domain: in.domain, Category: in.category,
		Importance: in.importance, Confidence: in.confidence, Status: memory.StatusActive,
		Source: in.source, SourceID: in.sourceID, Metadata: in.metadata,
	})
	if err != nil {
		return Result{}, err
	}
	if err := p.memories.Save(ctx, newMem); err != nil {
		return Result{}, err
	}

	reason := "superseded by conflicting observation"
	if err := existing.Supersede(newMem.ID(), reason); err != nil {
		return Result{}, err
	}
	if err := p.memories.Save(ctx, existing); err != nil {
		return Result{}, err
	}

	evolvesEdge, err := edge.NewEdge(edge.NewEdgeParams{
		FromMemoryID: existing.ID(), ToMemoryID: newMem.ID(), UserID: in.userID,
		EdgeType: edge.TypeEvolvesInto, Strength: 1.0, Confidence: 0.95, Causality: true, Reason: reason,
	})
	if err != nil {
		return Result{}, err
	}
	if err := p.edges.Save(ctx, evolvesEdge); err != nil {
		p.logger.Warn("non-critical error saving evolves_into edge", zap.Error(err))
	}

	return Result{Memory: newMem, Outcome: memory.OutcomeConflictResolved}, nil
}

// Package recall implements the Recall Engine: graph-enhanced memory
// retrieval layered on top of vector similarity search (spec §4.4).
// Primary search is a filtered vector probe, followed by evolution
// filtering whenever it is enabled; entity expansion and graph-related
// expansion each only run when the page falls short, mirroring the teacher's layered-fallback orchestration
// style (internal/engine/processor.Processor's step-by-step Process).
package recall

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"memory-engine/internal/domain/edge"
	"memory-engine/internal/domain/entityhub"
	"memory-engine/internal/domain/memory"
	"memory-engine/internal/domain/shared"
	"memory-engine/internal/embedding"
	"memory-engine/internal/infrastructure/observability"
)

// MaxLimit bounds how many results a single recall call may return or
// over-fetch for (spec §4.4: "limit is capped at 50").
const MaxLimit = 50

const (
	entityExpansionSimilarity  = 0.5
	relatedExpansionSimilarity = 0.4
	recentBoostWithin24h       = 0.10
	recentBoostWithin7d        = 0.05
	frequentAccessBoost        = 0.05
	frequentAccessThreshold    = 10
)

// relatedEdgeTypes are the only edge types graph-related expansion walks
// (spec §4.4 step 5): RELATED_TO, DEPENDS_ON, SUPPORTS.
var relatedEdgeTypes = map[edge.Type]bool{
	edge.TypeRelatedTo: true,
	edge.TypeDependsOn: true,
	edge.TypeSupports:  true,
}

// Options toggles the graph-enhanced recall steps (spec §4.4 contract).
type Options struct {
	RespectEvolution  bool
	ExpandEntities    bool
	IncludeRelated    bool
	ApplyRecencyBoost bool
}

// DefaultOptions matches the original engine's defaults.
func DefaultOptions() Options {
	return Options{RespectEvolution: true, ExpandEntities: true, IncludeRelated: false, ApplyRecencyBoost: true}
}

// Match is one scored recall result.
type Match struct {
	Memory     *memory.Memory
	Similarity float64
}

// Result is recall's return shape (spec §4.4: memories plus retrieval
// metadata a caller can surface to explain how results were found).
type Result struct {
	Matches           []Match
	TotalAvailable    int
	SearchTimeMS      int64
	EvolutionFiltered int
	EntityExpanded    int
}

// Engine is the Recall Engine.
type Engine struct {
	memories memory.Repository
	edges    edge.Repository
	entities entityhub.Repository
	embedder *embedding.CachedProvider
	logger   *zap.Logger
}

func New(memories memory.Repository, edges edge.Repository, entities entityhub.Repository, embedder *embedding.CachedProvider, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{memories: memories, edges: edges, entities: entities, embedder: embedder, logger: logger}
}

// Recall runs the graph-enhanced recall pipeline (spec §4.4 steps 1-8).
func (e *Engine) Recall(ctx context.Context, userID shared.UserID, query string, filter memory.ListFilter, limit, offset int, opts Options) (Result, error) {
	ctx, span := observability.CreateChildSpan(ctx, "recall.Engine.Recall", "recall")
	defer span.End()

	start := time.Now()

	if limit <= 0 {
		limit = 10
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if filter.Status == "" {
		filter.Status = memory.StatusActive
	}

	vec, err := e.embedder.Embed(ctx, userID.String(), query)
	if err != nil {
		return Result{}, err
	}

	searchLimit := limit
	if opts.RespectEvolution {
		searchLimit = limit * 2
	}
	if searchLimit > MaxLimit {
		searchLimit = MaxLimit
	}

	neighbors, err := e.memories.SearchSimilar(ctx, userID.String(), vec, searchLimit, filter)
	if err != nil {
		return Result{}, err
	}

	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		matches = append(matches, Match{Memory: n.Memory, Similarity: n.Similarity})
	}

	var evolutionFiltered int
	if opts.RespectEvolution && len(matches) > 0 {
		filtered, removed, ferr := e.filterEvolved(ctx, userID.String(), matches)
		if ferr != nil {
			e.logger.Warn("non-critical error during evolution filtering", zap.Error(ferr))
		} else {
			matches, evolutionFiltered = filtered, removed
		}
	}

	var entityExpanded int
	if opts.ExpandEntities && len(matches) > 0 && len(matches) < limit {
		additional, err := e.expandViaEntities(ctx, userID, matches, limit-len(matches))
		if err != nil {
			e.logger.Warn("non-critical error during entity expansion", zap.Error(err))
		} else {
			matches = append(matches, additional...)
			entityExpanded = len(additional)
		}
	}

	if opts.IncludeRelated && len(matches) > 0 && len(matches) < limit {
		related, err := e.expandViaGraph(ctx, userID.String(), matches, limit-len(matches))
		if err != nil {
			e.logger.Warn("non-critical error during graph expansion", zap.Error(err))
		} else {
			matches = append(matches, related...)
		}
	}

	if opts.ApplyRecencyBoost {
		matches = applyRecencyBoost(matches)
	} else {
		sortMatches(matches)
	}

	if offset > 0 {
		if offset >= len(matches) {
			matches = nil
		} else {
			matches = matches[offset:]
		}
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}

	for _, m := range matches {
		m.Memory.RecordAccess()
		if err := e.memories.Save(ctx, m.Memory); err != nil {
			e.logger.Warn("non-critical error recording memory access", zap.Error(err), zap.String("memory_id", m.Memory.ID().String()))
		}
	}

	total, err := e.memories.CountActive(ctx, userID.String())
	if err != nil {
		e.logger.Warn("non-critical error counting active memories", zap.Error(err))
	}

	return Result{
		Matches:           matches,
		TotalAvailable:    total,
		SearchTimeMS:      time.Since(start).Milliseconds(),
		EvolutionFiltered: evolutionFiltered,
		EntityExpanded:    entityExpanded,
	}, nil
}

// filterEvolved drops any memory carrying an outgoing EVOLVES_INTO edge —
// it has been superseded by a newer version (spec §4.4 step 3).
func (e *Engine) filterEvolved(ctx context.Context, userID string, matches []Match) ([]Match, int, error) {
	filtered := make([]Match, 0, len(matches))
	dropped := 0
	for _, m := range matches {
		outgoing, err := e.edges.EdgesFrom(ctx, userID, m.Memory.ID())
		if err != nil {
			return nil, 0, err
		}
		superseded := false
		for _, ed := range outgoing {
			if ed.Type() == edge.TypeEvolvesInto {
				superseded = true
				break
			}
		}
		if superseded {
			dropped++
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered, dropped, nil
}

// expandViaEntities adds active memories that share an Entity Hub with a
// seed result (spec §4.4 step 4), at a fixed synthetic similarity since
// they were never scored against the query embedding.
func (e *Engine) expandViaEntities(ctx context.Context, userID shared.UserID, seeds []Match, maxAdditional int) ([]Match, error) {
	if maxAdditional <= 0 {
		return nil, nil
	}
	seen := map[string]bool{}
	for _, m := range seeds {
		seen[m.Memory.ID().String()] = true
	}

	entityNames := map[string]bool{}
	for _, m := range seeds {
		for _, name := range m.Memory.Entities().ToSlice() {
			entityNames[strings.ToLower(name)] = true
		}
	}

	var additional []Match
	for name := range entityNames {
		if len(additional) >= maxAdditional {
			break
		}
		hub, err := e.entities.FindByName(ctx, userID.String(), name)
		if err != nil {
			continue
		}
		memoryIDs, err := e.entities.MemoriesForEntity(ctx, userID.String(), hub.ID())
		if err != nil {
			continue
		}
		for _, id := range memoryIDs {
			if len(additional) >= maxAdditional {
				break
			}
			if seen[id.String()] {
				continue
			}
			seen[id.String()] = true
			m, err := e.memories.FindByID(ctx, userID.String(), id)
			if err != nil || !m.IsActive() {
				continue
			}
			additional = append(additional, Match{Memory: m, Similarity: entityExpansionSimilarity})
		}
	}
	return additional, nil
}

// expandViaGraph adds memories one hop away from the top-3 seeds over
// RELATED_TO/DEPENDS_ON/SUPPORTS edges (spec §4.4 step 5).
func (e *Engine) expandViaGraph(ctx context.Context, userID string, seeds []Match, maxAdditional int) ([]Match, error) {
	if maxAdditional <= 0 {
		return nil, nil
	}
	seen := map[string]bool{}
	for _, m := range seeds {
		seen[m.Memory.ID().String()] = true
	}

	probe := seeds
	if len(probe) > 3 {
		probe = probe[:3]
	}

	var additional []Match
	for _, m := range probe {
		if len(additional) >= maxAdditional {
			break
		}
		edges, err := e.edges.EdgesFrom(ctx, userID, m.Memory.ID())
		if err != nil {
			return nil, err
		}
		for _, ed := range edges {
			if len(additional) >= maxAdditional {
				break
			}
			if !relatedEdgeTypes[ed.Type()] || seen[ed.To().String()] {
				continue
			}
			seen[ed.To().String()] = true
			related, err := e.memories.FindByID(ctx, userID, ed.To())
			if err != nil || !related.IsActive() {
				continue
			}
			additional = append(additional, Match{Memory: related, Similarity: relatedExpansionSimilarity})
		}
	}
	return additional, nil
}

// applyRecencyBoost re-scores every match by access recency/frequency and
// re-sorts descending (spec §4.4 step 6's exact boost formula).
func applyRecencyBoost(matches []Match) []Match {
	now := time.Now()
	boosted := make([]Match, len(matches))
	for i, m := range matches {
		boost := 0.0
		if last := m.Memory.LastAccessed(); last != nil {
			age := now.Sub(*last)
			switch {
			case age < 24*time.Hour:
				boost += recentBoostWithin24h
			case age < 7*24*time.Hour:
				boost += recentBoostWithin7d
			}
		}
		if m.Memory.AccessCount() > frequentAccessThreshold {
			boost += frequentAccessBoost
		}
		similarity := m.Similarity + boost
		if similarity > 1.0 {
			similarity = 1.0
		}
		boosted[i] = Match{Memory: m.Memory, Similarity: similarity}
	}
	sortMatches(boosted)
	return boosted
}

// sortMatches orders by similarity desc, then importance desc, then
// last_accessed desc, then id asc — the recall tie-break chain (spec §4.4).
func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Memory.Importance() != b.Memory.Importance() {
			return a.Memory.Importance() > b.Memory.Importance()
		}
		ai, bi := a.Memory.LastAccessed(), b.Memory.LastAccessed()
		switch {
		case ai != nil && bi != nil && !ai.Equal(*bi):
			return ai.After(*bi)
		case ai != nil && bi == nil:
			return true
		case ai == nil && bi != nil:
			return false
		}
		return a.Memory.ID().String() < b.Memory.ID().String()
	})
}

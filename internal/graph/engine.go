// Package graph implements the Knowledge Graph's query and traversal
// operations (spec §4.3): the edge lookups, the depth-bounded related()
// BFS, the find_path() DFS, contradiction lookup, and mark_superseded.
// edge.Repository stays a plain CRUD surface (single-hop lookups); the
// multi-hop algorithms live here so any repository implementation can
// share the same traversal semantics instead of re-deriving them in SQL.
package graph

import (
	"context"

	"go.uber.org/zap"

	"memory-engine/internal/domain/edge"
	"memory-engine/internal/domain/memory"
	"memory-engine/internal/domain/shared"
)

// MaxTraversalDepth bounds related()'s BFS frontier (spec §4.3: "capped
// at depth ≤ 5").
const MaxTraversalDepth = 5

// Engine is the Knowledge Graph query/traversal layer.
type Engine struct {
	edges    edge.Repository
	memories memory.Repository
	logger   *zap.Logger
}

func New(edges edge.Repository, memories memory.Repository, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{edges: edges, memories: memories, logger: logger}
}

func (e *Engine) EdgesFrom(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	return e.edges.EdgesFrom(ctx, userID, memoryID)
}

func (e *Engine) EdgesTo(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	return e.edges.EdgesTo(ctx, userID, memoryID)
}

func (e *Engine) AllEdgesFor(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	return e.edges.AllEdgesFor(ctx, userID, memoryID)
}

func (e *Engine) FindContradictions(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	return e.edges.FindContradictions(ctx, userID, memoryID)
}

// Related runs a breadth-first search outward from start, up to depth
// hops, returning every edge that was traversed to reach a newly
// discovered memory with strength ≥ minStrength (spec §4.3: "recursive
// traversal capped at depth ≤ 5"). Visited memories are never revisited,
// preventing cycle blow-up.
func (e *Engine) Related(ctx context.Context, userID string, start shared.MemoryID, depth int, minStrength float64) ([]*edge.Edge, error) {
	if depth <= 0 {
		return nil, nil
	}
	if depth > MaxTraversalDepth {
		depth = MaxTraversalDepth
	}

	visited := map[string]bool{start.String(): true}
	frontier := []shared.MemoryID{start}
	var collected []*edge.Edge

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []shared.MemoryID
		for _, node := range frontier {
			edges, err := e.edges.AllEdgesFor(ctx, userID, node)
			if err != nil {
				return nil, err
			}
			for _, ed := range edges {
				if ed.Strength() < minStrength {
					continue
				}
				neighbor, ok := traversalTarget(ed, node)
				if !ok || visited[neighbor.String()] {
					continue
				}
				visited[neighbor.String()] = true
				collected = append(collected, ed)
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return collected, nil
}

// FindPath runs a depth-first search for an edge chain from from to to,
// stopping at maxDepth hops, pruned by one visited set shared across all
// branches. It returns the first chain the search reaches; when several
// chains exist, that chain is not necessarily the shortest.
func (e *Engine) FindPath(ctx context.Context, userID string, from, to shared.MemoryID, maxDepth int) ([]*edge.Edge, error) {
	if maxDepth <= 0 {
		maxDepth = MaxTraversalDepth
	}
	visited := map[string]bool{from.String(): true}
	path, found, err := e.dfs(ctx, userID, from, to, maxDepth, visited)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, shared.ErrMemoryNotFound
	}
	return path, nil
}

func (e *Engine) dfs(ctx context.Context, userID string, current, target shared.MemoryID, depthLeft int, visited map[string]bool) ([]*edge.Edge, bool, error) {
	if depthLeft <= 0 {
		return nil, false, nil
	}
	edges, err := e.edges.AllEdgesFor(ctx, userID, current)
	if err != nil {
		return nil, false, err
	}
	for _, ed := range edges {
		neighbor, ok := traversalTarget(ed, current)
		if !ok || visited[neighbor.String()] {
			continue
		}
		if neighbor.Equals(target) {
			return []*edge.Edge{ed}, true, nil
		}
		visited[neighbor.String()] = true
		rest, found, err := e.dfs(ctx, userID, neighbor, target, depthLeft-1, visited)
		if err != nil {
			return nil, false, err
		}
		if found {
			return append([]*edge.Edge{ed}, rest...), true, nil
		}
	}
	return nil, false, nil
}

// traversalTarget resolves the neighbour reachable from node across ed:
// forward along its natural direction, or backward too when the edge is
// marked bidirectional (spec §4.3: "bidirectional=true is a hint for
// query expansion").
func traversalTarget(ed *edge.Edge, node shared.MemoryID) (shared.MemoryID, bool) {
	if ed.From().Equals(node) {
		return ed.To(), true
	}
	if ed.To().Equals(node) && ed.Bidirectional() {
		return ed.From(), true
	}
	return shared.MemoryID{}, false
}

// MarkSuperseded materialises the EVOLVES_INTO edge that records one
// memory replacing another, with the fixed constants observed in
// original_source/src/engine/knowledge_graph.py (spec §4.3):
// strength=1.0, confidence=0.95, causality=true.
func (e *Engine) MarkSuperseded(ctx context.Context, userID shared.UserID, oldID, newID shared.MemoryID, reason string) (*edge.Edge, error) {
	if reason == "" {
		reason = "memory superseded by newer version"
	}
	old, err := e.memories.FindByID(ctx, userID.String(), oldID)
	if err != nil {
		return nil, err
	}
	if err := old.Supersede(newID, reason); err != nil {
		return nil, err
	}
	if err := e.memories.Save(ctx, old); err != nil {
		return nil, err
	}

	evolvesEdge, err := edge.NewEdge(edge.NewEdgeParams{
		FromMemoryID: oldID, ToMemoryID: newID, UserID: userID,
		EdgeType: edge.TypeEvolvesInto, Strength: 1.0, Confidence: 0.95, Causality: true, Reason: reason,
	})
	if err != nil {
		return nil, err
	}
	if err := e.edges.Save(ctx, evolvesEdge); err != nil {
		return nil, err
	}
	return evolvesEdge, nil
}

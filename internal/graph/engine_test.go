package graph

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"memory-engine/internal/domain/edge"
	"memory-engine/internal/domain/memory"
	"memory-engine/internal/domain/shared"
)

type fakeEdgeRepo struct {
	mu    sync.Mutex
	edges []*edge.Edge
}

func (r *fakeEdgeRepo) Save(ctx context.Context, e *edge.Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = append(r.edges, e)
	return nil
}
func (r *fakeEdgeRepo) Delete(ctx context.Context, userID string, id shared.EdgeID) error { return nil }
func (r *fakeEdgeRepo) FindByID(ctx context.Context, userID string, id shared.EdgeID) (*edge.Edge, error) {
	return nil, shared.ErrMemoryNotFound
}
func (r *fakeEdgeRepo) EdgesFrom(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*edge.Edge
	for _, e := range r.edges {
		if e.From().Equals(memoryID) {
			out = append(out, e)
		}
	}
	return out, nil
}
func (r *fakeEdgeRepo) EdgesTo(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*edge.Edge
	for _, e := range r.edges {
		if e.To().Equals(memoryID) {
			out = append(out, e)
		}
	}
	return out, nil
}
func (r *fakeEdgeRepo) AllEdgesFor(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*edge.Edge
	for _, e := range r.edges {
		if e.From().Equals(memoryID) || e.To().Equals(memoryID) {
			out = append(out, e)
		}
	}
	return out, nil
}
func (r *fakeEdgeRepo) FindByEndpoints(ctx context.Context, userID string, from, to shared.MemoryID, edgeType edge.Type) (*edge.Edge, error) {
	return nil, shared.ErrMemoryNotFound
}
func (r *fakeEdgeRepo) Related(ctx context.Context, userID string, memoryID shared.MemoryID, depth int, minStrength float64) ([]*edge.Edge, error) {
	return nil, nil
}
func (r *fakeEdgeRepo) FindPath(ctx context.Context, userID string, from, to shared.MemoryID, maxDepth int) ([]*edge.Edge, error) {
	return nil, shared.ErrMemoryNotFound
}
func (r *fakeEdgeRepo) FindContradictions(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*edge.Edge
	for _, e := range r.edges {
		if e.Type() == edge.TypeContradicts && (e.From().Equals(memoryID) || e.To().Equals(memoryID)) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeMemRepo struct {
	mu   sync.Mutex
	byID map[string]*memory.Memory
}

func newFakeMemRepo() *fakeMemRepo { return &fakeMemRepo{byID: map[string]*memory.Memory{}} }

func (r *fakeMemRepo) FindByID(ctx context.Context, userID string, id shared.MemoryID) (*memory.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id.String()]
	if !ok {
		return nil, shared.ErrMemoryNotFound
	}
	return m, nil
}
func (r *fakeMemRepo) Save(ctx context.Context, m *memory.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.ID().String()] = m
	return nil
}
func (r *fakeMemRepo) Delete(ctx context.Context, userID string, id shared.MemoryID) error { return nil }
func (r *fakeMemRepo) List(ctx context.Context, userID string, filter memory.ListFilter) ([]*memory.Memory, error) {
	return nil, nil
}
func (r *fakeMemRepo) NearestNeighbors(ctx context.Context, userID string, embedding shared.EmbeddingVector, k int) ([]memory.NearestNeighbor, error) {
	return nil, nil
}
func (r *fakeMemRepo) SearchSimilar(ctx context.Context, userID string, embedding shared.EmbeddingVector, limit int, filter memory.ListFilter) ([]memory.NearestNeighbor, error) {
	return nil, nil
}
func (r *fakeMemRepo) CountActive(ctx context.Context, userID string) (int, error) { return 0, nil }

func mustMem(t *testing.T, userID shared.UserID, text string) *memory.Memory {
	t.Helper()
	content, err := shared.NewContent(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := memory.NewMemory(memory.NewMemoryParams{
		UserID: userID, Content: content, MemoryType: memory.TypeSemantic,
		Domain: "General", Importance: 5, Confidence: 0.7, Status: memory.StatusActive,
		Source: memory.SourceManual,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func mustUser(t *testing.T) shared.UserID {
	t.Helper()
	u, err := shared.NewUserID("u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return u
}

func mustEdge(t *testing.T, userID shared.UserID, from, to shared.MemoryID, strength float64) *edge.Edge {
	t.Helper()
	e, err := edge.NewEdge(edge.NewEdgeParams{
		FromMemoryID: from, ToMemoryID: to, UserID: userID,
		EdgeType: edge.TypeRelatedTo, Strength: strength, Confidence: 0.8,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e
}

func TestRelated_StopsAtDepthAndFiltersWeakEdges(t *testing.T) {
	userID := mustUser(t)
	a, b, c, d := mustMem(t, userID, "a"), mustMem(t, userID, "b"), mustMem(t, userID, "c"), mustMem(t, userID, "d")
	edges := &fakeEdgeRepo{edges: []*edge.Edge{
		mustEdge(t, userID, a.ID(), b.ID(), 0.9),
		mustEdge(t, userID, b.ID(), c.ID(), 0.9),
		mustEdge(t, userID, c.ID(), d.ID(), 0.1), // below min_strength, should be excluded
	}}
	engine := New(edges, newFakeMemRepo(), zap.NewNop())

	got, err := engine.Related(context.Background(), userID.String(), a.ID(), 2, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 edges within depth 2 above threshold, got %d", len(got))
	}
}

func TestRelated_VisitedNodesNotRevisited(t *testing.T) {
	userID := mustUser(t)
	a, b := mustMem(t, userID, "a"), mustMem(t, userID, "b")
	edges := &fakeEdgeRepo{edges: []*edge.Edge{
		mustEdge(t, userID, a.ID(), b.ID(), 0.9),
		mustEdge(t, userID, b.ID(), a.ID(), 0.9),
	}}
	engine := New(edges, newFakeMemRepo(), zap.NewNop())

	got, err := engine.Related(context.Background(), userID.String(), a.ID(), 5, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected cycle pruning to stop at 1 edge, got %d", len(got))
	}
}

func TestFindPath_ShortestChain(t *testing.T) {
	userID := mustUser(t)
	a, b, c := mustMem(t, userID, "a"), mustMem(t, userID, "b"), mustMem(t, userID, "c")
	edges := &fakeEdgeRepo{edges: []*edge.Edge{
		mustEdge(t, userID, a.ID(), b.ID(), 0.9),
		mustEdge(t, userID, b.ID(), c.ID(), 0.9),
	}}
	engine := New(edges, newFakeMemRepo(), zap.NewNop())

	path, err := engine.FindPath(context.Background(), userID.String(), a.ID(), c.ID(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(path) != 2 {
		t.Fatalf("expected a 2-edge path, got %d", len(path))
	}
}

func TestFindPath_NoPathReturnsNotFound(t *testing.T) {
	userID := mustUser(t)
	a, b := mustMem(t, userID, "a"), mustMem(t, userID, "b")
	engine := New(&fakeEdgeRepo{}, newFakeMemRepo(), zap.NewNop())

	_, err := engine.FindPath(context.Background(), userID.String(), a.ID(), b.ID(), 3)
	if !shared.IsNotFoundError(err) {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}

func TestMarkSuperseded_CreatesEvolvesIntoEdgeWithFixedConstants(t *testing.T) {
	userID := mustUser(t)
	oldMem, newMem := mustMem(t, userID, "old"), mustMem(t, userID, "new")
	memRepo := newFakeMemRepo()
	memRepo.byID[oldMem.ID().String()] = oldMem
	edges := &fakeEdgeRepo{}
	engine := New(edges, memRepo, zap.NewNop())

	got, err := engine.MarkSuperseded(context.Background(), userID, oldMem.ID(), newMem.ID(), "replaced")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type() != edge.TypeEvolvesInto {
		t.Fatalf("expected EVOLVES_INTO edge type, got %s", got.Type())
	}
	if got.Strength() != 1.0 || got.Confidence() != 0.95 || !got.Causality() {
		t.Fatalf("expected fixed constants strength=1.0 confidence=0.95 causality=true, got %v/%v/%v", got.Strength(), got.Confidence(), got.Causality())
	}
	if oldMem.Status() != memory.StatusSuperseded {
		t.Fatalf("expected old memory status to become superseded, got %s", oldMem.Status())
	}
}

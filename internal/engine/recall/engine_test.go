package recall

import (
	"context"
	"sort"
	"sync"
	"testing"

	"go.uber.org/zap"

	"memory-engine/internal/cache"
	domainedge "memory-engine/internal/domain/edge"
	domainentityhub "memory-engine/internal/domain/entityhub"
	"memory-engine/internal/domain/memory"
	"memory-engine/internal/domain/shared"
	"memory-engine/internal/embedding"
)

type fakeMemRepo struct {
	mu         sync.Mutex
	byID       map[string]*memory.Memory
	similarity map[string]float64
}

func newFakeMemRepo() *fakeMemRepo {
	return &fakeMemRepo{byID: map[string]*memory.Memory{}, similarity: map[string]float64{}}
}

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
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]memory.NearestNeighbor, 0)
	for _, m := range r.byID {
		if m.UserID().String() == userID && m.IsActive() {
			out = append(out, memory.NearestNeighbor{Memory: m, Similarity: r.similarity[m.ID().String()]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (r *fakeMemRepo) CountActive(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.byID {
		if m.UserID().String() == userID && m.IsActive() {
			n++
		}
	}
	return n, nil
}

type fakeEdgeRepo struct {
	mu    sync.Mutex
	edges []*domainedge.Edge
}

func (r *fakeEdgeRepo) Save(ctx context.Context, e *domainedge.Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = append(r.edges, e)
	return nil
}
func (r *fakeEdgeRepo) Delete(ctx context.Context, userID string, id shared.EdgeID) error { return nil }
func (r *fakeEdgeRepo) FindByID(ctx context.Context, userID string, id shared.EdgeID) (*domainedge.Edge, error) {
	return nil, shared.ErrMemoryNotFound
}
func (r *fakeEdgeRepo) EdgesFrom(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*domainedge.Edge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domainedge.Edge
	for _, e := range r.edges {
		if e.From().Equals(memoryID) {
			out = append(out, e)
		}
	}
	return out, nil
}
func (r *fakeEdgeRepo) EdgesTo(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*domainedge.Edge, error) {
	return nil, nil
}
func (r *fakeEdgeRepo) AllEdgesFor(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*domainedge.Edge, error) {
	return nil, nil
}
func (r *fakeEdgeRepo) FindByEndpoints(ctx context.Context, userID string, from, to shared.MemoryID, edgeType domainedge.Type) (*domainedge.Edge, error) {
	return nil, shared.ErrMemoryNotFound
}
func (r *fakeEdgeRepo) Related(ctx context.Context, userID string, memoryID shared.MemoryID, depth int, minStrength float64) ([]*domainedge.Edge, error) {
	return nil, nil
}
func (r *fakeEdgeRepo) FindPath(ctx context.Context, userID string, from, to shared.MemoryID, maxDepth int) ([]*domainedge.Edge, error) {
	return nil, shared.ErrMemoryNotFound
}
func (r *fakeEdgeRepo) FindContradictions(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*domainedge.Edge, error) {
	return nil, nil
}

type fakeHubRepo struct {
	mu    sync.Mutex
	hubs  map[string]*domainentityhub.EntityHub
	links []domainentityhub.MemoryEntityLink
}

func newFakeHubRepo() *fakeHubRepo {
	return &fakeHubRepo{hubs: map[string]*domainentityhub.EntityHub{}}
}
func (r *fakeHubRepo) Save(ctx context.Context, h *domainentityhub.EntityHub) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hubs[h.ID().String()] = h
	return nil
}
func (r *fakeHubRepo) FindByID(ctx context.Context, userID string, id shared.EntityID) (*domainentityhub.EntityHub, error) {
	h, ok := r.hubs[id.String()]
	if !ok {
		return nil, shared.ErrEntityNotFound
	}
	return h, nil
}
func (r *fakeHubRepo) FindByName(ctx context.Context, userID string, entityName string) (*domainentityhub.EntityHub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.hubs {
		if h.UserID().String() == userID && h.Matches(entityName) {
			return h, nil
		}
	}
	return nil, shared.ErrEntityNotFound
}
func (r *fakeHubRepo) TopByUsage(ctx context.Context, userID string, n int) ([]*domainentityhub.EntityHub, error) {
	return nil, nil
}
func (r *fakeHubRepo) Search(ctx context.Context, userID string, query string) ([]*domainentityhub.EntityHub, error) {
	return nil, nil
}
func (r *fakeHubRepo) TopEntities(ctx context.Context, userID string, hubType domainentityhub.HubType, limit int) ([]*domainentityhub.EntityHub, error) {
	return nil, nil
}
func (r *fakeHubRepo) SaveLink(ctx context.Context, link domainentityhub.MemoryEntityLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, link)
	return nil
}
func (r *fakeHubRepo) LinksForMemory(ctx context.Context, userID string, memoryID shared.MemoryID) ([]domainentityhub.MemoryEntityLink, error) {
	return nil, nil
}
func (r *fakeHubRepo) MemoriesForEntity(ctx context.Context, userID string, entityID shared.EntityID) ([]shared.MemoryID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.MemoryID
	for _, l := range r.links {
		if l.EntityID.Equals(entityID) {
			out = append(out, l.MemoryID)
		}
	}
	return out, nil
}
func (r *fakeHubRepo) DeleteLinksForMemory(ctx context.Context, userID string, memoryID shared.MemoryID) error {
	return nil
}

func mustUser(t *testing.T) shared.UserID {
	t.Helper()
	u, err := shared.NewUserID("u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return u
}

func mustMem(t *testing.T, userID shared.UserID, text string, importance int) *memory.Memory {
	t.Helper()
	content, err := shared.NewContent(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := memory.NewMemory(memory.NewMemoryParams{
		UserID: userID, Content: content, MemoryType: memory.TypeSemantic,
		Domain: "General", Importance: importance, Confidence: 0.7, Status: memory.StatusActive,
		Source: memory.SourceManual,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func newTestEngine(t *testing.T) (*Engine, *fakeMemRepo, *fakeEdgeRepo, *fakeHubRepo) {
	t.Helper()
	memRepo := newFakeMemRepo()
	edgeRepo := &fakeEdgeRepo{}
	hubRepo := newFakeHubRepo()
	embedder := embedding.NewCachedProvider(embedding.NewMockProvider(8), cache.NewTwoTierStore(nil, nil, zap.NewNop()))
	return New(memRepo, edgeRepo, hubRepo, embedder, zap.NewNop()), memRepo, edgeRepo, hubRepo
}

func TestRecall_OrdersBySimilarityThenImportance(t *testing.T) {
	engine, memRepo, _, _ := newTestEngine(t)
	userID := mustUser(t)
	ctx := context.Background()

	a := mustMem(t, userID, "alpha memory", 5)
	b := mustMem(t, userID, "beta memory", 9)
	memRepo.byID[a.ID().String()] = a
	memRepo.byID[b.ID().String()] = b
	memRepo.similarity[a.ID().String()] = 0.9
	memRepo.similarity[b.ID().String()] = 0.9

	result, err := engine.Recall(ctx, userID, "query", memory.ListFilter{}, 10, 0, Options{ApplyRecencyBoost: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(result.Matches))
	}
	if result.Matches[0].Memory.ID() != b.ID() {
		t.Fatalf("expected higher-importance memory first on a similarity tie")
	}
}

func TestRecall_FiltersEvolvedMemories(t *testing.T) {
	engine, memRepo, edgeRepo, _ := newTestEngine(t)
	userID := mustUser(t)
	ctx := context.Background()

	oldMem := mustMem(t, userID, "old fact", 5)
	newMem := mustMem(t, userID, "new fact", 5)
	memRepo.byID[oldMem.ID().String()] = oldMem
	memRepo.byID[newMem.ID().String()] = newMem
	memRepo.similarity[oldMem.ID().String()] = 0.9
	memRepo.similarity[newMem.ID().String()] = 0.8

	evolvesEdge, err := domainedge.NewEdge(domainedge.NewEdgeParams{
		FromMemoryID: oldMem.ID(), ToMemoryID: newMem.ID(), UserID: userID,
		EdgeType: domainedge.TypeEvolvesInto, Strength: 1.0, Confidence: 0.95, Causality: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	edgeRepo.edges = append(edgeRepo.edges, evolvesEdge)

	result, err := engine.Recall(ctx, userID, "query", memory.ListFilter{}, 10, 0, Options{RespectEvolution: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EvolutionFiltered != 1 {
		t.Fatalf("expected 1 evolution-filtered memory, got %d", result.EvolutionFiltered)
	}
	for _, m := range result.Matches {
		if m.Memory.ID() == oldMem.ID() {
			t.Fatalf("superseded memory should have been filtered out")
		}
	}
}

func TestRecall_RecencyBoostPromotesRecentlyAccessed(t *testing.T) {
	engine, memRepo, _, _ := newTestEngine(t)
	userID := mustUser(t)
	ctx := context.Background()

	stale := mustMem(t, userID, "stale memory", 5)
	fresh := mustMem(t, userID, "fresh memory", 5)
	fresh.RecordAccess()
	memRepo.byID[stale.ID().String()] = stale
	memRepo.byID[fresh.ID().String()] = fresh
	memRepo.similarity[stale.ID().String()] = 0.85
	memRepo.similarity[fresh.ID().String()] = 0.80

	result, err := engine.Recall(ctx, userID, "query", memory.ListFilter{}, 10, 0, Options{ApplyRecencyBoost: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Matches[0].Memory.ID() != fresh.ID() {
		t.Fatalf("expected recently accessed memory to be boosted ahead, got %s", result.Matches[0].Memory.ID())
	}
}

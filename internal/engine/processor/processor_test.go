package processor

import (
	"context"
	"sort"
	"sync"
	"testing"

	"go.uber.org/zap"

	"memory-engine/internal/cache"
	"memory-engine/internal/domain/edge"
	"memory-engine/internal/domain/memory"
	"memory-engine/internal/domain/shared"
	"memory-engine/internal/embedding"
	"memory-engine/internal/llm"
)

type fakeMemoryRepo struct {
	mu    sync.Mutex
	byID  map[string]*memory.Memory
}

func newFakeMemoryRepo() *fakeMemoryRepo { return &fakeMemoryRepo{byID: map[string]*memory.Memory{}} }

func (r *fakeMemoryRepo) FindByID(ctx context.Context, userID string, id shared.MemoryID) (*memory.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id.String()]
	if !ok {
		return nil, shared.ErrMemoryNotFound
	}
	return m, nil
}

func (r *fakeMemoryRepo) Save(ctx context.Context, m *memory.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.ID().String()] = m
	return nil
}

func (r *fakeMemoryRepo) Delete(ctx context.Context, userID string, id shared.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id.String())
	return nil
}

func (r *fakeMemoryRepo) List(ctx context.Context, userID string, filter memory.ListFilter) ([]*memory.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*memory.Memory, 0)
	for _, m := range r.byID {
		if m.UserID().String() == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

// NearestNeighbors returns every active memory of the user at similarity
// 0, oldest first, independent of the embeddings actually stored.
func (r *fakeMemoryRepo) NearestNeighbors(ctx context.Context, userID string, embedding shared.EmbeddingVector, k int) ([]memory.NearestNeighbor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]memory.NearestNeighbor, 0)
	for _, m := range r.byID {
		if m.UserID().String() == userID && m.IsActive() {
			out = append(out, memory.NearestNeighbor{Memory: m, Similarity: 0})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Memory.CreatedAt().Before(out[j].Memory.CreatedAt()) })
	return out, nil
}

func (r *fakeMemoryRepo) SearchSimilar(ctx context.Context, userID string, embedding shared.EmbeddingVector, limit int, filter memory.ListFilter) ([]memory.NearestNeighbor, error) {
	return r.NearestNeighbors(ctx, userID, embedding, limit)
}

func (r *fakeMemoryRepo) CountActive(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.byID {
		if m.UserID().String() == userID && m.IsActive() {
			count++
		}
	}
	return count, nil
}

type fakeEdgeRepo struct {
	mu    sync.Mutex
	saved []*edge.Edge
}

func (r *fakeEdgeRepo) Save(ctx context.Context, e *edge.Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, e)
	return nil
}
func (r *fakeEdgeRepo) Delete(ctx context.Context, userID string, id shared.EdgeID) error { return nil }
func (r *fakeEdgeRepo) FindByID(ctx context.Context, userID string, id shared.EdgeID) (*edge.Edge, error) {
	return nil, shared.ErrMemoryNotFound
}
func (r *fakeEdgeRepo) EdgesFrom(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	return nil, nil
}
func (r *fakeEdgeRepo) EdgesTo(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	return nil, nil
}
func (r *fakeEdgeRepo) AllEdgesFor(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	return nil, nil
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
	return nil, nil
}

type fakeEntityExtractor struct {
	linked map[string][]string
}

func (f *fakeEntityExtractor) ExtractAndLearn(ctx context.Context, userID shared.UserID, text string) ([]string, error) {
	return nil, nil
}
func (f *fakeEntityExtractor) LinkMemoryToEntities(ctx context.Context, userID shared.UserID, memoryID shared.MemoryID, entityNames []string) error {
	if f.linked == nil {
		f.linked = map[string][]string{}
	}
	f.linked[memoryID.String()] = entityNames
	return nil
}

func newTestProcessor(t *testing.T) (*Processor, *fakeMemoryRepo) {
	t.Helper()
	memRepo := newFakeMemoryRepo()
	edgeRepo := &fakeEdgeRepo{}
	embedder := embedding.NewCachedProvider(embedding.NewMockProvider(8), cache.NewTwoTierStore(nil, nil, zap.NewNop()))
	mockLLM := llm.NewMockProvider(nil)
	mockLLM.SetAvailable(false)
	p := New(memRepo, edgeRepo, &fakeEntityExtractor{}, mockLLM, embedder, zap.NewNop())
	return p, memRepo
}

func mustUserID(t *testing.T, id string) shared.UserID {
	t.Helper()
	u, err := shared.NewUserID(id)
	if err != nil {
		t.Fatalf("unexpected error creating user id: %v", err)
	}
	return u
}

func mustContent(t *testing.T, text string) shared.Content {
	t.Helper()
	c, err := shared.NewContent(text)
	if err != nil {
		t.Fatalf("unexpected error creating content: %v", err)
	}
	return c
}

func TestProcess_InsertsWhenNoNeighbours(t *testing.T) {
	p, _ := newTestProcessor(t)
	userID := mustUserID(t, "u1")
	result, err := p.Process(context.Background(), Request{
		UserID: userID, Content: mustContent(t, "I prefer dark mode everywhere"), Source: memory.SourceManual,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != memory.OutcomeCreated {
		t.Fatalf("expected created outcome, got %s", result.Outcome)
	}
	if result.Memory.Type() != memory.TypePreference {
		t.Fatalf("expected heuristic to classify as preference, got %s", result.Memory.Type())
	}
}

func TestDeriveImportance_EntityBonusThresholds(t *testing.T) {
	content := mustContent(t, "short note")
	base := deriveImportance(memory.TypeSemantic, content, nil)
	threeEntities := deriveImportance(memory.TypeSemantic, content, []string{"a", "b", "c"})
	fiveEntities := deriveImportance(memory.TypeSemantic, content, []string{"a", "b", "c", "d", "e"})
	if threeEntities <= base {
		t.Fatalf("expected >=3 entities to raise importance above base (%d), got %d", base, threeEntities)
	}
	if fiveEntities <= threeEntities {
		t.Fatalf("expected >=5 entities to raise importance above the >=3 bonus (%d), got %d", threeEntities, fiveEntities)
	}
}

func TestHeuristicMemoryType(t *testing.T) {
	cases := map[string]memory.Type{
		"I love pair programming":   memory.TypePreference,
		"Step 1: boil water":        memory.TypeProcedural,
		"Remember to call the bank": memory.TypeMeta,
		"The quarterly report is due Friday": memory.TypeSemantic,
	}
	for text, want := range cases {
		got := heuristicMemoryType(mustContent(t, text))
		if got != want {
			t.Errorf("heuristicMemoryType(%q) = %s, want %s", text, got, want)
		}
	}
}

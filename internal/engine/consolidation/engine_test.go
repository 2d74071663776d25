package consolidation

import (
	"context"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"memory-engine/internal/cache"
	domain "memory-engine/internal/domain/consolidation"
	"memory-engine/internal/domain/edge"
	"memory-engine/internal/domain/memory"
	"memory-engine/internal/domain/shared"
	"memory-engine/internal/embedding"
	"memory-engine/internal/engine/processor"
	"memory-engine/internal/llm"
)

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

func (r *fakeMemRepo) Delete(ctx context.Context, userID string, id shared.MemoryID) error {
	return nil
}

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

type fakeEdgeRepo struct {
	mu    sync.Mutex
	byKey map[string]*edge.Edge
}

func newFakeEdgeRepo() *fakeEdgeRepo { return &fakeEdgeRepo{byKey: map[string]*edge.Edge{}} }

func edgeKey(from, to shared.MemoryID, t edge.Type) string {
	return from.String() + "|" + to.String() + "|" + string(t)
}

func (r *fakeEdgeRepo) Save(ctx context.Context, e *edge.Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[edgeKey(e.From(), e.To(), e.Type())] = e
	return nil
}
func (r *fakeEdgeRepo) Delete(ctx context.Context, userID string, id shared.EdgeID) error { return nil }
func (r *fakeEdgeRepo) FindByID(ctx context.Context, userID string, id shared.EdgeID) (*edge.Edge, error) {
	return nil, shared.ErrEdgeNotFound
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
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byKey[edgeKey(from, to, edgeType)]
	if !ok {
		return nil, shared.ErrEdgeNotFound
	}
	return e, nil
}
func (r *fakeEdgeRepo) Related(ctx context.Context, userID string, memoryID shared.MemoryID, depth int, minStrength float64) ([]*edge.Edge, error) {
	return nil, nil
}
func (r *fakeEdgeRepo) FindPath(ctx context.Context, userID string, from, to shared.MemoryID, maxDepth int) ([]*edge.Edge, error) {
	return nil, shared.ErrEdgeNotFound
}
func (r *fakeEdgeRepo) FindContradictions(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	return nil, nil
}

type fakeEntityExtractor struct{}

func (f *fakeEntityExtractor) ExtractAndLearn(ctx context.Context, userID shared.UserID, text string) ([]string, error) {
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "rust"):
		return []string{"Rust"}, nil
	case strings.Contains(lowered, "go "):
		return []string{"Go"}, nil
	default:
		return []string{"Editors"}, nil
	}
}

func (f *fakeEntityExtractor) LinkMemoryToEntities(ctx context.Context, userID shared.UserID, memoryID shared.MemoryID, entityNames []string) error {
	return nil
}

type fakeHistoryRepo struct {
	mu    sync.Mutex
	saved []domain.History
}

func (r *fakeHistoryRepo) Save(ctx context.Context, h domain.History) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, h)
	return nil
}
func (r *fakeHistoryRepo) FindByID(ctx context.Context, userID, id string) (*domain.History, error) {
	return nil, shared.ErrMemoryNotFound
}
func (r *fakeHistoryRepo) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.History, error) {
	return nil, nil
}

const extractClaimsResponse = `[
  {"claim": "Prefers Rust for systems programming", "source": "transcript", "confidence": 0.9, "claim_type": "preference", "entities": ["Rust"], "importance": 6},
  {"claim": "Prefers vim as an editor", "source": "transcript", "confidence": 0.8, "claim_type": "preference", "entities": ["vim"], "importance": 5}
]`

const relationshipsResponse = `[
  {"from_entity": "Rust", "to_entity": "Editors", "relationship_type": "related_to", "confidence": 0.7}
]`

const patternsResponse = `["Prefers statically typed languages", "Values minimal editor setups"]`

const classifyResponse = `{"memory_type": "preference", "domain": "Personal", "category": "General", "entities": ["misc"]}`

func newTestEngine(t *testing.T, llmResponses map[string]string) (*Engine, *fakeMemRepo, *fakeEdgeRepo, *fakeHistoryRepo) {
	t.Helper()
	memRepo := newFakeMemRepo()
	edgeRepo := newFakeEdgeRepo()
	historyRepo := &fakeHistoryRepo{}
	embedder := embedding.NewCachedProvider(embedding.NewMockProvider(8), cache.NewTwoTierStore(nil, nil, zap.NewNop()))
	mockLLM := llm.NewMockProvider(llmResponses)
	proc := processor.New(memRepo, edgeRepo, &fakeEntityExtractor{}, mockLLM, embedder, zap.NewNop())
	e := New(edgeRepo, &fakeEntityExtractor{}, proc, mockLLM, embedder, historyRepo, zap.NewNop())
	return e, memRepo, edgeRepo, historyRepo
}

func mustUser(t *testing.T) shared.UserID {
	t.Helper()
	u, err := shared.NewUserID("user123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return u
}

func TestConsolidate_RejectsTooShortTranscript(t *testing.T) {
	e, _, _, _ := newTestEngine(t, nil)
	_, err := e.Consolidate(context.Background(), mustUser(t), "hi", "")
	if err != ErrTranscriptTooShort {
		t.Fatalf("expected ErrTranscriptTooShort, got %v", err)
	}
}

func TestConsolidate_RejectsTooLongTranscript(t *testing.T) {
	e, _, _, _ := newTestEngine(t, nil)
	huge := strings.Repeat("a", maxTranscriptLength+1)
	_, err := e.Consolidate(context.Background(), mustUser(t), huge, "")
	if err != ErrTranscriptTooLong {
		t.Fatalf("expected ErrTranscriptTooLong, got %v", err)
	}
}

func TestConsolidate_ExtractsClaimsAndPersistsMemories(t *testing.T) {
	e, memRepo, edgeRepo, historyRepo := newTestEngine(t, map[string]string{
		"extract factual claims":              extractClaimsResponse,
		"infer relationships between entities": relationshipsResponse,
		"identify 3-5 patterns":                patternsResponse,
		"classify the following note":          classifyResponse,
	})

	result, err := e.Consolidate(context.Background(), mustUser(t), "We talked at length about programming language preferences today.", "conv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ClaimsExtracted != 2 {
		t.Fatalf("expected 2 claims extracted, got %d", result.ClaimsExtracted)
	}
	if result.NewMemoriesCount != 2 {
		t.Fatalf("expected 2 memories created, got %d", result.NewMemoriesCount)
	}
	if len(result.NewMemoryIDs) != 2 {
		t.Fatalf("expected 2 memory ids, got %d", len(result.NewMemoryIDs))
	}
	if result.Status != domain.StatusCompleted {
		t.Fatalf("expected completed status, got %s", result.Status)
	}
	memRepo.mu.Lock()
	stored := len(memRepo.byID)
	memRepo.mu.Unlock()
	if stored != 2 {
		t.Fatalf("expected 2 memories stored, got %d", stored)
	}

	historyRepo.mu.Lock()
	historyCount := len(historyRepo.saved)
	historyRepo.mu.Unlock()
	if historyCount != 1 {
		t.Fatalf("expected 1 history row saved, got %d", historyCount)
	}

	_ = edgeRepo
}

func TestConsolidate_NoClaimsExtractedReturnsEmptyCompletedResult(t *testing.T) {
	e, _, _, _ := newTestEngine(t, map[string]string{
		"extract factual claims": "[]",
	})
	result, err := e.Consolidate(context.Background(), mustUser(t), "This transcript yields nothing extractable at all.", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.StatusCompleted {
		t.Fatalf("expected completed status for empty extraction, got %s", result.Status)
	}
	if result.NewMemoriesCount != 0 {
		t.Fatalf("expected no memories created, got %d", result.NewMemoriesCount)
	}
}

func TestGroupDuplicates_TransitiveClosure(t *testing.T) {
	claims := []domain.Claim{
		{Text: "a", Confidence: 0.5},
		{Text: "b", Confidence: 0.5},
		{Text: "c", Confidence: 0.5},
	}
	embeddings := []shared.EmbeddingVector{
		shared.NewEmbeddingVector([]float32{1, 0, 0}),
		shared.NewEmbeddingVector([]float32{1, 0, 0}),
		shared.NewEmbeddingVector([]float32{0.99, 0.01, 0}),
	}
	groups := groupDuplicates(claims, embeddings, 0.9)
	if len(groups) != 1 {
		t.Fatalf("expected a single transitive group, got %d", len(groups))
	}
	if len(groups[0].Claims) != 3 {
		t.Fatalf("expected all 3 claims grouped, got %d", len(groups[0].Claims))
	}
	if groups[0].Canonical.Text != "a" {
		t.Fatalf("expected first-by-order claim as canonical, got %q", groups[0].Canonical.Text)
	}
	if groups[0].Canonical.Confidence <= 0.5 {
		t.Fatalf("expected canonical confidence boosted above base, got %v", groups[0].Canonical.Confidence)
	}
}

func TestFindConflicts_OnlyPreferencePairsInBand(t *testing.T) {
	claims := []domain.Claim{
		{Text: "likes tabs", ClaimType: "preference"},
		{Text: "likes spaces", ClaimType: "preference"},
		{Text: "fact about weather", ClaimType: "fact"},
	}
	embeddings := []shared.EmbeddingVector{
		shared.NewEmbeddingVector([]float32{1, 0}),
		shared.NewEmbeddingVector([]float32{0.7, 0.7}),
		shared.NewEmbeddingVector([]float32{0.7, 0.7}),
	}
	conflicts := findConflicts(claims, embeddings, memory.ConflictSimilarityLow, memory.ConflictSimilarityHigh)
	if len(conflicts) != 1 {
		t.Fatalf("expected exactly 1 conflict (preference pair only), got %d", len(conflicts))
	}
	if conflicts[0].ClaimA.Text != "likes tabs" || conflicts[0].ClaimB.Text != "likes spaces" {
		t.Fatalf("unexpected conflict pair: %+v", conflicts[0])
	}
}

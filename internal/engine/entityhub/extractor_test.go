package entityhub

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	domain "memory-engine/internal/domain/entityhub"
	"memory-engine/internal/domain/shared"
	"memory-engine/internal/llm"
)

type fakeHubRepo struct {
	mu    sync.Mutex
	hubs  map[string]*domain.EntityHub
	links []domain.MemoryEntityLink
}

func newFakeHubRepo() *fakeHubRepo { return &fakeHubRepo{hubs: map[string]*domain.EntityHub{}} }

func (r *fakeHubRepo) Save(ctx context.Context, h *domain.EntityHub) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hubs[h.ID().String()] = h
	return nil
}

func (r *fakeHubRepo) FindByID(ctx context.Context, userID string, id shared.EntityID) (*domain.EntityHub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hubs[id.String()]
	if !ok {
		return nil, shared.ErrEntityNotFound
	}
	return h, nil
}

func (r *fakeHubRepo) FindByName(ctx context.Context, userID string, entityName string) (*domain.EntityHub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.hubs {
		if h.UserID().String() == userID && h.Matches(entityName) {
			return h, nil
		}
	}
	return nil, shared.ErrEntityNotFound
}

func (r *fakeHubRepo) TopByUsage(ctx context.Context, userID string, n int) ([]*domain.EntityHub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.EntityHub, 0)
	for _, h := range r.hubs {
		if h.UserID().String() == userID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UsageCount() > out[j].UsageCount() })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *fakeHubRepo) Search(ctx context.Context, userID string, query string) ([]*domain.EntityHub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.EntityHub, 0)
	for _, h := range r.hubs {
		if h.UserID().String() == userID && strings.Contains(h.EntityName(), strings.ToLower(query)) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *fakeHubRepo) TopEntities(ctx context.Context, userID string, hubType domain.HubType, limit int) ([]*domain.EntityHub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.EntityHub, 0)
	for _, h := range r.hubs {
		if h.UserID().String() != userID {
			continue
		}
		if hubType != "" && h.HubType() != hubType {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UsageCount() > out[j].UsageCount() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeHubRepo) SaveLink(ctx context.Context, link domain.MemoryEntityLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.links {
		if existing.MemoryID.Equals(link.MemoryID) && existing.EntityID.Equals(link.EntityID) {
			r.links[i] = existing.Merge(link)
			return nil
		}
	}
	r.links = append(r.links, link)
	return nil
}

func (r *fakeHubRepo) LinksForMemory(ctx context.Context, userID string, memoryID shared.MemoryID) ([]domain.MemoryEntityLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.MemoryEntityLink, 0)
	for _, l := range r.links {
		if l.MemoryID.Equals(memoryID) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeHubRepo) MemoriesForEntity(ctx context.Context, userID string, entityID shared.EntityID) ([]shared.MemoryID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.MemoryID, 0)
	for _, l := range r.links {
		if l.EntityID.Equals(entityID) {
			out = append(out, l.MemoryID)
		}
	}
	return out, nil
}

func (r *fakeHubRepo) DeleteLinksForMemory(ctx context.Context, userID string, memoryID shared.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.links[:0]
	for _, l := range r.links {
		if !l.MemoryID.Equals(memoryID) {
			out = append(out, l)
		}
	}
	r.links = out
	return nil
}

func newTestEngine() (*Engine, *fakeHubRepo) {
	repo := newFakeHubRepo()
	mockLLM := llm.NewMockProvider(nil)
	mockLLM.SetAvailable(false)
	return New(repo, mockLLM, zap.NewNop()), repo
}

func mustTestUserID(t *testing.T, id string) shared.UserID {
	t.Helper()
	u, err := shared.NewUserID(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return u
}

func TestExtractAndLearn_FindsDictionaryAndPatternEntities(t *testing.T) {
	engine, _ := newTestEngine()
	userID := mustTestUserID(t, "u1")
	names, err := engine.ExtractAndLearn(context.Background(), userID, "Deployed MemoryEngine using Docker and FastAPI.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := map[string]bool{}
	for _, n := range names {
		found[strings.ToLower(n)] = true
	}
	if !found["docker"] || !found["fastapi"] {
		t.Fatalf("expected docker and fastapi among extracted entities, got %v", names)
	}
}

func TestGetOrCreate_ReusesExistingHubByName(t *testing.T) {
	engine, repo := newTestEngine()
	userID := mustTestUserID(t, "u1")
	ctx := context.Background()

	first, err := engine.GetOrCreate(ctx, userID, "Docker", domain.HubTypeTech, domain.SourceLLM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := engine.GetOrCreate(ctx, userID, "docker", domain.HubTypeTech, domain.SourceLLM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.ID().Equals(second.ID()) {
		t.Fatalf("expected the same hub to be reused, got distinct ids")
	}
	if second.UsageCount() != 2 {
		t.Fatalf("expected usage_count to increment to 2, got %d", second.UsageCount())
	}
	if len(repo.hubs) != 1 {
		t.Fatalf("expected exactly one stored hub, got %d", len(repo.hubs))
	}
}

func TestLinkMemoryToEntities_UpsertsAndBumpsMemoryCount(t *testing.T) {
	engine, repo := newTestEngine()
	userID := mustTestUserID(t, "u1")
	memoryID := shared.NewMemoryID()
	ctx := context.Background()

	if err := engine.LinkMemoryToEntities(ctx, userID, memoryID, []string{"Docker", "Docker", "Kubernetes"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	links, err := repo.LinksForMemory(ctx, userID.String(), memoryID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 distinct entity links, got %d", len(links))
	}

	hubs, err := engine.TopEntities(ctx, userID, "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, h := range hubs {
		if h.EntityName() == "docker" && h.MemoryCount() != 1 {
			t.Errorf("expected docker hub memory_count=1, got %d", h.MemoryCount())
		}
	}
}

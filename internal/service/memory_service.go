// Package service is the application layer: it composes the engines
// (Memory Processor, Recall, Consolidation, Knowledge Graph, Entity Hub)
// into the eight tool operations spec §6 exposes at the boundary, the
// same role the teacher's internal/service/memory.Service plays between
// its domain layer and interfaces/http handlers.
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"memory-engine/internal/domain/consolidation"
	"memory-engine/internal/domain/edge"
	"memory-engine/internal/domain/entityhub"
	"memory-engine/internal/domain/memory"
	"memory-engine/internal/domain/shared"
	entityhubengine "memory-engine/internal/engine/entityhub"
	consolidationengine "memory-engine/internal/engine/consolidation"
	"memory-engine/internal/engine/processor"
	recallengine "memory-engine/internal/engine/recall"
	graphengine "memory-engine/internal/graph"
	apperrors "memory-engine/pkg/errors"
)

// MemoryService is the thin application-layer facade over the engines,
// exposing one method per tool operation (spec §6's eight-operation
// tool surface).
type MemoryService struct {
	processor     *processor.Processor
	recall        *recallengine.Engine
	consolidation *consolidationengine.Engine
	graph         *graphengine.Engine
	entities      *entityhubengine.Engine
	memories      memory.Repository
	edges         edge.Repository
	entityRepo    entityhub.Repository
	logger        *zap.Logger
}

func New(
	proc *processor.Processor,
	recall *recallengine.Engine,
	consolidation *consolidationengine.Engine,
	graph *graphengine.Engine,
	entities *entityhubengine.Engine,
	memories memory.Repository,
	edges edge.Repository,
	entityRepo entityhub.Repository,
	logger *zap.Logger,
) *MemoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryService{
		processor: proc, recall: recall, consolidation: consolidation, graph: graph, entities: entities,
		memories: memories, edges: edges, entityRepo: entityRepo, logger: logger,
	}
}

// RememberRequest is the `remember` tool's input (spec §6).
type RememberRequest struct {
	Content    string
	MemoryType memory.Type
	Domain     string
	Category   string
	Entities   []string
	Importance int
	Source     memory.Source
	SourceID   string
	Metadata   map[string]string
}

// RememberResult is the `remember` tool's output shape.
type RememberResult struct {
	MemoryID          string
	Status            memory.Outcome
	EmbeddingStatus   string
	EntitiesExtracted []string
	CreatedAt         time.Time
}

func (s *MemoryService) Remember(ctx context.Context, userID shared.UserID, req RememberRequest) (RememberResult, error) {
	content, err := shared.NewContent(req.Content)
	if err != nil {
		return RememberResult{}, err
	}
	source := req.Source
	if source == "" {
		source = memory.SourceManual
	}

	result, err := s.processor.Process(ctx, processor.Request{
		UserID:     userID,
		Content:    content,
		Type:       req.MemoryType,
		Domain:     req.Domain,
		Category:   req.Category,
		Entities:   req.Entities,
		Importance: req.Importance,
		Source:     source,
		SourceID:   req.SourceID,
		Metadata:   req.Metadata,
	})
	if err != nil {
		return RememberResult{}, err
	}

	return RememberResult{
		MemoryID:          result.Memory.ID().String(),
		Status:            result.Outcome,
		EmbeddingStatus:   "embedded",
		EntitiesExtracted: result.Memory.Entities().ToSlice(),
		CreatedAt:         result.Memory.CreatedAt(),
	}, nil
}

// RecallResult is the `recall` tool's output shape.
type RecallResult struct {
	Query          string
	Count          int
	TotalAvailable int
	Matches        []recallengine.Match
	SearchTimeMS   int64
}

func (s *MemoryService) Recall(ctx context.Context, userID shared.UserID, query string, filter memory.ListFilter, limit, offset int, opts recallengine.Options) (RecallResult, error) {
	result, err := s.recall.Recall(ctx, userID, query, filter, limit, offset, opts)
	if err != nil {
		return RecallResult{}, err
	}
	return RecallResult{
		Query:          query,
		Count:          len(result.Matches),
		TotalAvailable: result.TotalAvailable,
		Matches:        result.Matches,
		SearchTimeMS:   result.SearchTimeMS,
	}, nil
}

// ConsolidateSession runs the `consolidate_session` tool operation.
func (s *MemoryService) ConsolidateSession(ctx context.Context, userID shared.UserID, transcript, conversationID string) (consolidation.Result, error) {
	return s.consolidation.Consolidate(ctx, userID, transcript, conversationID)
}

// RefineKnowledge implements the `refine_knowledge` tool: supersede an
// existing memory with freshly classified/embedded content, preserving
// the audit trail spec §3's supersession rule requires (old row kept,
// marked superseded_by the new id).
func (s *MemoryService) RefineKnowledge(ctx context.Context, userID shared.UserID, memoryID shared.MemoryID, newContent string) (oldID, newID string, err error) {
	old, err := s.memories.FindByID(ctx, userID.String(), memoryID)
	if err != nil {
		return "", "", err
	}
	if !old.UserID().Equals(userID) {
		return "", "", shared.ErrMemoryNotFound
	}

	content, err := shared.NewContent(newContent)
	if err != nil {
		return "", "", err
	}

	result, err := s.processor.Process(ctx, processor.Request{
		UserID:   userID,
		Content:  content,
		Type:     old.Type(),
		Domain:   old.Domain(),
		Category: old.Category(),
		Source:   memory.SourceManual,
		Metadata: old.Metadata(),
	})
	if err != nil {
		return "", "", err
	}

	if err := old.Supersede(result.Memory.ID(), "refine_knowledge"); err != nil {
		return "", "", err
	}
	if err := s.memories.Save(ctx, old); err != nil {
		return "", "", err
	}
	return old.ID().String(), result.Memory.ID().String(), nil
}

// UpdateMemory implements the `update_memory` tool: a direct lifecycle
// status transition (spec §3's Status taxonomy), distinct from the
// business-rule-driven transitions (Deduplicate/Mature/Supersede) the
// write path applies automatically.
func (s *MemoryService) UpdateMemory(ctx context.Context, userID shared.UserID, memoryID shared.MemoryID, newStatus memory.Status) (string, memory.Status, error) {
	if !newStatus.Valid() {
		return "", "", shared.ErrInvalidStatus
	}
	m, err := s.memories.FindByID(ctx, userID.String(), memoryID)
	if err != nil {
		return "", "", err
	}
	if !m.UserID().Equals(userID) {
		return "", "", shared.ErrMemoryNotFound
	}
	if newStatus == memory.StatusDeleted {
		if err := m.SoftDelete(); err != nil {
			return "", "", err
		}
	} else if err := m.SetStatus(newStatus); err != nil {
		return "", "", err
	}
	if err := s.memories.Save(ctx, m); err != nil {
		return "", "", err
	}
	return m.ID().String(), m.Status(), nil
}

// EvolutionTimelineEntry is one point in an entity's memory history.
type EvolutionTimelineEntry struct {
	MemoryID  string
	Content   string
	Type      memory.Type
	Status    memory.Status
	CreatedAt time.Time
}

// AnalyzeEvolutionResult is the `analyze_evolution` tool's output shape.
type AnalyzeEvolutionResult struct {
	EntityName        string
	EvolutionTimeline []EvolutionTimelineEntry
	Patterns          []string
	Insights          []string
	RelatedEntities   []string
	TotalMemories     int
	TotalEdges        int
}

// AnalyzeEvolution implements the `analyze_evolution` tool: builds a
// chronological timeline of every memory mentioning an entity, plus the
// contradiction/relationship edges among them (spec §4.3/§4.5 composed
// at the application layer — no single engine owns this cross-cutting
// view).
func (s *MemoryService) AnalyzeEvolution(ctx context.Context, userID shared.UserID, entityIDOrName string) (AnalyzeEvolutionResult, error) {
	hub, err := s.resolveEntity(ctx, userID, entityIDOrName)
	if err != nil {
		return AnalyzeEvolutionResult{}, err
	}

	memoryIDs, err := s.entityRepo.MemoriesForEntity(ctx, userID.String(), hub.ID())
	if err != nil {
		return AnalyzeEvolutionResult{}, apperrors.UpstreamStorage("load memories for entity", err)
	}

	timeline := make([]EvolutionTimelineEntry, 0, len(memoryIDs))
	relatedSet := map[string]bool{}
	var edgeCount int
	for _, id := range memoryIDs {
		m, err := s.memories.FindByID(ctx, userID.String(), id)
		if err != nil {
			if shared.IsNotFoundError(err) {
				continue
			}
			return AnalyzeEvolutionResult{}, err
		}
		timeline = append(timeline, EvolutionTimelineEntry{
			MemoryID: m.ID().String(), Content: m.Content().String(), Type: m.Type(),
			Status: m.Status(), CreatedAt: m.CreatedAt(),
		})
		for _, name := range m.Entities().ToSlice() {
			if name != hub.EntityName() {
				relatedSet[name] = true
			}
		}
		edges, err := s.edges.AllEdgesFor(ctx, userID.String(), id)
		if err != nil {
			return AnalyzeEvolutionResult{}, err
		}
		edgeCount += len(edges)
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].CreatedAt.Before(timeline[j].CreatedAt) })

	related := make([]string, 0, len(relatedSet))
	for name := range relatedSet {
		related = append(related, name)
	}
	sort.Strings(related)

	return AnalyzeEvolutionResult{
		EntityName:        hub.DisplayName(),
		EvolutionTimeline: timeline,
		Patterns:          detectEvolutionPatterns(timeline),
		Insights:          detectEvolutionInsights(timeline, hub),
		RelatedEntities:   related,
		TotalMemories:     len(timeline),
		TotalEdges:        edgeCount,
	}, nil
}

func (s *MemoryService) resolveEntity(ctx context.Context, userID shared.UserID, entityIDOrName string) (*entityhub.EntityHub, error) {
	if id, err := shared.ParseEntityID(entityIDOrName); err == nil {
		if h, err := s.entityRepo.FindByID(ctx, userID.String(), id); err == nil {
			return h, nil
		}
	}
	return s.entityRepo.FindByName(ctx, userID.String(), entityIDOrName)
}

// detectEvolutionPatterns looks for coarse shifts in a timeline: a status
// change (e.g. active -> superseded) or a long gap followed by renewed
// activity. Heuristic, not a model call — analyze_evolution's contract
// (spec §6) only promises "patterns found", not a specific algorithm.
func detectEvolutionPatterns(timeline []EvolutionTimelineEntry) []string {
	var patterns []string
	if len(timeline) == 0 {
		return patterns
	}
	if len(timeline) >= 3 {
		patterns = append(patterns, fmt.Sprintf("tracked across %d mentions", len(timeline)))
	}
	for i := 1; i < len(timeline); i++ {
		if timeline[i].Status != timeline[i-1].Status {
			patterns = append(patterns, fmt.Sprintf("status changed from %s to %s", timeline[i-1].Status, timeline[i].Status))
		}
	}
	return patterns
}

func detectEvolutionInsights(timeline []EvolutionTimelineEntry, hub *entityhub.EntityHub) []string {
	var insights []string
	if hub.UsageCount() > 10 {
		insights = append(insights, fmt.Sprintf("%s is a frequently referenced entity (%d uses)", hub.DisplayName(), hub.UsageCount()))
	}
	if len(timeline) > 0 {
		span := timeline[len(timeline)-1].CreatedAt.Sub(timeline[0].CreatedAt)
		if span > 30*24*time.Hour {
			insights = append(insights, fmt.Sprintf("discussed over a span of %d days", int(span.Hours()/24)))
		}
	}
	return insights
}

// ExportFormat is the `export_memories` tool's requested output encoding.
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatCSV  ExportFormat = "csv"
)

// ExportResult is the `export_memories` tool's output shape.
type ExportResult struct {
	Format        ExportFormat
	Count         int
	Data          []byte
	ExportDate    time.Time
	FileSizeBytes int
}

// ExportMemories implements the `export_memories` tool, dumping every
// non-deleted memory for a user.
func (s *MemoryService) ExportMemories(ctx context.Context, userID shared.UserID, format ExportFormat) (ExportResult, error) {
	memories, err := s.memories.List(ctx, userID.String(), memory.ListFilter{Limit: 10_000})
	if err != nil {
		return ExportResult{}, err
	}

	var data []byte
	switch format {
	case ExportFormatCSV:
		data, err = encodeMemoriesCSV(memories)
	default:
		format = ExportFormatJSON
		data, err = encodeMemoriesJSON(memories)
	}
	if err != nil {
		return ExportResult{}, apperrors.Internal("encode export", err)
	}

	return ExportResult{
		Format: format, Count: len(memories), Data: data,
		ExportDate: time.Now(), FileSizeBytes: len(data),
	}, nil
}

// DeleteMemoryResult is the `delete_memory` tool's output shape.
type DeleteMemoryResult struct {
	MemoryID            string
	Deleted             bool
	DeletedAt           time.Time
	DeletionType        string
	RelatedEdgesRemoved int
}

// DeleteMemory implements the `delete_memory` tool: soft-deletes the
// memory by default, removes every edge touching it, and drops its
// entity links (spec §3's ownership/lifecycle rule — entity hubs
// persist with a decremented memory_count rather than being deleted
// themselves). Hard deletion (physical row removal) only runs when the
// caller explicitly asks for it via hard=true (spec §4.1: "deletion is
// soft by default, with a hard-delete pathway ... exposed only when
// explicitly requested").
func (s *MemoryService) DeleteMemory(ctx context.Context, userID shared.UserID, memoryID shared.MemoryID, hard bool) (DeleteMemoryResult, error) {
	m, err := s.memories.FindByID(ctx, userID.String(), memoryID)
	if err != nil {
		return DeleteMemoryResult{}, err
	}
	if !m.UserID().Equals(userID) {
		return DeleteMemoryResult{}, shared.ErrMemoryNotFound
	}

	deletionType := "soft"
	if hard {
		if err := s.memories.Delete(ctx, userID.String(), memoryID); err != nil {
			return DeleteMemoryResult{}, err
		}
		deletionType = "hard"
	} else {
		if err := m.SoftDelete(); err != nil {
			return DeleteMemoryResult{}, err
		}
		if err := s.memories.Save(ctx, m); err != nil {
			return DeleteMemoryResult{}, err
		}
	}

	edges, err := s.edges.AllEdgesFor(ctx, userID.String(), memoryID)
	if err != nil {
		return DeleteMemoryResult{}, err
	}
	for _, e := range edges {
		if err := s.edges.Delete(ctx, userID.String(), e.ID()); err != nil {
			s.logger.Warn("failed to remove edge during memory deletion", zap.Error(err), zap.String("edge_id", e.ID().String()))
		}
	}

	links, err := s.entityRepo.LinksForMemory(ctx, userID.String(), memoryID)
	if err != nil {
		s.logger.Warn("failed to load entity links during memory deletion", zap.Error(err))
	}
	if err := s.entityRepo.DeleteLinksForMemory(ctx, userID.String(), memoryID); err != nil {
		s.logger.Warn("failed to remove entity links during memory deletion", zap.Error(err))
	}
	for _, link := range links {
		hub, err := s.entityRepo.FindByID(ctx, userID.String(), link.EntityID)
		if err != nil {
			continue
		}
		hub.UnlinkedMemory()
		if err := s.entityRepo.Save(ctx, hub); err != nil {
			s.logger.Warn("failed to update entity hub after memory deletion", zap.Error(err))
		}
	}

	return DeleteMemoryResult{
		MemoryID: m.ID().String(), Deleted: true, DeletedAt: time.Now(),
		DeletionType: deletionType, RelatedEdgesRemoved: len(edges),
	}, nil
}

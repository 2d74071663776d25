package entityhub

import (
	"context"
	"strings"

	"go.uber.org/zap"

	domain "memory-engine/internal/domain/entityhub"
	"memory-engine/internal/domain/shared"
	"memory-engine/internal/llm"
)

// maxNameLength guards against runaway LLM output becoming an entity name
// (no such bound exists in original_source; this mirrors Content's own
// length defence at a much smaller scale appropriate to a short label).
const maxNameLength = 120

// Engine implements the Entity Hub subsystem (spec §4.5): the
// dictionary/heuristic/LLM extraction pipeline, get_or_create, linking,
// search, and top_entities, wired into the Memory Processor write path
// through processor.EntityExtractor.
type Engine struct {
	repo      domain.Repository
	llmClient llm.Provider
	logger    *zap.Logger
}

// New constructs an Engine. llmClient may be nil or unavailable: the
// extraction pipeline degrades to its dictionary and heuristic passes.
func New(repo domain.Repository, llmClient llm.Provider, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{repo: repo, llmClient: llmClient, logger: logger}
}

// ExtractAndLearn runs the three-tier extraction pipeline (spec §4.5 step
// 1-3) against text and get_or_creates an Entity Hub for every distinct
// name found, returning the final entity name list for linking.
//
//  1. Per-user learned dictionary (top-500 hubs by usage), a fresh
//     Aho-Corasick pass since that dictionary changes over time.
//  2. Fixed global technology dictionary plus the regex pattern family
//     (CamelCase, kebab-case, npm-scoped, version-qualified, file
//     extensions) — both built once at package init.
//  3. A language-model pass over whatever text neither earlier pass
//     claimed, guarded by residual-text masking so the model isn't asked
//     to re-find what a cheaper pass already caught.
func (e *Engine) ExtractAndLearn(ctx context.Context, userID shared.UserID, text string) ([]string, error) {
	userDict, err := buildUserAutomaton(ctx, e.repo, userID.String())
	if err != nil {
		e.logger.Warn("non-critical error loading learned entity dictionary", zap.Error(err))
	}
	userHubs, userSpans := userDict.extract(text)

	dictNames := extractFromTechDictionary(text)
	patternNames := extractFromPatterns(text)

	spans := append(globalKnownSpans(text), userSpans...)
	residual := blankSpans(text, spans)

	llmNames := e.extractFromResidual(ctx, residual)

	names := normalise(append(append(dictNames, patternNames...), llmNames...))

	results := make([]string, 0, len(userHubs)+len(names))
	for _, h := range userHubs {
		h.Reuse()
		if err := e.repo.Save(ctx, h); err != nil {
			e.logger.Warn("non-critical error saving reused entity hub", zap.Error(err), zap.String("entity_name", h.EntityName()))
		}
		results = append(results, h.DisplayName())
	}

	for _, name := range names {
		if containsFold(results, name) {
			continue
		}
		hub, err := e.GetOrCreate(ctx, userID, name, inferHubType(name), domain.SourceLLM)
		if err != nil {
			e.logger.Warn("non-critical error learning entity", zap.Error(err), zap.String("entity_name", name))
			continue
		}
		results = append(results, hub.DisplayName())
	}

	return results, nil
}

// extractFromResidual runs the language-model extraction pass over text
// not already claimed by the dictionary or heuristic passes (spec §4.5
// step 3). Returns nil — never an error — on any failure or unavailability,
// since this pass is strictly additive over the cheaper two.
func (e *Engine) extractFromResidual(ctx context.Context, residual string) []string {
	if e.llmClient == nil || !e.llmClient.IsAvailable() || strings.TrimSpace(residual) == "" {
		return nil
	}
	prompt, opts := llm.EntityExtractionPrompt(residual)
	response, err := e.llmClient.Complete(ctx, prompt, opts)
	if err != nil {
		e.logger.Warn("entity extraction language model call failed", zap.Error(err))
		return nil
	}
	extracted, err := llm.ParseEntities(response)
	if err != nil {
		e.logger.Warn("entity extraction response unparsable", zap.Error(err))
		return nil
	}
	names := make([]string, 0, len(extracted))
	for _, ent := range extracted {
		if name := strings.TrimSpace(ent.Name); name != "" && len(name) <= maxNameLength {
			names = append(names, name)
		}
	}
	return names
}

// GetOrCreate finds the existing hub matching name (spec §4.5 step 5:
// race-safe on FindByName) or learns a new one. An existing hub is reused
// (usage_count bumped) rather than duplicated.
func (e *Engine) GetOrCreate(ctx context.Context, userID shared.UserID, name string, hubType domain.HubType, source domain.Source) (*domain.EntityHub, error) {
	existing, err := e.repo.FindByName(ctx, userID.String(), name)
	if err == nil && existing != nil {
		existing.Reuse()
		if err := e.repo.Save(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if err != nil && !shared.IsNotFoundError(err) {
		return nil, err
	}

	hub, err := domain.NewEntityHub(domain.NewEntityHubParams{
		UserID:      userID,
		EntityName:  name,
		DisplayName: name,
		HubType:     hubType,
		Source:      source,
	})
	if err != nil {
		return nil, err
	}
	if err := e.repo.Save(ctx, hub); err != nil {
		return nil, err
	}
	return hub, nil
}

// LinkMemoryToEntities get_or_creates a hub per name then upserts a
// memory-entity link for each, bumping the hub's memory_count (spec §4.5's
// link_memory_to_entities).
func (e *Engine) LinkMemoryToEntities(ctx context.Context, userID shared.UserID, memoryID shared.MemoryID, entityNames []string) error {
	_ = e.repo.DeleteLinksForMemory(ctx, userID.String(), memoryID)

	linked := map[string]bool{}
	for _, name := range entityNames {
		hub, err := e.GetOrCreate(ctx, userID, name, inferHubType(name), domain.SourceLLM)
		if err != nil {
			e.logger.Warn("non-critical error linking entity", zap.Error(err), zap.String("entity_name", name))
			continue
		}
		link := domain.NewMemoryEntityLink(memoryID, hub.ID(), userID, 1.0, false, "")
		if err := e.repo.SaveLink(ctx, link); err != nil {
			e.logger.Warn("non-critical error saving memory-entity link", zap.Error(err), zap.String("entity_name", name))
			continue
		}
		if linked[hub.ID().String()] {
			continue
		}
		linked[hub.ID().String()] = true
		hub.LinkedMemory()
		if err := e.repo.Save(ctx, hub); err != nil {
			e.logger.Warn("non-critical error persisting hub memory_count", zap.Error(err), zap.String("entity_name", name))
		}
	}
	return nil
}

// Search exposes the name/alias/category substring search (spec §4.5's
// search contract).
func (e *Engine) Search(ctx context.Context, userID shared.UserID, query string) ([]*domain.EntityHub, error) {
	return e.repo.Search(ctx, userID.String(), query)
}

// TopEntities exposes the highest-usage hubs, optionally filtered to one
// HubType (spec §4.5's top_entities contract).
func (e *Engine) TopEntities(ctx context.Context, userID shared.UserID, hubType domain.HubType, limit int) ([]*domain.EntityHub, error) {
	return e.repo.TopEntities(ctx, userID.String(), hubType, limit)
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

// inferHubType guesses a HubType for a freshly learned entity from its
// surface form alone (spec §4.5 doesn't mandate a classifier for this;
// everything defaults to concept unless the tech dictionary already
// recognised it).
func inferHubType(name string) domain.HubType {
	lowered := strings.ToLower(name)
	for _, tech := range knownTechnologies {
		if lowered == tech {
			return domain.HubTypeTech
		}
	}
	return domain.HubTypeConcept
}

// Package entityhub implements the Entity Hub aggregate: the Zettelkasten
// index of named things (people, places, tools, concepts, ...) a user's
// memories mention, learned over time from LLM extraction, dictionary hits,
// and manual edits.
package entityhub

import (
	"strings"
	"time"

	"memory-engine/internal/domain/shared"
)

// EntityHub is a per-user, learned index node (spec §3).
type EntityHub struct {
	id         shared.EntityID
	userID     shared.UserID
	entityName string // normalised (lowercase) key
	displayName string
	canonicalName string
	category    string
	hubType     HubType
	aliases     []string

	usageCount  int
	memoryCount int
	lastUsed    *time.Time
	source      Source
	embedding   shared.EmbeddingVector

	createdAt time.Time
	updatedAt time.Time
	version   shared.Version

	events []shared.DomainEvent
}

// NewEntityHubParams bundles the attributes get_or_create supplies when no
// existing hub matches (spec §4.5's get_or_create contract).
type NewEntityHubParams struct {
	UserID        shared.UserID
	EntityName    string
	DisplayName   string
	CanonicalName string
	Category      string
	HubType       HubType
	Source        Source
	Embedding     shared.EmbeddingVector
}

// NewEntityHub creates a freshly learned entity hub.
func NewEntityHub(p NewEntityHubParams) (*EntityHub, error) {
	normalised := normalise(p.EntityName)
	if len(normalised) < 2 {
		return nil, shared.ErrInvalidEntityName
	}
	if !p.HubType.Valid() {
		return nil, shared.ErrInvalidHubType
	}
	source := p.Source
	if source == "" {
		source = SourceLLM
	}
	if !source.Valid() {
		return nil, shared.ErrInvalidHubType
	}

	now := time.Now()
	id := shared.NewEntityID()
	displayName := p.DisplayName
	if displayName == "" {
		displayName = p.EntityName
	}

	h := &EntityHub{
		id:            id,
		userID:        p.UserID,
		entityName:    normalised,
		displayName:   displayName,
		canonicalName: p.CanonicalName,
		category:      p.Category,
		hubType:       p.HubType,
		aliases:       []string{},
		usageCount:    1,
		memoryCount:   0,
		source:        source,
		embedding:     p.Embedding,
		createdAt:     now,
		updatedAt:     now,
		version:       shared.NewVersion(),
		events:        []shared.DomainEvent{},
	}
	h.addEvent(shared.NewEntityLearnedEvent(id, p.UserID, normalised, string(source)))
	return h, nil
}

// ReconstructEntityHub rebuilds a hub from persistence without generating events.
func ReconstructEntityHub(
	id shared.EntityID, userID shared.UserID, entityName, displayName, canonicalName, category string,
	hubType HubType, aliases []string, usageCount, memoryCount int, lastUsed *time.Time,
	source Source, embedding shared.EmbeddingVector, createdAt, updatedAt time.Time, version shared.Version,
) *EntityHub {
	if aliases == nil {
		aliases = []string{}
	}
	return &EntityHub{
		id:            id,
		userID:        userID,
		entityName:    entityName,
		displayName:   displayName,
		canonicalName: canonicalName,
		category:      category,
		hubType:       hubType,
		aliases:       aliases,
		usageCount:    usageCount,
		memoryCount:   memoryCount,
		lastUsed:      lastUsed,
		source:        source,
		embedding:     embedding,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
		version:       version,
		events:        []shared.DomainEvent{},
	}
}

// Getters

func (h *EntityHub) ID() shared.EntityID              { return h.id }
func (h *EntityHub) UserID() shared.UserID            { return h.userID }
func (h *EntityHub) EntityName() string               { return h.entityName }
func (h *EntityHub) DisplayName() string               { return h.displayName }
func (h *EntityHub) CanonicalName() string             { return h.canonicalName }
func (h *EntityHub) Category() string                  { return h.category }
func (h *EntityHub) HubType() HubType                  { return h.hubType }
func (h *EntityHub) Aliases() []string                 { return h.aliases }
func (h *EntityHub) UsageCount() int                   { return h.usageCount }
func (h *EntityHub) MemoryCount() int                  { return h.memoryCount }
func (h *EntityHub) LastUsed() *time.Time              { return h.lastUsed }
func (h *EntityHub) Source() Source                    { return h.source }
func (h *EntityHub) Embedding() shared.EmbeddingVector { return h.embedding }
func (h *EntityHub) CreatedAt() time.Time              { return h.createdAt }
func (h *EntityHub) UpdatedAt() time.Time              { return h.updatedAt }
func (h *EntityHub) Version() shared.Version           { return h.version }

// Matches reports whether name (case-insensitively) matches this hub's
// entity name or any of its aliases — the dictionary-pass lookup key
// (spec §4.5 step 1).
func (h *EntityHub) Matches(name string) bool {
	n := normalise(name)
	if n == h.entityName {
		return true
	}
	for _, alias := range h.aliases {
		if normalise(alias) == n {
			return true
		}
	}
	return false
}

// Reuse records a dictionary/LLM re-observation of an already-known
// entity: bump usage_count and refresh last_used (spec §4.5 step 5).
func (h *EntityHub) Reuse() {
	now := time.Now()
	h.usageCount++
	h.lastUsed = &now
	h.updatedAt = now
	h.version = h.version.Next()
	h.addEvent(shared.NewEntityReusedEvent(h.id, h.userID, h.usageCount))
}

// AddAlias records a new alias if not already present.
func (h *EntityHub) AddAlias(alias string) {
	n := normalise(alias)
	if n == "" || n == h.entityName {
		return
	}
	for _, a := range h.aliases {
		if normalise(a) == n {
			return
		}
	}
	h.aliases = append(h.aliases, alias)
	h.updatedAt = time.Now()
	h.version = h.version.Next()
}

// LinkedMemory records that one more memory now references this hub,
// incrementing memory_count (spec §4.5's link_memory_to_entities).
func (h *EntityHub) LinkedMemory() {
	h.memoryCount++
	h.updatedAt = time.Now()
	h.version = h.version.Next()
}

// UnlinkedMemory records that a memory no longer references this hub
// (a memory was deleted or its entity list changed). memory_count never
// goes negative: hubs persist with zero references (spec §3's
// ownership/lifecycle rule for Entity Hubs).
func (h *EntityHub) UnlinkedMemory() {
	if h.memoryCount > 0 {
		h.memoryCount--
	}
	h.updatedAt = time.Now()
	h.version = h.version.Next()
}

func (h *EntityHub) GetID() string     { return h.id.String() }
func (h *EntityHub) GetVersion() int   { return h.version.Int() }
func (h *EntityHub) IncrementVersion() { h.version = h.version.Next() }

func (h *EntityHub) GetUncommittedEvents() []shared.DomainEvent { return h.events }
func (h *EntityHub) MarkEventsAsCommitted()                     { h.events = []shared.DomainEvent{} }

func (h *EntityHub) addEvent(event shared.DomainEvent) { h.events = append(h.events, event) }

func normalise(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

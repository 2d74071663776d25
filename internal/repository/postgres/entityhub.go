package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"memory-engine/internal/domain/entityhub"
	"memory-engine/internal/domain/shared"
	apperrors "memory-engine/pkg/errors"
)

// EntityHubRepository is the Postgres implementation of entityhub.Repository.
type EntityHubRepository struct {
	pool *pgxpool.Pool
}

func NewEntityHubRepository(pool *pgxpool.Pool) *EntityHubRepository {
	return &EntityHubRepository{pool: pool}
}

const entityHubColumns = `id, user_id, entity_name, display_name, canonical_name, category, hub_type,
	aliases, usage_count, memory_count, last_used, source, embedding::text, created_at, updated_at, version`

func scanEntityHub(row interface{ Scan(...any) error }) (*entityhub.EntityHub, error) {
	var (
		id, userID, entityName, displayName, canonicalName, category, hubType, source string
		aliases                                                                        []string
		usageCount, memoryCount, version                                               int
		lastUsed                                                                       *time.Time
		embeddingText                                                                  string
		createdAt, updatedAt                                                           time.Time
	)
	if err := row.Scan(&id, &userID, &entityName, &displayName, &canonicalName, &category, &hubType,
		&aliases, &usageCount, &memoryCount, &lastUsed, &source, &embeddingText, &createdAt, &updatedAt, &version); err != nil {
		return nil, err
	}
	entID, err := shared.ParseEntityID(id)
	if err != nil {
		return nil, err
	}
	uid, err := shared.NewUserID(userID)
	if err != nil {
		return nil, err
	}
	vecValues, err := parseVector(embeddingText)
	if err != nil {
		return nil, err
	}
	return entityhub.ReconstructEntityHub(
		entID, uid, entityName, displayName, canonicalName, category, entityhub.HubType(hubType),
		aliases, usageCount, memoryCount, lastUsed, entityhub.Source(source),
		shared.NewEmbeddingVector(vecValues), createdAt, updatedAt, shared.ParseVersion(version),
	), nil
}

func (r *EntityHubRepository) Save(ctx context.Context, h *entityhub.EntityHub) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO entity_hubs (id, user_id, entity_name, display_name, canonical_name, category, hub_type,
	aliases, usage_count, memory_count, last_used, source, embedding, created_at, updated_at, version)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13::vector,$14,$15,$16)
ON CONFLICT (id) DO UPDATE SET
	display_name=EXCLUDED.display_name, canonical_name=EXCLUDED.canonical_name, category=EXCLUDED.category,
	aliases=EXCLUDED.aliases, usage_count=EXCLUDED.usage_count, memory_count=EXCLUDED.memory_count,
	last_used=EXCLUDED.last_used, embedding=EXCLUDED.embedding, updated_at=EXCLUDED.updated_at,
	version=EXCLUDED.version
`,
		h.ID().String(), h.UserID().String(), h.EntityName(), h.DisplayName(), h.CanonicalName(), h.Category(),
		string(h.HubType()), h.Aliases(), h.UsageCount(), h.MemoryCount(), h.LastUsed(), string(h.Source()),
		vectorLiteral(h.Embedding()), h.CreatedAt(), h.UpdatedAt(), h.Version().Int(),
	)
	if err != nil {
		return apperrors.UpstreamStorage("save entity hub", err)
	}
	return nil
}

func (r *EntityHubRepository) FindByID(ctx context.Context, userID string, id shared.EntityID) (*entityhub.EntityHub, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entityHubColumns+` FROM entity_hubs WHERE user_id=$1 AND id=$2`, userID, id.String())
	h, err := scanEntityHub(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrEntityNotFound
		}
		return nil, apperrors.UpstreamStorage("find entity hub by id", err)
	}
	return h, nil
}

func (r *EntityHubRepository) FindByName(ctx context.Context, userID string, entityName string) (*entityhub.EntityHub, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entityHubColumns+` FROM entity_hubs WHERE user_id=$1 AND entity_name=$2`,
		userID, entityName)
	h, err := scanEntityHub(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrEntityNotFound
		}
		return nil, apperrors.UpstreamStorage("find entity hub by name", err)
	}
	return h, nil
}

func (r *EntityHubRepository) queryHubs(ctx context.Context, query string, args ...any) ([]*entityhub.EntityHub, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.UpstreamStorage("query entity hubs", err)
	}
	defer rows.Close()

	var out []*entityhub.EntityHub
	for rows.Next() {
		h, err := scanEntityHub(rows)
		if err != nil {
			return nil, apperrors.UpstreamStorage("scan entity hub row", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *EntityHubRepository) TopByUsage(ctx context.Context, userID string, n int) ([]*entityhub.EntityHub, error) {
	if n <= 0 {
		n = 500
	}
	return r.queryHubs(ctx, `SELECT `+entityHubColumns+` FROM entity_hubs WHERE user_id=$1 ORDER BY usage_count DESC LIMIT $2`,
		userID, n)
}

func (r *EntityHubRepository) Search(ctx context.Context, userID string, query string) ([]*entityhub.EntityHub, error) {
	pattern := "%" + query + "%"
	return r.queryHubs(ctx, `SELECT `+entityHubColumns+` FROM entity_hubs
		WHERE user_id=$1 AND (entity_name ILIKE $2 OR display_name ILIKE $2 OR category ILIKE $2 OR $3 = ANY(aliases))
		ORDER BY usage_count DESC`,
		userID, pattern, query)
}

func (r *EntityHubRepository) TopEntities(ctx context.Context, userID string, hubType entityhub.HubType, limit int) ([]*entityhub.EntityHub, error) {
	if limit <= 0 {
		limit = 20
	}
	if hubType == "" {
		return r.queryHubs(ctx, `SELECT `+entityHubColumns+` FROM entity_hubs WHERE user_id=$1 ORDER BY usage_count DESC LIMIT $2`,
			userID, limit)
	}
	return r.queryHubs(ctx, `SELECT `+entityHubColumns+` FROM entity_hubs WHERE user_id=$1 AND hub_type=$2 ORDER BY usage_count DESC LIMIT $3`,
		userID, string(hubType), limit)
}

func (r *EntityHubRepository) SaveLink(ctx context.Context, link entityhub.MemoryEntityLink) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO memory_entity_links (memory_id, entity_id, user_id, strength, is_primary, mention_count, context_snippet)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (memory_id, entity_id) DO UPDATE SET
	strength=GREATEST(memory_entity_links.strength, EXCLUDED.strength),
	is_primary=memory_entity_links.is_primary OR EXCLUDED.is_primary,
	mention_count=memory_entity_links.mention_count + EXCLUDED.mention_count,
	context_snippet=CASE WHEN EXCLUDED.context_snippet <> '' THEN EXCLUDED.context_snippet ELSE memory_entity_links.context_snippet END
`,
		link.MemoryID.String(), link.EntityID.String(), link.UserID.String(), link.Strength,
		link.IsPrimary, link.MentionCount, link.ContextSnippet,
	)
	if err != nil {
		return apperrors.UpstreamStorage("save memory-entity link", err)
	}
	return nil
}

func scanLink(row interface{ Scan(...any) error }) (entityhub.MemoryEntityLink, error) {
	var (
		memoryID, entityID, userID, contextSnippet string
		strength                                    float64
		isPrimary                                   bool
		mentionCount                                 int
	)
	if err := row.Scan(&memoryID, &entityID, &userID, &strength, &isPrimary, &mentionCount, &contextSnippet); err != nil {
		return entityhub.MemoryEntityLink{}, err
	}
	memID, err := shared.ParseMemoryID(memoryID)
	if err != nil {
		return entityhub.MemoryEntityLink{}, err
	}
	entID, err := shared.ParseEntityID(entityID)
	if err != nil {
		return entityhub.MemoryEntityLink{}, err
	}
	uid, err := shared.NewUserID(userID)
	if err != nil {
		return entityhub.MemoryEntityLink{}, err
	}
	return entityhub.MemoryEntityLink{
		MemoryID: memID, EntityID: entID, UserID: uid, Strength: strength,
		IsPrimary: isPrimary, MentionCount: mentionCount, ContextSnippet: contextSnippet,
	}, nil
}

func (r *EntityHubRepository) LinksForMemory(ctx context.Context, userID string, memoryID shared.MemoryID) ([]entityhub.MemoryEntityLink, error) {
	rows, err := r.pool.Query(ctx, `SELECT memory_id, entity_id, user_id, strength, is_primary, mention_count, context_snippet
		FROM memory_entity_links WHERE user_id=$1 AND memory_id=$2`, userID, memoryID.String())
	if err != nil {
		return nil, apperrors.UpstreamStorage("query links for memory", err)
	}
	defer rows.Close()

	var out []entityhub.MemoryEntityLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, apperrors.UpstreamStorage("scan link row", err)
		}
		out = append(out, link)
	}
	return out, rows.Err()
}

func (r *EntityHubRepository) MemoriesForEntity(ctx context.Context, userID string, entityID shared.EntityID) ([]shared.MemoryID, error) {
	rows, err := r.pool.Query(ctx, `SELECT memory_id FROM memory_entity_links WHERE user_id=$1 AND entity_id=$2`,
		userID, entityID.String())
	if err != nil {
		return nil, apperrors.UpstreamStorage("query memories for entity", err)
	}
	defer rows.Close()

	var out []shared.MemoryID
	for rows.Next() {
		var memoryID string
		if err := rows.Scan(&memoryID); err != nil {
			return nil, apperrors.UpstreamStorage("scan memory id", err)
		}
		id, err := shared.ParseMemoryID(memoryID)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *EntityHubRepository) DeleteLinksForMemory(ctx context.Context, userID string, memoryID shared.MemoryID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM memory_entity_links WHERE user_id=$1 AND memory_id=$2`, userID, memoryID.String())
	if err != nil {
		return apperrors.UpstreamStorage("delete links for memory", err)
	}
	return nil
}

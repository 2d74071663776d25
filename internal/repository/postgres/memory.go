package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"memory-engine/internal/domain/memory"
	"memory-engine/internal/domain/shared"
	apperrors "memory-engine/pkg/errors"
)

// MemoryRepository is the Postgres+pgvector implementation of
// memory.Repository.
type MemoryRepository struct {
	pool *pgxpool.Pool
}

func NewMemoryRepository(pool *pgxpool.Pool) *MemoryRepository {
	return &MemoryRepository{pool: pool}
}

const memoryColumns = `id, user_id, content, embedding::text, entities, memory_type, domain, category,
	importance, confidence, access_count, last_accessed, status, superseded_by, source, source_id,
	metadata, evidence_events, accumulated_confidence, created_at, updated_at, deleted_at, version`

func (r *MemoryRepository) scanMemory(row pgx.Row) (*memory.Memory, error) {
	var (
		id, userID, content, memType, domain, category, status, source, sourceID string
		embeddingText                                                            string
		entities                                                                 []string
		supersededBy                                                             *string
		metadata                                                                 map[string]string
		importance, accessCount, evidenceEvents, version                        int
		confidence, accumulatedConfidence                                       float64
		lastAccessed, deletedAt                                                 *time.Time
		createdAt, updatedAt                                                    time.Time
	)
	if err := row.Scan(&id, &userID, &content, &embeddingText, &entities, &memType, &domain, &category,
		&importance, &confidence, &accessCount, &lastAccessed, &status, &supersededBy, &source, &sourceID,
		&metadata, &evidenceEvents, &accumulatedConfidence, &createdAt, &updatedAt, &deletedAt, &version); err != nil {
		return nil, err
	}

	memID, err := shared.ParseMemoryID(id)
	if err != nil {
		return nil, err
	}
	uid, err := shared.NewUserID(userID)
	if err != nil {
		return nil, err
	}
	contentVO, err := shared.NewContent(content)
	if err != nil {
		return nil, err
	}
	vecValues, err := parseVector(embeddingText)
	if err != nil {
		return nil, err
	}
	var sup *shared.MemoryID
	if supersededBy != nil {
		parsed, err := shared.ParseMemoryID(*supersededBy)
		if err != nil {
			return nil, err
		}
		sup = &parsed
	}

	return memory.ReconstructMemory(
		memID, uid, contentVO, shared.NewEmbeddingVector(vecValues),
		shared.NewEntityList(entities), memory.Type(memType), domain, category, importance, confidence,
		accessCount, lastAccessed, memory.Status(status), sup,
		memory.Source(source), sourceID, metadata,
		evidenceEvents, accumulatedConfidence,
		createdAt, updatedAt, deletedAt, shared.ParseVersion(version),
	), nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, userID string, id shared.MemoryID) (*memory.Memory, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+memoryColumns+` FROM memories WHERE user_id=$1 AND id=$2`, userID, id.String())
	m, err := r.scanMemory(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrMemoryNotFound
		}
		return nil, apperrors.UpstreamStorage("find memory by id", err)
	}
	return m, nil
}

func (r *MemoryRepository) Save(ctx context.Context, m *memory.Memory) error {
	var supersededBy *string
	if s := m.SupersededBy(); s != nil {
		v := s.String()
		supersededBy = &v
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO memories (id, user_id, content, embedding, entities, memory_type, domain, category,
	importance, confidence, access_count, last_accessed, status, superseded_by, source, source_id,
	metadata, evidence_events, accumulated_confidence, created_at, updated_at, deleted_at, version)
VALUES ($1,$2,$3,$4::vector,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
ON CONFLICT (id) DO UPDATE SET
	content=EXCLUDED.content, embedding=EXCLUDED.embedding, entities=EXCLUDED.entities,
	memory_type=EXCLUDED.memory_type, domain=EXCLUDED.domain, category=EXCLUDED.category,
	importance=EXCLUDED.importance, confidence=EXCLUDED.confidence, access_count=EXCLUDED.access_count,
	last_accessed=EXCLUDED.last_accessed, status=EXCLUDED.status, superseded_by=EXCLUDED.superseded_by,
	metadata=EXCLUDED.metadata, evidence_events=EXCLUDED.evidence_events,
	accumulated_confidence=EXCLUDED.accumulated_confidence, updated_at=EXCLUDED.updated_at,
	deleted_at=EXCLUDED.deleted_at, version=EXCLUDED.version
`,
		m.ID().String(), m.UserID().String(), m.Content().String(), vectorLiteral(m.Embedding()),
		m.Entities().ToSlice(), string(m.Type()), m.Domain(), m.Category(),
		m.Importance(), m.Confidence(), m.AccessCount(), m.LastAccessed(), string(m.Status()), supersededBy,
		string(m.Source()), m.SourceID(), m.Metadata(), m.EvidenceEvents(), m.AccumulatedConfidence(),
		m.CreatedAt(), m.UpdatedAt(), m.DeletedAt(), m.Version().Int(),
	)
	if err != nil {
		return apperrors.UpstreamStorage("save memory", err)
	}
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, userID string, id shared.MemoryID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM memories WHERE user_id=$1 AND id=$2`, userID, id.String())
	if err != nil {
		return apperrors.UpstreamStorage("delete memory", err)
	}
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, userID string, filter memory.ListFilter) ([]*memory.Memory, error) {
	where, args := buildFilterClause(userID, filter, 1)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM memories WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		memoryColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.UpstreamStorage("list memories", err)
	}
	defer rows.Close()

	var out []*memory.Memory
	for rows.Next() {
		m, err := r.scanMemory(rows)
		if err != nil {
			return nil, apperrors.UpstreamStorage("scan memory row", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MemoryRepository) NearestNeighbors(ctx context.Context, userID string, embedding shared.EmbeddingVector, k int) ([]memory.NearestNeighbor, error) {
	return r.searchSimilar(ctx, userID, embedding, k, memory.ListFilter{})
}

func (r *MemoryRepository) SearchSimilar(ctx context.Context, userID string, embedding shared.EmbeddingVector, limit int, filter memory.ListFilter) ([]memory.NearestNeighbor, error) {
	return r.searchSimilar(ctx, userID, embedding, limit, filter)
}

func (r *MemoryRepository) searchSimilar(ctx context.Context, userID string, embedding shared.EmbeddingVector, limit int, filter memory.ListFilter) ([]memory.NearestNeighbor, error) {
	vec := vectorLiteral(embedding)
	if vec == nil {
		return nil, nil
	}
	where, args := buildFilterClause(userID, filter, 2)
	args = append([]any{*vec}, args...)
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s, 1 - (embedding <=> $1::vector) AS similarity FROM memories WHERE %s AND embedding IS NOT NULL ORDER BY embedding <=> $1::vector LIMIT $%d`,
		memoryColumns, where, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.UpstreamStorage("search similar memories", err)
	}
	defer rows.Close()

	var out []memory.NearestNeighbor
	for rows.Next() {
		m, err := r.scanMemoryWithSimilarity(rows)
		if err != nil {
			return nil, apperrors.UpstreamStorage("scan similarity row", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// scanMemoryWithSimilarity scans the memory columns plus the trailing
// similarity score searchSimilar's query appends.
func (r *MemoryRepository) scanMemoryWithSimilarity(rows pgx.Rows) (memory.NearestNeighbor, error) {
	var (
		id, userID, content, memType, domain, category, status, source, sourceID string
		embeddingText                                                            string
		entities                                                                 []string
		supersededBy                                                             *string
		metadata                                                                 map[string]string
		importance, accessCount, evidenceEvents, version                        int
		confidence, accumulatedConfidence, similarity                           float64
		lastAccessed, deletedAt                                                 *time.Time
		createdAt, updatedAt                                                    time.Time
	)
	if err := rows.Scan(&id, &userID, &content, &embeddingText, &entities, &memType, &domain, &category,
		&importance, &confidence, &accessCount, &lastAccessed, &status, &supersededBy, &source, &sourceID,
		&metadata, &evidenceEvents, &accumulatedConfidence, &createdAt, &updatedAt, &deletedAt, &version,
		&similarity); err != nil {
		return memory.NearestNeighbor{}, err
	}

	memID, err := shared.ParseMemoryID(id)
	if err != nil {
		return memory.NearestNeighbor{}, err
	}
	uid, err := shared.NewUserID(userID)
	if err != nil {
		return memory.NearestNeighbor{}, err
	}
	contentVO, err := shared.NewContent(content)
	if err != nil {
		return memory.NearestNeighbor{}, err
	}
	vecValues, err := parseVector(embeddingText)
	if err != nil {
		return memory.NearestNeighbor{}, err
	}
	var sup *shared.MemoryID
	if supersededBy != nil {
		parsed, err := shared.ParseMemoryID(*supersededBy)
		if err != nil {
			return memory.NearestNeighbor{}, err
		}
		sup = &parsed
	}

	m := memory.ReconstructMemory(
		memID, uid, contentVO, shared.NewEmbeddingVector(vecValues),
		shared.NewEntityList(entities), memory.Type(memType), domain, category, importance, confidence,
		accessCount, lastAccessed, memory.Status(status), sup,
		memory.Source(source), sourceID, metadata,
		evidenceEvents, accumulatedConfidence,
		createdAt, updatedAt, deletedAt, shared.ParseVersion(version),
	)
	return memory.NearestNeighbor{Memory: m, Similarity: similarity}, nil
}

func (r *MemoryRepository) CountActive(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM memories WHERE user_id=$1 AND status=$2`,
		userID, string(memory.StatusActive)).Scan(&count)
	if err != nil {
		return 0, apperrors.UpstreamStorage("count active memories", err)
	}
	return count, nil
}

// buildFilterClause renders spec §4.4 step 2's filter set as a WHERE
// clause, starting placeholders at argOffset+1 so callers can prepend
// their own leading args (the query vector, in similarity search).
func buildFilterClause(userID string, filter memory.ListFilter, argOffset int) (string, []any) {
	clauses := []string{fmt.Sprintf("user_id=$%d", argOffset)}
	args := []any{userID}
	next := argOffset + 1

	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status=$%d", next))
		args = append(args, string(filter.Status))
		next++
	} else {
		clauses = append(clauses, fmt.Sprintf("status!=$%d", next))
		args = append(args, string(memory.StatusDeleted))
		next++
	}
	if filter.MemoryType != "" {
		clauses = append(clauses, fmt.Sprintf("memory_type=$%d", next))
		args = append(args, string(filter.MemoryType))
		next++
	}
	if filter.MinImportance > 0 {
		clauses = append(clauses, fmt.Sprintf("importance>=$%d", next))
		args = append(args, filter.MinImportance)
		next++
	}
	if filter.Domain != "" {
		clauses = append(clauses, fmt.Sprintf("domain=$%d", next))
		args = append(args, filter.Domain)
		next++
	}
	if filter.CategoryPrefix != "" {
		clauses = append(clauses, fmt.Sprintf("category LIKE $%d", next))
		args = append(args, strings.TrimSuffix(filter.CategoryPrefix, "%")+"%")
		next++
	}
	if filter.Entity != "" {
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(entities)", next))
		args = append(args, filter.Entity)
		next++
	}
	if cutoff := dateRangeCutoff(filter.DateRange); cutoff != nil {
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", next))
		args = append(args, *cutoff)
		next++
	}
	return strings.Join(clauses, " AND "), args
}

func dateRangeCutoff(r memory.DateRange) *time.Time {
	now := time.Now()
	var cutoff time.Time
	switch r {
	case memory.DateRangeLast7Days:
		cutoff = now.AddDate(0, 0, -7)
	case memory.DateRangeLast30Days:
		cutoff = now.AddDate(0, 0, -30)
	case memory.DateRangeLastYear:
		cutoff = now.AddDate(-1, 0, 0)
	default:
		return nil
	}
	return &cutoff
}

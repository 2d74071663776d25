package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"memory-engine/internal/domain/consolidation"
	apperrors "memory-engine/pkg/errors"
)

// ConsolidationHistoryRepository is the Postgres implementation of
// consolidation.HistoryRepository.
type ConsolidationHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewConsolidationHistoryRepository(pool *pgxpool.Pool) *ConsolidationHistoryRepository {
	return &ConsolidationHistoryRepository{pool: pool}
}

const historyColumns = `id, user_id, consolidation_date, session_id, conversation_id,
	session_transcript_length, claims_extracted, memories_processed, new_memories_created, merged_count,
	conflicts_resolved, edges_created, processing_time_ms, tokens_used, embedding_cost_usd,
	duplicate_similarity_threshold, conflict_similarity_range, patterns_detected, key_entities,
	sentiment_analysis, status, error_message, created_at, metadata`

func scanHistory(row interface{ Scan(...any) error }) (*consolidation.History, error) {
	var h consolidation.History
	var status string
	if err := row.Scan(&h.ID, &h.UserID, &h.ConsolidationDate, &h.SessionID, &h.ConversationID,
		&h.SessionTranscriptLength, &h.ClaimsExtracted, &h.MemoriesProcessed, &h.NewMemoriesCreated, &h.MergedCount,
		&h.ConflictsResolved, &h.EdgesCreated, &h.ProcessingTimeMs, &h.TokensUsed, &h.EmbeddingCostUSD,
		&h.DuplicateSimilarityThreshold, &h.ConflictSimilarityRange, &h.PatternsDetected, &h.KeyEntities,
		&h.SentimentAnalysis, &status, &h.ErrorMessage, &h.CreatedAt, &h.Metadata); err != nil {
		return nil, err
	}
	h.Status = consolidation.Status(status)
	return &h, nil
}

func (r *ConsolidationHistoryRepository) Save(ctx context.Context, h consolidation.History) error {
	if h.Metadata == nil {
		h.Metadata = map[string]string{}
	}
	if h.SentimentAnalysis == nil {
		h.SentimentAnalysis = map[string]string{}
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO consolidation_history (id, user_id, consolidation_date, session_id, conversation_id,
	session_transcript_length, claims_extracted, memories_processed, new_memories_created, merged_count,
	conflicts_resolved, edges_created, processing_time_ms, tokens_used, embedding_cost_usd,
	duplicate_similarity_threshold, conflict_similarity_range, patterns_detected, key_entities,
	sentiment_analysis, status, error_message, created_at, metadata)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, error_message=EXCLUDED.error_message
`,
		h.ID, h.UserID, h.ConsolidationDate, h.SessionID, h.ConversationID,
		h.SessionTranscriptLength, h.ClaimsExtracted, h.MemoriesProcessed, h.NewMemoriesCreated, h.MergedCount,
		h.ConflictsResolved, h.EdgesCreated, h.ProcessingTimeMs, h.TokensUsed, h.EmbeddingCostUSD,
		h.DuplicateSimilarityThreshold, h.ConflictSimilarityRange, h.PatternsDetected, h.KeyEntities,
		h.SentimentAnalysis, string(h.Status), h.ErrorMessage, h.CreatedAt, h.Metadata,
	)
	if err != nil {
		return apperrors.UpstreamStorage("save consolidation history", err)
	}
	return nil
}

func (r *ConsolidationHistoryRepository) FindByID(ctx context.Context, userID, id string) (*consolidation.History, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+historyColumns+` FROM consolidation_history WHERE user_id=$1 AND id=$2`,
		userID, id)
	h, err := scanHistory(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFound("consolidation history not found")
		}
		return nil, apperrors.UpstreamStorage("find consolidation history by id", err)
	}
	return h, nil
}

func (r *ConsolidationHistoryRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]consolidation.History, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `SELECT `+historyColumns+` FROM consolidation_history
		WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, apperrors.UpstreamStorage("list consolidation history", err)
	}
	defer rows.Close()

	var out []consolidation.History
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, apperrors.UpstreamStorage("scan consolidation history row", err)
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

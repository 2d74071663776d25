package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"memory-engine/internal/domain/edge"
	"memory-engine/internal/domain/shared"
	apperrors "memory-engine/pkg/errors"
)

// EdgeRepository is the Postgres implementation of edge.Repository.
type EdgeRepository struct {
	pool *pgxpool.Pool
}

func NewEdgeRepository(pool *pgxpool.Pool) *EdgeRepository {
	return &EdgeRepository{pool: pool}
}

const edgeColumns = `id, user_id, from_memory_id, to_memory_id, edge_type, strength, confidence,
	causality, bidirectional, reason, created_at, updated_at, version`

func scanEdge(row interface{ Scan(...any) error }) (*edge.Edge, error) {
	var (
		id, userID, from, to, edgeType, reason string
		strength, confidence                   float64
		causality, bidirectional                bool
		createdAt, updatedAt                    time.Time
		version                                 int
	)
	if err := row.Scan(&id, &userID, &from, &to, &edgeType, &strength, &confidence,
		&causality, &bidirectional, &reason, &createdAt, &updatedAt, &version); err != nil {
		return nil, err
	}
	edgeID, err := shared.ParseEdgeID(id)
	if err != nil {
		return nil, err
	}
	fromID, err := shared.ParseMemoryID(from)
	if err != nil {
		return nil, err
	}
	toID, err := shared.ParseMemoryID(to)
	if err != nil {
		return nil, err
	}
	uid, err := shared.NewUserID(userID)
	if err != nil {
		return nil, err
	}
	return edge.ReconstructEdge(edgeID, fromID, toID, uid, edge.Type(edgeType), strength, confidence,
		causality, bidirectional, reason, createdAt, updatedAt, shared.ParseVersion(version)), nil
}

func (r *EdgeRepository) Save(ctx context.Context, e *edge.Edge) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO edges (id, user_id, from_memory_id, to_memory_id, edge_type, strength, confidence,
	causality, bidirectional, reason, created_at, updated_at, version)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
	strength=EXCLUDED.strength, confidence=EXCLUDED.confidence, causality=EXCLUDED.causality,
	bidirectional=EXCLUDED.bidirectional, reason=EXCLUDED.reason, updated_at=EXCLUDED.updated_at,
	version=EXCLUDED.version
`,
		e.ID().String(), e.UserID().String(), e.From().String(), e.To().String(), string(e.Type()),
		e.Strength(), e.Confidence(), e.Causality(), e.Bidirectional(), e.Reason(),
		e.CreatedAt(), e.UpdatedAt(), e.Version().Int(),
	)
	if err != nil {
		return apperrors.UpstreamStorage("save edge", err)
	}
	return nil
}

func (r *EdgeRepository) Delete(ctx context.Context, userID string, id shared.EdgeID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM edges WHERE user_id=$1 AND id=$2`, userID, id.String())
	if err != nil {
		return apperrors.UpstreamStorage("delete edge", err)
	}
	return nil
}

func (r *EdgeRepository) FindByID(ctx context.Context, userID string, id shared.EdgeID) (*edge.Edge, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+edgeColumns+` FROM edges WHERE user_id=$1 AND id=$2`, userID, id.String())
	e, err := scanEdge(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrEdgeNotFound
		}
		return nil, apperrors.UpstreamStorage("find edge by id", err)
	}
	return e, nil
}

func (r *EdgeRepository) queryEdges(ctx context.Context, query string, args ...any) ([]*edge.Edge, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.UpstreamStorage("query edges", err)
	}
	defer rows.Close()

	var out []*edge.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, apperrors.UpstreamStorage("scan edge row", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EdgeRepository) EdgesFrom(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	return r.queryEdges(ctx, `SELECT `+edgeColumns+` FROM edges WHERE user_id=$1 AND from_memory_id=$2`,
		userID, memoryID.String())
}

func (r *EdgeRepository) EdgesTo(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	return r.queryEdges(ctx, `SELECT `+edgeColumns+` FROM edges WHERE user_id=$1 AND to_memory_id=$2`,
		userID, memoryID.String())
}

func (r *EdgeRepository) AllEdgesFor(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	return r.queryEdges(ctx, `SELECT `+edgeColumns+` FROM edges WHERE user_id=$1 AND (from_memory_id=$2 OR to_memory_id=$2)`,
		userID, memoryID.String())
}

func (r *EdgeRepository) FindByEndpoints(ctx context.Context, userID string, from, to shared.MemoryID, edgeType edge.Type) (*edge.Edge, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+edgeColumns+` FROM edges WHERE user_id=$1 AND from_memory_id=$2 AND to_memory_id=$3 AND edge_type=$4`,
		userID, from.String(), to.String(), string(edgeType))
	e, err := scanEdge(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrEdgeNotFound
		}
		return nil, apperrors.UpstreamStorage("find edge by endpoints", err)
	}
	return e, nil
}

func (r *EdgeRepository) FindContradictions(ctx context.Context, userID string, memoryID shared.MemoryID) ([]*edge.Edge, error) {
	return r.queryEdges(ctx, `SELECT `+edgeColumns+` FROM edges WHERE user_id=$1 AND edge_type=$2 AND (from_memory_id=$3 OR to_memory_id=$3)`,
		userID, string(edge.TypeContradicts), memoryID.String())
}

// Related performs a bounded breadth-first walk honoring minStrength,
// loading one hop's worth of edges at a time (spec §4.3's related()).
// Graph fan-out in this domain is small enough per user that an
// in-process BFS over per-hop SQL queries is simpler and just as fast as
// a recursive CTE, and keeps the traversal bound (depth, minStrength)
// expressed in Go rather than duplicated in SQL.
func (r *EdgeRepository) Related(ctx context.Context, userID string, memoryID shared.MemoryID, depth int, minStrength float64) ([]*edge.Edge, error) {
	if depth <= 0 {
		depth = 1
	}
	visited := map[string]bool{memoryID.String(): true}
	frontier := []shared.MemoryID{memoryID}
	var result []*edge.Edge
	seenEdges := map[string]bool{}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []shared.MemoryID
		for _, id := range frontier {
			edges, err := r.AllEdgesFor(ctx, userID, id)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				if e.Strength() < minStrength {
					continue
				}
				if !seenEdges[e.ID().String()] {
					seenEdges[e.ID().String()] = true
					result = append(result, e)
				}
				other := e.To()
				if other.Equals(id) {
					other = e.From()
				}
				if !visited[other.String()] {
					visited[other.String()] = true
					next = append(next, other)
				}
			}
		}
		frontier = next
	}
	return result, nil
}

// FindPath runs an unweighted BFS over edges up to maxDepth hops,
// returning the edge chain from `from` to `to` once found.
func (r *EdgeRepository) FindPath(ctx context.Context, userID string, from, to shared.MemoryID, maxDepth int) ([]*edge.Edge, error) {
	if maxDepth <= 0 {
		maxDepth = 4
	}
	type frontierNode struct {
		id   shared.MemoryID
		path []*edge.Edge
	}
	visited := map[string]bool{from.String(): true}
	frontier := []frontierNode{{id: from}}

	for hop := 0; hop < maxDepth && len(frontier) > 0; hop++ {
		var next []frontierNode
		for _, node := range frontier {
			edges, err := r.AllEdgesFor(ctx, userID, node.id)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				other := e.To()
				if other.Equals(node.id) {
					other = e.From()
				}
				if visited[other.String()] {
					continue
				}
				path := append(append([]*edge.Edge{}, node.path...), e)
				if other.Equals(to) {
					return path, nil
				}
				visited[other.String()] = true
				next = append(next, frontierNode{id: other, path: path})
			}
		}
		frontier = next
	}
	return nil, apperrors.NotFound(fmt.Sprintf("no path between %s and %s within %d hops", from.String(), to.String(), maxDepth))
}

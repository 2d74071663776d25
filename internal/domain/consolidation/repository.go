package consolidation

import "context"

// HistoryRepository persists the audit trail of consolidation runs
// (spec §3's Consolidation History entity, step 10 of spec §4.2).
type HistoryRepository interface {
	Save(ctx context.Context, h History) error
	FindByID(ctx context.Context, userID, id string) (*History, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]History, error)
}

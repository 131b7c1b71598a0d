package postgresql

import (
	"context"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
)

type HistoryRepo struct {
	db db.DB
}

func NewHistoryRepo(db db.DB) storage.HistoryRepository {
	return &HistoryRepo{db: db}
}

func (r *HistoryRepo) CreateTx(ctx context.Context, tx db.Tx, entry *repository.HistoryEntry) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO status_history (
            project, order_doc_id, old_status, new_status, changed_at
        ) VALUES ($1, $2, $3, $4, $5)
    `, entry.Project, entry.OrderDocID, entry.OldStatus, entry.NewStatus, entry.ChangedAt)
	return err
}

func (r *HistoryRepo) GetByOrder(ctx context.Context, project, orderDocID string) ([]*repository.HistoryEntry, error) {
	var entries []*repository.HistoryEntry
	err := r.db.Select(ctx, &entries, `
        SELECT id, project, order_doc_id, old_status, new_status, changed_at
        FROM status_history
        WHERE project = $1 AND order_doc_id = $2
        ORDER BY changed_at ASC, id ASC
    `, project, orderDocID)
	return entries, err
}

package storage

import (
	"context"
	"time"

	"mindmix/internal/models"
)

// HistoryRepository persists question/answer records.
// ListByUser returns newest first and only records owned by userID.
type HistoryRepository interface {
	Insert(ctx context.Context, rec *models.HistoryRecord) error
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	ListByUser(ctx context.Context, userID string) ([]models.HistoryRecord, error)
}

// QuotaInserter is implemented by backends that can check the quota and
// insert in one atomic step. Backends without it fall back to check-then-insert.
type QuotaInserter interface {
	InsertWithinQuota(ctx context.Context, rec *models.HistoryRecord, since time.Time, limit int) error
}

func validateRecord(rec *models.HistoryRecord) error {
	if rec == nil || rec.UserID == "" {
		return ErrInvalidRecord
	}
	return nil
}

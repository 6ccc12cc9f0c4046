package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mindmix/internal/models"
)

const historyColumns = "id, user_id, subject, task, question, answer, created_at"

// PostgresHistoryRepository stores history records in the history table
type PostgresHistoryRepository struct {
	db *DB
}

// NewPostgresHistoryRepository creates a new history repository
func NewPostgresHistoryRepository(db *DB) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

// Insert writes a new record
func (r *PostgresHistoryRepository) Insert(ctx context.Context, rec *models.HistoryRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	prepareRecord(rec)

	query := `
		INSERT INTO history (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.conn.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Subject, rec.Task, rec.Question, rec.Answer, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}
	return nil
}

// CountSince counts the user's records created at or after since
func (r *PostgresHistoryRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM history WHERE user_id = $1 AND created_at >= $2`

	if err := r.db.conn.GetContext(ctx, &count, query, userID, since.UTC()); err != nil {
		return 0, fmt.Errorf("failed to count history records: %w", err)
	}
	return count, nil
}

// ListByUser returns all of the user's records, newest first
func (r *PostgresHistoryRepository) ListByUser(ctx context.Context, userID string) ([]models.HistoryRecord, error) {
	records := make([]models.HistoryRecord, 0)
	query := `
		SELECT ` + historyColumns + `
		FROM history
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	if err := r.db.conn.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list history records: %w", err)
	}
	return records, nil
}

// InsertWithinQuota serializes writers of the same user with a transaction-scoped
// advisory lock, so the count and the insert cannot interleave with another request.
func (r *PostgresHistoryRepository) InsertWithinQuota(ctx context.Context, rec *models.HistoryRecord, since time.Time, limit int) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	prepareRecord(rec)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rec.UserID); err != nil {
		return fmt.Errorf("failed to lock user quota: %w", err)
	}

	var count int
	if err := tx.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM history WHERE user_id = $1 AND created_at >= $2`,
		rec.UserID, since.UTC(),
	); err != nil {
		return fmt.Errorf("failed to count history records: %w", err)
	}
	if count >= limit {
		return ErrQuotaExceeded
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO history (`+historyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.UserID, rec.Subject, rec.Task, rec.Question, rec.Answer, rec.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history record: %w", err)
	}
	return nil
}

func prepareRecord(rec *models.HistoryRecord) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
}

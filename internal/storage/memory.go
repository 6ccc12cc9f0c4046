package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mindmix/internal/models"
)

// MemoryHistoryRepository keeps records in process memory. Used for local development and tests.
type MemoryHistoryRepository struct {
	mu      sync.RWMutex
	records []models.HistoryRecord
}

func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{}
}

func (s *MemoryHistoryRepository) Insert(ctx context.Context, rec *models.HistoryRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertLocked(rec)
	return nil
}

func (s *MemoryHistoryRepository) insertLocked(rec *models.HistoryRecord) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.records = append(s.records, *rec)
}

func (s *MemoryHistoryRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.countLocked(userID, since), nil
}

func (s *MemoryHistoryRepository) countLocked(userID string, since time.Time) int {
	count := 0
	for _, r := range s.records {
		if r.UserID == userID && !r.CreatedAt.Before(since) {
			count++
		}
	}
	return count
}

func (s *MemoryHistoryRepository) ListByUser(ctx context.Context, userID string) ([]models.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.HistoryRecord, 0)
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// InsertWithinQuota counts and inserts under one lock
func (s *MemoryHistoryRepository) InsertWithinQuota(ctx context.Context, rec *models.HistoryRecord, since time.Time, limit int) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.countLocked(rec.UserID, since) >= limit {
		return ErrQuotaExceeded
	}
	s.insertLocked(rec)
	return nil
}

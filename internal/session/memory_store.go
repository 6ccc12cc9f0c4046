package session

import (
	"context"
	"time"
)

// MemoryStore keeps sessions in a bounded in-process LRU. Used when Redis is not configured.
type MemoryStore struct {
	cache *lruCache[Session]
}

// NewMemoryStore creates a store holding at most capacity sessions
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{cache: newLRUCache[Session](capacity)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s, ok := m.cache.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	if !s.Valid() {
		return ErrInvalidSession
	}
	m.cache.set(s.ID, *s, s.ExpiresAt)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.cache.delete(id)
	return nil
}

// Len returns the number of stored sessions, including expired ones not yet cleaned up
func (m *MemoryStore) Len() int {
	return m.cache.len()
}

// StartCleanup drops expired sessions every interval until ctx is done
func (m *MemoryStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.cache.cleanupExpired()
			}
		}
	}()
}

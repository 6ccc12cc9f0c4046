package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis as JSON, expiring with the session.
// With a Cipher the JSON is sealed before it is written.
type RedisStore struct {
	client *redis.Client
	prefix string
	cipher *Cipher
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed session store
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// WithCipher seals stored sessions. Sessions written without it can no longer be read.
func (r *RedisStore) WithCipher(c *Cipher) *RedisStore {
	r.cipher = c
	return r
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if r.cipher != nil {
		if data, err = r.cipher.Open(data); err != nil {
			// written under another key; the user signs in again
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	if !s.Valid() {
		return ErrInvalidSession
	}

	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return r.Delete(ctx, s.ID)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if r.cipher != nil {
		if data, err = r.cipher.Seal(data); err != nil {
			return fmt.Errorf("failed to seal session: %w", err)
		}
	}
	if err := r.client.Set(ctx, r.key(s.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue using a Redis list.
// The client is shared and is not closed by the queue.
type RedisQueue struct {
	client *redis.Client
	qKey   string
}

// NewRedisQueue creates a queue stored under "{prefix}queue:{name}"
func NewRedisQueue(client *redis.Client, prefix string, config *Config) (*RedisQueue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if config == nil {
		return nil, errors.New("config is required")
	}
	return &RedisQueue{
		client: client,
		qKey:   fmt.Sprintf("%squeue:%s", prefix, config.Name),
	}, nil
}

// Enqueue appends a payload to the list
func (q *RedisQueue) Enqueue(ctx context.Context, payload []byte) error {
	if err := q.client.RPush(ctx, q.qKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to push to Redis: %w", err)
	}
	return nil
}

// DequeueWithTimeout blocks on BLPOP, then drains without blocking
func (q *RedisQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([][]byte, error) {
	result, err := q.client.BLPop(ctx, timeout, q.qKey).Result()
	if errors.Is(err, redis.Nil) {
		return [][]byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}

	// result[0] is the key, result[1] is the value
	items := [][]byte{[]byte(result[1])}

	for len(items) < maxItems {
		value, err := q.client.LPop(ctx, q.qKey).Result()
		if err != nil {
			// redis.Nil means empty; anything else is retried on the next call
			break
		}
		items = append(items, []byte(value))
	}
	return items, nil
}

// Length returns the current queue length
func (q *RedisQueue) Length(ctx context.Context) (int, error) {
	length, err := q.client.LLen(ctx, q.qKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(length), nil
}

// Close is a no-op; the shared client is closed by its owner
func (q *RedisQueue) Close() error {
	return nil
}

// RedisDeadLetterQueue implements DeadLetterQueue using a Redis hash
type RedisDeadLetterQueue struct {
	client *redis.Client
	dlKey  string
}

// NewRedisDeadLetterQueue creates a dead letter queue stored under "{prefix}dlq:{name}"
func NewRedisDeadLetterQueue(client *redis.Client, prefix string, config *Config) (*RedisDeadLetterQueue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if config == nil {
		return nil, errors.New("config is required")
	}
	return &RedisDeadLetterQueue{
		client: client,
		dlKey:  fmt.Sprintf("%sdlq:%s", prefix, config.Name),
	}, nil
}

// Add records a failed payload
func (q *RedisDeadLetterQueue) Add(ctx context.Context, payload []byte, cause error) error {
	item := newDeadLetterItem(payload, cause)
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter item: %w", err)
	}
	if err := q.client.HSet(ctx, q.dlKey, item.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to add to dead letter queue: %w", err)
	}
	return nil
}

// List returns up to maxItems failed payloads in no particular order
func (q *RedisDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	results, err := q.client.HGetAll(ctx, q.dlKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letter items: %w", err)
	}

	items := make([]DeadLetterItem, 0, len(results))
	for _, data := range results {
		var item DeadLetterItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			continue
		}
		items = append(items, item)
		if maxItems > 0 && len(items) >= maxItems {
			break
		}
	}
	return items, nil
}

// Remove deletes a failed payload by ID
func (q *RedisDeadLetterQueue) Remove(ctx context.Context, id string) error {
	n, err := q.client.HDel(ctx, q.dlKey, id).Result()
	if err != nil {
		return fmt.Errorf("failed to remove from dead letter queue: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Length returns the number of failed payloads kept
func (q *RedisDeadLetterQueue) Length(ctx context.Context) (int, error) {
	n, err := q.client.HLen(ctx, q.dlKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get dead letter queue length: %w", err)
	}
	return int(n), nil
}

// Close is a no-op; the shared client is closed by its owner
func (q *RedisDeadLetterQueue) Close() error {
	return nil
}

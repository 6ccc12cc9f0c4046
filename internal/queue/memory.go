package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements Queue using a buffered channel
type MemoryQueue struct {
	items  chan []byte
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates an in-memory queue holding at most config.Capacity payloads
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}
	capacity := config.Capacity
	if capacity <= 0 {
		capacity = config.BatchSize * 10
	}
	return &MemoryQueue{items: make(chan []byte, capacity)}
}

// Enqueue adds a payload, failing fast when the buffer is full
func (q *MemoryQueue) Enqueue(ctx context.Context, payload []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// DequeueWithTimeout retrieves up to maxItems payloads
func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([][]byte, error) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()

	var items [][]byte
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item, ok := <-q.items:
		if !ok {
			return nil, ErrQueueClosed
		}
		items = append(items, item)
	case <-timer.C:
		if closed {
			return nil, ErrQueueClosed
		}
		return items, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(items) < maxItems {
		select {
		case item, ok := <-q.items:
			if !ok {
				return items, nil
			}
			items = append(items, item)
		default:
			return items, nil
		}
	}
	return items, nil
}

// Length returns the current queue length
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	return len(q.items), nil
}

// Close stops accepting payloads. Queued payloads can still be dequeued.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.items)
	return nil
}

// MemoryDeadLetterQueue implements DeadLetterQueue with a bounded slice
type MemoryDeadLetterQueue struct {
	items    []DeadLetterItem
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewMemoryDeadLetterQueue keeps the newest capacity items
func NewMemoryDeadLetterQueue(capacity int) *MemoryDeadLetterQueue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryDeadLetterQueue{capacity: capacity}
}

// Add records a failed payload
func (q *MemoryDeadLetterQueue) Add(ctx context.Context, payload []byte, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, newDeadLetterItem(payload, cause))
	if len(q.items) > q.capacity {
		q.items = q.items[len(q.items)-q.capacity:]
	}
	return nil
}

// List returns up to maxItems failed payloads, oldest first. maxItems <= 0 returns all.
func (q *MemoryDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if maxItems <= 0 || maxItems > len(q.items) {
		maxItems = len(q.items)
	}
	result := make([]DeadLetterItem, maxItems)
	copy(result, q.items[:maxItems])
	return result, nil
}

// Remove deletes a failed payload by ID
func (q *MemoryDeadLetterQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

// Length returns the number of failed payloads kept
func (q *MemoryDeadLetterQueue) Length(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, ErrQueueClosed
	}
	return len(q.items), nil
}

// Close shuts down the dead letter queue
func (q *MemoryDeadLetterQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	return nil
}

func newDeadLetterItem(payload []byte, cause error) DeadLetterItem {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return DeadLetterItem{
		ID:        uuid.NewString(),
		Payload:   payload,
		Error:     msg,
		Timestamp: time.Now().UTC(),
	}
}

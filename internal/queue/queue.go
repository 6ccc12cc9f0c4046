// Package queue buffers JSON payloads between request handlers and background workers.
//
// Two backends share one interface:
//
//	MemoryQueue  bounded channel, lost on restart
//	RedisQueue   Redis list, survives restarts and is shared by replicas
//
// Payloads that a worker gives up on go to a DeadLetterQueue.
package queue

import (
	"context"
	"time"
)

// Queue holds opaque payloads in FIFO order
type Queue interface {
	// Enqueue adds a payload without waiting for room; a full queue returns ErrQueueFull
	Enqueue(ctx context.Context, payload []byte) error

	// DequeueWithTimeout waits up to timeout for the first payload, then takes
	// whatever else is immediately available, up to maxItems in total.
	// An empty result means the timeout elapsed.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([][]byte, error)

	// Length returns the number of queued payloads
	Length(ctx context.Context) (int, error)

	Close() error
}

// DeadLetterQueue keeps payloads that could not be processed
type DeadLetterQueue interface {
	Add(ctx context.Context, payload []byte, cause error) error
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)
	Remove(ctx context.Context, id string) error
	Length(ctx context.Context) (int, error)
	Close() error
}

// DeadLetterItem is a failed payload and the last error it produced
type DeadLetterItem struct {
	ID        string    `json:"id"`
	Payload   []byte    `json:"payload"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Config controls how a worker drains a queue
type Config struct {
	Name         string
	Capacity     int           // memory backend only
	BatchSize    int           // maximum payloads handed to the worker at once
	BatchTimeout time.Duration // how long to wait for a partial batch
	MaxRetries   int
	RetryBackoff time.Duration // doubled after every failed attempt
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig(name string) *Config {
	return &Config{
		Name:         name,
		Capacity:     1000,
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Second,
	}
}

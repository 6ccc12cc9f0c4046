package queue

import "errors"

var (
	// ErrQueueClosed is returned when operating on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueFull is returned when a bounded queue has no room
	ErrQueueFull = errors.New("queue is full")

	// ErrMaxRetriesExceeded is returned when a worker gives up on a batch
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrItemNotFound is returned when a dead letter item does not exist
	ErrItemNotFound = errors.New("item not found")
)

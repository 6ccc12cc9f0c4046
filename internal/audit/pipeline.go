package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mindmix/internal/queue"
)

// Pipeline is a Recorder that buffers events in a queue and writes them
// to a Sink in batches. Batches that keep failing go to the dead letter queue.
type Pipeline struct {
	queue  queue.Queue
	dlq    queue.DeadLetterQueue
	sink   Sink
	config *queue.Config
	logger *zap.Logger

	dropped  atomic.Int64
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// NewPipeline wires a queue to a sink. dlq may be nil.
func NewPipeline(q queue.Queue, dlq queue.DeadLetterQueue, sink Sink, config *queue.Config, logger *zap.Logger) *Pipeline {
	if config == nil {
		config = queue.DefaultConfig("audit")
	}
	return &Pipeline{
		queue:  q,
		dlq:    dlq,
		sink:   sink,
		config: config,
		logger: logger.Named("audit"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Record enqueues the event. Events that cannot be queued are dropped and counted.
func (p *Pipeline) Record(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.dropped.Add(1)
		p.logger.Error("failed to encode audit event", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	if err := p.queue.Enqueue(ctx, data); err != nil {
		p.dropped.Add(1)
		p.logger.Warn("dropping audit event", zap.String("event_id", ev.ID), zap.Error(err))
	}
}

// Dropped returns how many events were never queued
func (p *Pipeline) Dropped() int64 {
	return p.dropped.Load()
}

// Stats is a snapshot of the pipeline backlog
type Stats struct {
	Queued       int   `json:"queued"`
	DeadLettered int   `json:"dead_lettered"`
	Dropped      int64 `json:"dropped"`
}

// Stats reports queued, dead-lettered and dropped event counts
func (p *Pipeline) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Dropped: p.Dropped()}
	n, err := p.queue.Length(ctx)
	if err != nil {
		return st, err
	}
	st.Queued = n
	if p.dlq != nil {
		if st.DeadLettered, err = p.dlq.Length(ctx); err != nil {
			return st, err
		}
	}
	return st, nil
}

// Redrive moves dead-lettered events back onto the queue so they get
// another chance at the sink. Payloads that are not events stay put.
func (p *Pipeline) Redrive(ctx context.Context) (int, error) {
	if p.dlq == nil {
		return 0, nil
	}
	items, err := p.dlq.List(ctx, 0)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, item := range items {
		var ev Event
		if err := json.Unmarshal(item.Payload, &ev); err != nil {
			continue
		}
		if err := p.queue.Enqueue(ctx, item.Payload); err != nil {
			return moved, err
		}
		if err := p.dlq.Remove(ctx, item.ID); err != nil {
			p.logger.Warn("redriven audit event left in dead letter queue", zap.String("item_id", item.ID), zap.Error(err))
		}
		moved++
	}
	return moved, nil
}

// Start runs the worker until Stop is called or ctx ends
func (p *Pipeline) Start(ctx context.Context) {
	go p.run(ctx)
}

// Stop flushes queued events and closes the sink.
// ctx bounds how long the flush may take.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		if err := p.queue.Close(); err != nil {
			p.logger.Warn("failed to close audit queue", zap.Error(err))
		}

		select {
		case <-p.doneCh:
		case <-ctx.Done():
			p.stopErr = fmt.Errorf("audit flush interrupted: %w", ctx.Err())
		}

		if err := p.sink.Close(); err != nil && p.stopErr == nil {
			p.stopErr = fmt.Errorf("failed to close audit sink: %w", err)
		}
		if p.dlq != nil {
			if err := p.dlq.Close(); err != nil && p.stopErr == nil {
				p.stopErr = fmt.Errorf("failed to close dead letter queue: %w", err)
			}
		}
	})
	return p.stopErr
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.doneCh)

	if n, err := p.Redrive(ctx); err != nil {
		p.logger.Warn("failed to redrive dead-lettered audit events", zap.Int("moved", n), zap.Error(err))
	} else if n > 0 {
		p.logger.Info("redrove dead-lettered audit events", zap.Int("count", n))
	}

	for {
		select {
		case <-p.stopCh:
			p.drain(ctx)
			return
		case <-ctx.Done():
			return
		default:
		}

		if _, err := p.processBatch(ctx, p.config.BatchTimeout); err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || errors.Is(err, context.Canceled) {
				continue
			}
			p.logger.Error("failed to dequeue audit events", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-p.stopCh:
			case <-ctx.Done():
			}
		}
	}
}

// drain flushes what is already queued without waiting for more
func (p *Pipeline) drain(ctx context.Context) {
	for {
		n, err := p.processBatch(ctx, 10*time.Millisecond)
		if err != nil || n == 0 {
			return
		}
	}
}

// processBatch handles one dequeued batch and returns how many payloads it took
func (p *Pipeline) processBatch(ctx context.Context, timeout time.Duration) (int, error) {
	payloads, err := p.queue.DequeueWithTimeout(ctx, p.config.BatchSize, timeout)
	if err != nil {
		return 0, err
	}
	if len(payloads) == 0 {
		return 0, nil
	}

	events := make([]Event, 0, len(payloads))
	kept := make([][]byte, 0, len(payloads))
	for _, payload := range payloads {
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			p.deadLetter(ctx, payload, fmt.Errorf("malformed audit event: %w", err))
			continue
		}
		events = append(events, ev)
		kept = append(kept, payload)
	}
	if len(events) == 0 {
		return len(payloads), nil
	}

	if err := p.write(ctx, events); err != nil {
		p.logger.Error("audit batch moved to dead letter queue", zap.Int("count", len(kept)), zap.Error(err))
		for _, payload := range kept {
			p.deadLetter(ctx, payload, err)
		}
		return len(payloads), nil
	}

	p.logger.Debug("wrote audit batch", zap.Int("count", len(events)))
	return len(payloads), nil
}

// write retries with exponential backoff
func (p *Pipeline) write(ctx context.Context, events []Event) error {
	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := p.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			}
		}

		if lastErr = p.sink.WriteBatch(ctx, events); lastErr == nil {
			return nil
		}
		p.logger.Warn("audit write failed", zap.Int("attempt", attempt), zap.Error(lastErr))
	}
	return fmt.Errorf("%w: %v", queue.ErrMaxRetriesExceeded, lastErr)
}

func (p *Pipeline) deadLetter(ctx context.Context, payload []byte, cause error) {
	if p.dlq == nil {
		return
	}
	if err := p.dlq.Add(ctx, payload, cause); err != nil {
		p.logger.Error("failed to add to dead letter queue", zap.Error(err))
	}
}

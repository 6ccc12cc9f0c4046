package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink persists batches of events
type Sink interface {
	WriteBatch(ctx context.Context, events []Event) error
	Close() error
}

// encodeLines renders events as JSON Lines
func encodeLines(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return nil, fmt.Errorf("failed to encode event %s: %w", events[i].ID, err)
		}
	}
	return buf.Bytes(), nil
}

// FileSink appends JSON Lines to a size-rotated local file
type FileSink struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
}

// NewFileSink writes to path, rotating at maxSizeMB
func NewFileSink(path string, maxSizeMB int) *FileSink {
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	return &FileSink{
		writer: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: 10,
			Compress:   true,
		},
	}
}

// WriteBatch appends the batch in a single write
func (s *FileSink) WriteBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	data, err := encodeLines(events)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write audit file: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Close()
}

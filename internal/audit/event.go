// Package audit keeps a metadata trail of submitted questions.
// Events never contain question or answer text.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcome is how a submission ended
type Outcome string

const (
	OutcomeAnswered      Outcome = "answered"
	OutcomeRejected      Outcome = "rejected"    // provider returned a non-success status
	OutcomeUnavailable   Outcome = "unavailable" // provider could not be reached
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
	OutcomeSaveFailed    Outcome = "save_failed"
)

// Event describes one submission
type Event struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	UserID         string    `json:"user_id"`
	Subject        string    `json:"subject"`
	Task           string    `json:"task"`
	AnswerLanguage string    `json:"answer_language"`
	Outcome        Outcome   `json:"outcome"`
	StatusCode     int       `json:"status_code,omitempty"`
	Provider       string    `json:"provider,omitempty"`
	Model          string    `json:"model,omitempty"`
	ProviderMs     int64     `json:"provider_ms,omitempty"`
	InputTokens    int       `json:"input_tokens,omitempty"`
	OutputTokens   int       `json:"output_tokens,omitempty"`
}

// NewEvent returns an event with a fresh ID
func NewEvent(userID string, outcome Outcome, now time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: now.UTC(),
		UserID:    userID,
		Outcome:   outcome,
	}
}

// Recorder accepts events. Record never blocks the caller on delivery.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// NopRecorder discards events
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, ev Event) {}

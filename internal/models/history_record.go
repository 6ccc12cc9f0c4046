package models

import (
	"time"

	"github.com/google/uuid"
)

// HistoryRecord is one persisted question/answer exchange.
// Records are written once after a successful inference call and never updated.
type HistoryRecord struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Subject   string    `db:"subject" json:"subject"`
	Task      string    `db:"task" json:"task"`
	Question  string    `db:"question" json:"question"`
	Answer    string    `db:"answer" json:"answer"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewHistoryRecord builds a record stamped with the given time in UTC
func NewHistoryRecord(userID, subject, task, question, answer string, now time.Time) *HistoryRecord {
	return &HistoryRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Subject:   subject,
		Task:      task,
		Question:  question,
		Answer:    answer,
		CreatedAt: now.UTC(),
	}
}

// Day returns the UTC calendar date of the record, as shown in the history list
func (r HistoryRecord) Day() string {
	return r.CreatedAt.UTC().Format("2006-01-02")
}

// StartOfUTCDay returns midnight UTC of the day containing t
func StartOfUTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

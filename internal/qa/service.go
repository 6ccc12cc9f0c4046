package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mindmix/internal/audit"
	"mindmix/internal/models"
	"mindmix/internal/prompts"
	"mindmix/internal/providers"
	"mindmix/internal/session"
	"mindmix/internal/storage"
)

// DefaultDailyLimit is the number of questions a user may ask per UTC day
const DefaultDailyLimit = 80

// SubmitRequest is one question from the Q&A form
type SubmitRequest struct {
	Subject        string `json:"subject"`
	Task           string `json:"task"`
	Question       string `json:"question"`
	AnswerLanguage string `json:"answer_language"`
}

// Answer is the outcome of a submitted question.
// Failed answers carry the localized failure text and are never persisted.
type Answer struct {
	Text       string                `json:"text"`
	Persisted  bool                  `json:"persisted"`
	Failed     bool                  `json:"failed"`
	StatusCode int                   `json:"status_code"`
	Record     *models.HistoryRecord `json:"record,omitempty"`
}

// Usage is the user's question count for the current UTC day
type Usage struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// Service enforces the daily quota, calls the inference provider and records history
type Service struct {
	history  storage.HistoryRepository
	provider providers.Provider
	prompts  *prompts.Table
	limit    int
	logger   *zap.Logger
	recorder audit.Recorder
	now      func() time.Time
}

// NewService creates a Q&A service. A limit <= 0 uses DefaultDailyLimit.
func NewService(history storage.HistoryRepository, provider providers.Provider, table *prompts.Table, limit int, logger *zap.Logger) *Service {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &Service{
		history:  history,
		provider: provider,
		prompts:  table,
		limit:    limit,
		logger:   logger,
		recorder: audit.NopRecorder{},
		now:      time.Now,
	}
}

// SetRecorder sends a metadata event for every submission that reaches the quota check
func (s *Service) SetRecorder(r audit.Recorder) {
	if r == nil {
		r = audit.NopRecorder{}
	}
	s.recorder = r
}

func (s *Service) record(ctx context.Context, sess *session.Session, req SubmitRequest, outcome audit.Outcome, resp *providers.ChatResponse, now time.Time) {
	ev := audit.NewEvent(sess.UserID, outcome, now)
	ev.Subject = req.Subject
	ev.Task = req.Task
	ev.AnswerLanguage = NormalizeLanguage(req.AnswerLanguage)
	if resp != nil {
		ev.StatusCode = resp.StatusCode
		ev.Provider = s.provider.Name()
		ev.Model = resp.Model
		ev.ProviderMs = resp.ProviderLatency.Milliseconds()
		ev.InputTokens = resp.InputTokens
		ev.OutputTokens = resp.OutputTokens
	}
	s.recorder.Record(ctx, ev)
}

// Prompts returns the prompt table offered to the user
func (s *Service) Prompts() *prompts.Table {
	return s.prompts
}

// Limit returns the daily question limit
func (s *Service) Limit() int {
	return s.limit
}

// Submit answers one question for the session's user.
// No inference call is made once the user has reached the daily limit.
// An answer returned together with an error was generated but not stored.
func (s *Service) Submit(ctx context.Context, sess *session.Session, req SubmitRequest) (*Answer, error) {
	if !sess.Valid() {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyQuestion
	}

	now := s.now().UTC()
	since := models.StartOfUTCDay(now)
	logger := s.logger.With(zap.String("user_id", sess.UserID))

	used, err := s.history.CountSince(ctx, sess.UserID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count today's questions: %w", err)
	}
	if used >= s.limit {
		logger.Info("daily limit reached", zap.Int("used", used), zap.Int("limit", s.limit))
		s.record(ctx, sess, req, audit.OutcomeQuotaExceeded, nil, now)
		return nil, ErrQuotaExceeded
	}

	userPrompt, err := s.prompts.Render(req.Subject, req.Task, req.Question)
	if err != nil {
		if errors.Is(err, prompts.ErrUnknownPrompt) {
			return nil, fmt.Errorf("%w: %s/%s", ErrUnknownPrompt, req.Subject, req.Task)
		}
		return nil, err
	}

	lang := NormalizeLanguage(req.AnswerLanguage)
	resp, err := s.provider.Chat(ctx, providers.ChatRequest{
		SystemPrompt: SystemPrompt(lang),
		UserPrompt:   userPrompt,
	})
	if err != nil {
		logger.Error("inference request failed", zap.String("provider", s.provider.Name()), zap.Error(err))
		s.record(ctx, sess, req, audit.OutcomeUnavailable, nil, now)
		return nil, fmt.Errorf("%w: %v", ErrInferenceUnavailable, err)
	}

	if !resp.Succeeded() {
		logger.Warn("inference request rejected",
			zap.String("provider", s.provider.Name()),
			zap.Int("status_code", resp.StatusCode),
		)
		s.record(ctx, sess, req, audit.OutcomeRejected, resp, now)
		return &Answer{
			Text:       FailureText(lang, resp.StatusCode),
			Failed:     true,
			StatusCode: resp.StatusCode,
		}, nil
	}

	answer := &Answer{Text: resp.Content, StatusCode: resp.StatusCode}
	rec := models.NewHistoryRecord(sess.UserID, req.Subject, req.Task, req.Question, resp.Content, now)

	if err := s.persist(ctx, rec, since); err != nil {
		if errors.Is(err, storage.ErrQuotaExceeded) {
			// returned unsaved
			logger.Info("daily limit reached by a concurrent request")
			s.record(ctx, sess, req, audit.OutcomeQuotaExceeded, resp, now)
			return answer, ErrQuotaExceeded
		}
		logger.Error("failed to save history record", zap.Error(err))
		s.record(ctx, sess, req, audit.OutcomeSaveFailed, resp, now)
		return answer, fmt.Errorf("failed to save history record: %w", err)
	}

	logger.Info("question answered",
		zap.String("subject", req.Subject),
		zap.String("task", req.Task),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
		zap.Duration("latency", resp.ProviderLatency),
	)

	s.record(ctx, sess, req, audit.OutcomeAnswered, resp, now)
	answer.Persisted = true
	answer.Record = rec
	return answer, nil
}

func (s *Service) persist(ctx context.Context, rec *models.HistoryRecord, since time.Time) error {
	if q, ok := s.history.(storage.QuotaInserter); ok {
		return q.InsertWithinQuota(ctx, rec, since, s.limit)
	}
	return s.history.Insert(ctx, rec)
}

// History returns every record owned by the session's user, newest first
func (s *Service) History(ctx context.Context, sess *session.Session) ([]models.HistoryRecord, error) {
	if !sess.Valid() {
		return nil, ErrUnauthenticated
	}

	records, err := s.history.ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	owned := make([]models.HistoryRecord, 0, len(records))
	for _, r := range records {
		if r.UserID == sess.UserID {
			owned = append(owned, r)
		}
	}
	return owned, nil
}

// Usage returns how many questions the session's user has asked today
func (s *Service) Usage(ctx context.Context, sess *session.Session) (*Usage, error) {
	if !sess.Valid() {
		return nil, ErrUnauthenticated
	}

	used, err := s.history.CountSince(ctx, sess.UserID, models.StartOfUTCDay(s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to count today's questions: %w", err)
	}

	remaining := s.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &Usage{Used: used, Limit: s.limit, Remaining: remaining}, nil
}

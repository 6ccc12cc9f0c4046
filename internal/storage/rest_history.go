package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mindmix/internal/models"
)

const restTimeout = 30 * time.Second

// RESTConfig holds settings for the PostgREST backend
type RESTConfig struct {
	BaseURL    string // project URL, e.g. https://xyz.supabase.co
	ServiceKey string // service-role key; bypasses row-level security
	Table      string
	Timeout    time.Duration
}

// RESTHistoryRepository talks to the hosted database's REST interface.
// It cannot make count+insert atomic, so it does not implement QuotaInserter.
type RESTHistoryRepository struct {
	endpoint   string
	serviceKey string
	client     *http.Client
}

// NewRESTHistoryRepository creates a new REST-backed repository
func NewRESTHistoryRepository(cfg RESTConfig) (*RESTHistoryRepository, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required for REST history backend")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("service key is required for REST history backend")
	}
	table := cfg.Table
	if table == "" {
		table = "history"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = restTimeout
	}

	return &RESTHistoryRepository{
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/rest/v1/" + table,
		serviceKey: cfg.ServiceKey,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// restColumns are the columns the table is required to have. Any id column is
// owned by the database and left alone.
const restColumns = "user_id,subject,task,question,answer,created_at"

// restRow is the wire shape of a history row
type restRow struct {
	UserID    string   `json:"user_id"`
	Subject   string   `json:"subject"`
	Task      string   `json:"task"`
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	CreatedAt restTime `json:"created_at"`
}

// restTime accepts timestamps with or without a zone offset; zone-less values are UTC.
type restTime struct {
	time.Time
}

func (t restTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *restTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	parsed, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// Insert writes a new record
func (r *RESTHistoryRepository) Insert(ctx context.Context, rec *models.HistoryRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	prepareRecord(rec)

	body, err := json.Marshal(restRow{
		UserID:    rec.UserID,
		Subject:   rec.Subject,
		Task:      rec.Task,
		Question:  rec.Question,
		Answer:    rec.Answer,
		CreatedAt: restTime{rec.CreatedAt},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	req, err := r.newRequest(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}
	return nil
}

// CountSince counts the user's records created at or after since, using an exact-count HEAD request
func (r *RESTHistoryRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	q := url.Values{}
	q.Set("select", "user_id")
	q.Set("user_id", "eq."+userID)
	q.Set("created_at", "gte."+since.UTC().Format(time.RFC3339))

	req, err := r.newRequest(ctx, http.MethodHead, r.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to count history records: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return 0, fmt.Errorf("failed to count history records: %w", err)
	}

	count, err := parseContentRangeTotal(resp.Header.Get("Content-Range"))
	if err != nil {
		return 0, fmt.Errorf("failed to count history records: %w", err)
	}
	return count, nil
}

// ListByUser returns all of the user's records, newest first
func (r *RESTHistoryRepository) ListByUser(ctx context.Context, userID string) ([]models.HistoryRecord, error) {
	q := url.Values{}
	q.Set("select", restColumns)
	q.Set("user_id", "eq."+userID)
	q.Set("order", "created_at.desc")

	req, err := r.newRequest(ctx, http.MethodGet, r.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list history records: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("failed to list history records: %w", err)
	}

	var rows []restRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode history records: %w", err)
	}

	records := make([]models.HistoryRecord, 0, len(rows))
	for _, row := range rows {
		// the filter is applied server-side; re-check so a misconfigured view cannot leak rows
		if row.UserID != userID {
			continue
		}
		records = append(records, models.HistoryRecord{
			UserID:    row.UserID,
			Subject:   row.Subject,
			Task:      row.Task,
			Question:  row.Question,
			Answer:    row.Answer,
			CreatedAt: row.CreatedAt.Time,
		})
	}
	return records, nil
}

func (r *RESTHistoryRepository) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", r.serviceKey)
	req.Header.Set("Authorization", "Bearer "+r.serviceKey)
	return req, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%w: status=%d, body=%s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
}

// parseContentRangeTotal reads N from "0-9/N" or "*/N"
func parseContentRangeTotal(header string) (int, error) {
	i := strings.LastIndex(header, "/")
	if i < 0 || i == len(header)-1 {
		return 0, fmt.Errorf("missing total in Content-Range %q", header)
	}
	total := header[i+1:]
	if total == "*" {
		return 0, fmt.Errorf("server did not return an exact count in Content-Range %q", header)
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("invalid Content-Range %q: %w", header, err)
	}
	return n, nil
}

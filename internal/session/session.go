package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"mindmix/internal/models"
)

var (
	// ErrNotFound is returned when a session id is unknown or expired
	ErrNotFound = errors.New("session not found")
	// ErrInvalidSession is returned when saving a session without both tokens
	ErrInvalidSession = errors.New("session requires user id and both tokens")
)

// Session is a logged-in user's verified identity and token pair.
// It is keyed in the store by ID, which is the only value sent to the browser.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// New builds a session from an accepted token pair with a fresh opaque id
func New(auth *models.AuthSession, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:           uuid.NewString(),
		UserID:       auth.User.ID,
		Email:        auth.User.Email,
		AccessToken:  auth.AccessToken,
		RefreshToken: auth.RefreshToken,
		CreatedAt:    now.UTC(),
		ExpiresAt:    now.UTC().Add(ttl),
	}
}

// Valid reports whether the session has an owner and both tokens
func (s *Session) Valid() bool {
	return s != nil && s.ID != "" && s.UserID != "" && s.AccessToken != "" && s.RefreshToken != ""
}

// Store holds sessions between requests
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

package session

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"mindmix/internal/models"
)

// Query parameters written by the OAuth callback page
const (
	ParamAccessToken  = "access_token"
	ParamRefreshToken = "refresh_token"
	ParamReload       = "reload"
)

// tokenParams are stripped from the URL after reconciliation
var tokenParams = []string{
	ParamAccessToken,
	ParamRefreshToken,
	ParamReload,
	"expires_in",
	"expires_at",
	"token_type",
	"provider_token",
	"provider_refresh_token",
	"type",
}

// Exchanger verifies a token pair with the auth service
type Exchanger interface {
	Exchange(ctx context.Context, accessToken, refreshToken string) (*models.AuthSession, error)
}

// Outcome is the result of reconciling a request with the current session
type Outcome struct {
	Session  *Session   // nil when the request is unauthenticated
	Created  bool       // Session was established by this request and saved
	Redirect bool       // caller should redirect to the URL with Query as its query string
	Query    url.Values // the request query without token parameters
	Err      error      // non-fatal exchange failure to show as a warning
}

// Reconciler turns a token pair in the request query into a stored session
type Reconciler struct {
	exchanger Exchanger
	store     Store
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewReconciler creates a reconciler saving new sessions to store for ttl
func NewReconciler(exchanger Exchanger, store Store, ttl time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		exchanger: exchanger,
		store:     store,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// Reconcile is a no-op for an existing session apart from stripping tokens from the URL.
// Without a session, a complete token pair is exchanged and, if accepted, saved as a new session.
func (r *Reconciler) Reconcile(ctx context.Context, current *Session, query url.Values) Outcome {
	out := Outcome{Session: current, Query: stripTokens(query)}
	out.Redirect = hasAny(query, tokenParams)

	if current != nil {
		return out
	}

	access, refresh := query.Get(ParamAccessToken), query.Get(ParamRefreshToken)
	if access == "" || refresh == "" {
		return out
	}

	authSession, err := r.exchanger.Exchange(ctx, access, refresh)
	if err != nil {
		r.logger.Warn("token exchange failed", zap.Error(err))
		out.Err = err
		return out
	}

	s := New(authSession, r.now(), r.ttl)
	if err := r.store.Save(ctx, s); err != nil {
		r.logger.Error("failed to save session", zap.String("user_id", s.UserID), zap.Error(err))
		out.Err = fmt.Errorf("failed to save session: %w", err)
		return out
	}

	r.logger.Info("session restored from tokens", zap.String("user_id", s.UserID))
	out.Session = s
	out.Created = true
	return out
}

func stripTokens(query url.Values) url.Values {
	clean := url.Values{}
	for k, v := range query {
		clean[k] = append([]string(nil), v...)
	}
	for _, k := range tokenParams {
		clean.Del(k)
	}
	return clean
}

func hasAny(query url.Values, keys []string) bool {
	for _, k := range keys {
		if query.Has(k) {
			return true
		}
	}
	return false
}

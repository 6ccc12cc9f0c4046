package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mindmix/internal/models"
)

const defaultTimeout = 60 * time.Second

// ClientConfig holds auth service settings
type ClientConfig struct {
	BaseURL   string // project URL; endpoints live under /auth/v1
	AnonKey   string
	JWTSecret string
	Timeout   time.Duration
}

// Client talks to the hosted auth service's REST API
type Client struct {
	baseURL   string
	anonKey   string
	jwtSecret []byte
	client    *http.Client
	now       func() time.Time
}

// NewClient creates a new auth client
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/") + "/auth/v1",
		anonKey:   cfg.AnonKey,
		jwtSecret: []byte(cfg.JWTSecret),
		client:    &http.Client{Timeout: timeout},
		now:       time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         models.User `json:"user"`
}

func (t *tokenResponse) session(now time.Time) (*models.AuthSession, error) {
	if t.AccessToken == "" || t.RefreshToken == "" {
		return nil, ErrMissingTokens
	}
	s := &models.AuthSession{
		User:         t.User,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	}
	return s, nil
}

// SignInWithPassword exchanges email and password for a token pair
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	var resp tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &resp); err != nil {
		return nil, err
	}
	return resp.session(c.now())
}

// Refresh trades a refresh token for a new token pair
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.AuthSession, error) {
	if refreshToken == "" {
		return nil, ErrMissingTokens
	}
	var resp tokenResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &resp); err != nil {
		return nil, err
	}
	return resp.session(c.now())
}

// GetUser returns the identity owning an access token
func (c *Client) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: auth service returned no user", ErrInvalidCredentials)
	}
	return &user, nil
}

// Exchange verifies a token pair delivered to the browser and returns the live session.
// The refresh token is always redeemed, so a pair is only accepted when the auth
// service honours both halves, and the rotated pair replaces the one supplied.
func (c *Client) Exchange(ctx context.Context, accessToken, refreshToken string) (*models.AuthSession, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, ErrMissingTokens
	}

	claims, err := ParseAccessToken(accessToken, c.jwtSecret)
	if err != nil {
		return nil, err
	}

	s, err := c.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if s.User.ID == "" {
		user, err := c.GetUser(ctx, s.AccessToken)
		if err != nil {
			return nil, err
		}
		s.User = *user
	}
	if s.User.ID != claims.Subject {
		return nil, fmt.Errorf("%w: refresh token belongs to another user", ErrInvalidCredentials)
	}
	return s, nil
}

// SignUp registers a new account. Depending on the project settings the account
// may need email confirmation before it can sign in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	var resp struct {
		models.User
		Session *tokenResponse `json:"session"`
		Nested  *models.User   `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/signup", "", body, &resp); err != nil {
		return nil, err
	}

	user := resp.User
	if resp.Nested != nil && resp.Nested.ID != "" {
		user = *resp.Nested
	}
	if user.Email == "" {
		user.Email = email
	}
	return &user, nil
}

// SignOut revokes the session owning accessToken
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

// AuthorizeURL builds the address that starts an OAuth login with provider
// and returns the browser to redirectTo
func (c *Client) AuthorizeURL(provider, redirectTo string) string {
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	return c.baseURL + "/authorize?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth service request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read auth service response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		msg := eb.text()
		if msg == "" {
			msg = fmt.Sprintf("auth service returned status %d", resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode auth service response: %w", err)
	}
	return nil
}

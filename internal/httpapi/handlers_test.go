package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindmix/internal/audit"
	"mindmix/internal/auth"
	"mindmix/internal/config"
	"mindmix/internal/models"
	"mindmix/internal/prompts"
	"mindmix/internal/providers"
	"mindmix/internal/qa"
	"mindmix/internal/ratelimit"
	"mindmix/internal/session"
	"mindmix/internal/storage"
	"mindmix/internal/web"
)

type fakeAuth struct {
	mu          sync.Mutex
	signInCalls int
	signUpCalls int
	signOuts    []string
	signInErr   error
	signUpErr   error
	exchangeErr error
}

func (f *fakeAuth) Exchange(ctx context.Context, access, refresh string) (*models.AuthSession, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &models.AuthSession{
		User:         models.User{ID: "oauth-user", Email: "oauth@example.com"},
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (f *fakeAuth) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signInCalls++
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &models.AuthSession{
		User:         models.User{ID: "user-1", Email: email},
		AccessToken:  "acc",
		RefreshToken: "ref",
	}, nil
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUpCalls++
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return &models.User{ID: "user-new", Email: email}, nil
}

func (f *fakeAuth) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts = append(f.signOuts, accessToken)
	return errors.New("already signed out")
}

func (f *fakeAuth) AuthorizeURL(provider, redirectTo string) string {
	return "https://x.supabase.co/auth/v1/authorize?" + url.Values{"provider": {provider}, "redirect_to": {redirectTo}}.Encode()
}

type fakeProvider struct {
	calls   int
	status  int
	content string
	err     error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &providers.ChatResponse{StatusCode: status, Content: f.content}, nil
}

func (f *fakeProvider) Close() error { return nil }

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string) (bool, error) { return false, nil }
func (denyLimiter) Reset(ctx context.Context, key string) error { return nil }

// countingLimiter allows everything and records resets
type countingLimiter struct {
	resets []string
}

func (l *countingLimiter) Allow(ctx context.Context, key string) (bool, error) { return true, nil }
func (l *countingLimiter) Reset(ctx context.Context, key string) error {
	l.resets = append(l.resets, key)
	return nil
}

// staleCountHistory answers the quota check with an outdated count
type staleCountHistory struct {
	*storage.MemoryHistoryRepository
	count int
}

func (s *staleCountHistory) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return s.count, nil
}

type testEnv struct {
	deps     *Dependencies
	handler  http.Handler
	auth     *fakeAuth
	provider *fakeProvider
	history  *storage.MemoryHistoryRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		AppURL: "https://app.example.com",
		Supabase: config.SupabaseConfig{
			URL:           "https://x.supabase.co",
			OAuthProvider: "google",
		},
		Session: config.SessionConfig{CookieName: "mindmix_session", TTL: time.Hour, CacheSize: 100},
		Quota:   config.QuotaConfig{DailyLimit: 80},
	}

	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	env := &testEnv{
		auth:     &fakeAuth{},
		provider: &fakeProvider{content: "The answer is four."},
		history:  storage.NewMemoryHistoryRepository(),
	}
	logger := zap.NewNop()
	store := session.NewMemoryStore(100)

	env.deps = &Dependencies{
		Config:     cfg,
		Logger:     logger,
		Auth:       env.auth,
		Sessions:   store,
		Reconciler: session.NewReconciler(env.auth, store, cfg.Session.TTL, logger),
		QA:         qa.NewService(env.history, env.provider, prompts.Builtin(), cfg.Quota.DailyLimit, logger),
		Throttle:   ratelimit.NewNoopLimiter(),
		Renderer:   renderer,
		Health:     map[string]HealthCheck{},
	}
	env.handler = NewHandler(env.deps)
	return env
}

func (e *testEnv) signIn(t *testing.T, userID string) *http.Cookie {
	t.Helper()
	sess := session.New(&models.AuthSession{
		User:         models.User{ID: userID, Email: userID + "@example.com"},
		AccessToken:  "acc-" + userID,
		RefreshToken: "ref-" + userID,
	}, time.Now(), time.Hour)
	require.NoError(t, e.deps.Sessions.Save(context.Background(), sess))
	return &http.Cookie{Name: "mindmix_session", Value: sess.ID}
}

func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestIndex_ShowsGateWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "🔐 登入或註冊")
	assert.Contains(t, w.Body.String(), `action="/login"`)
}

func TestIndex_UnknownSessionCookieShowsGate(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil), &http.Cookie{Name: "mindmix_session", Value: "stale"})

	assert.Contains(t, w.Body.String(), "🔐 登入或註冊")
	c := findCookie(w, "mindmix_session")
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
}

func TestLogin(t *testing.T) {
	t.Run("empty fields make no call", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(postForm("/login", url.Values{"email": {"a@example.com"}}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "請輸入 Email 和密碼")
		assert.Equal(t, 0, env.auth.signInCalls)
	})

	t.Run("success installs a session", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(postForm("/login", url.Values{"email": {"a@example.com"}, "password": {"pw"}}))

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))
		c := findCookie(w, "mindmix_session")
		require.NotNil(t, c)
		assert.True(t, c.HttpOnly)

		page := env.do(httptest.NewRequest(http.MethodGet, "/", nil), c)
		assert.Equal(t, http.StatusOK, page.Code)
		assert.Contains(t, page.Body.String(), "👤 a@example.com")
		assert.Contains(t, page.Body.String(), "📚 MindMix AI")
	})

	t.Run("success clears the login throttle for the client", func(t *testing.T) {
		env := newTestEnv(t)
		limiter := &countingLimiter{}
		env.deps.Throttle = limiter

		w := env.do(postForm("/login", url.Values{"email": {"a@example.com"}, "password": {"pw"}}))

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, []string{"192.0.2.1"}, limiter.resets)
	})

	t.Run("rejected credentials show the service message", func(t *testing.T) {
		env := newTestEnv(t)
		limiter := &countingLimiter{}
		env.deps.Throttle = limiter
		env.auth.signInErr = &auth.APIError{StatusCode: 400, Message: "Invalid login credentials"}

		w := env.do(postForm("/login", url.Values{"email": {"a@example.com"}, "password": {"bad"}}))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "登入失敗：Invalid login credentials")
		assert.Nil(t, findCookie(w, "mindmix_session"))
		assert.Empty(t, limiter.resets)
	})

	t.Run("throttled attempts make no call", func(t *testing.T) {
		env := newTestEnv(t)
		env.deps.Throttle = denyLimiter{}

		w := env.do(postForm("/login", url.Values{"email": {"a@example.com"}, "password": {"pw"}}))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, 0, env.auth.signInCalls)
	})
}

func TestSignup(t *testing.T) {
	t.Run("mismatching confirmation makes no call", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(postForm("/signup", url.Values{"email": {"b@example.com"}, "password": {"one"}, "confirm": {"two"}}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "密碼不一致")
		assert.Equal(t, 0, env.auth.signUpCalls)
	})

	t.Run("missing fields", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(postForm("/signup", url.Values{"email": {"b@example.com"}, "password": {"one"}}))

		assert.Contains(t, w.Body.String(), "請完整輸入所有欄位")
		assert.Equal(t, 0, env.auth.signUpCalls)
	})

	t.Run("success does not sign in", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(postForm("/signup", url.Values{"email": {"b@example.com"}, "password": {"pw"}, "confirm": {"pw"}}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "註冊成功，請登入")
		assert.Nil(t, findCookie(w, "mindmix_session"))
		assert.Equal(t, 1, env.auth.signUpCalls)
	})

	t.Run("service error", func(t *testing.T) {
		env := newTestEnv(t)
		env.auth.signUpErr = &auth.APIError{StatusCode: 422, Message: "User already registered"}

		w := env.do(postForm("/signup", url.Values{"email": {"b@example.com"}, "password": {"pw"}, "confirm": {"pw"}}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "User already registered")
	})
}

func TestOAuth(t *testing.T) {
	t.Run("renders the authorize link", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(httptest.NewRequest(http.MethodGet, "/login/oauth", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "https://x.supabase.co/auth/v1/authorize?provider=google")
		assert.Contains(t, body, url.QueryEscape("https://app.example.com/auth/callback"))
	})

	t.Run("missing return address shows an error", func(t *testing.T) {
		env := newTestEnv(t)
		env.deps.Config.AppURL = ""

		w := env.do(httptest.NewRequest(http.MethodGet, "/login/oauth", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "APP_URL 尚未設定")
		assert.NotContains(t, w.Body.String(), "/auth/v1/authorize")
	})

	t.Run("callback page rewrites the fragment", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(httptest.NewRequest(http.MethodGet, "/auth/callback", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "window.location.hash")
	})
}

func TestIndex_TokenExchange(t *testing.T) {
	t.Run("valid tokens", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(httptest.NewRequest(http.MethodGet, "/?access_token=acc&refresh_token=ref&reload=true", nil))

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))
		c := findCookie(w, "mindmix_session")
		require.NotNil(t, c)

		page := env.do(httptest.NewRequest(http.MethodGet, "/", nil), c)
		assert.Contains(t, page.Body.String(), "oauth@example.com")
	})

	t.Run("tampered tokens", func(t *testing.T) {
		env := newTestEnv(t)
		env.auth.exchangeErr = &auth.APIError{StatusCode: 400, Message: "Invalid Refresh Token"}

		w := env.do(httptest.NewRequest(http.MethodGet, "/?access_token=x&refresh_token=y", nil))

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Nil(t, findCookie(w, "mindmix_session"))
		flash := findCookie(w, flashCookie)
		require.NotNil(t, flash)

		page := env.do(httptest.NewRequest(http.MethodGet, "/", nil), flash)
		assert.Equal(t, http.StatusOK, page.Code)
		assert.Contains(t, page.Body.String(), "無法還原登入：Invalid Refresh Token")
		assert.Contains(t, page.Body.String(), "🔐 登入或註冊")
	})

	t.Run("existing session strips tokens without exchanging", func(t *testing.T) {
		env := newTestEnv(t)
		env.auth.exchangeErr = errors.New("must not be called")
		c := env.signIn(t, "user-1")

		w := env.do(httptest.NewRequest(http.MethodGet, "/?access_token=x&refresh_token=y&subject=Math", nil), c)

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/?subject=Math", w.Header().Get("Location"))
		assert.Nil(t, findCookie(w, flashCookie))
	})
}

func TestAsk(t *testing.T) {
	t.Run("answers and records", func(t *testing.T) {
		env := newTestEnv(t)
		c := env.signIn(t, "user-1")

		w := env.do(postForm("/ask", url.Values{
			"subject": {"Math"}, "task": {"Explain"}, "question": {"What is 2+2?"}, "answer_language": {"en"},
		}), c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "The answer is four.")
		assert.Contains(t, w.Body.String(), "Math - Explain - ")

		records, err := env.history.ListByUser(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "What is 2+2?", records[0].Question)
	})

	t.Run("requires a session", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(postForm("/ask", url.Values{"subject": {"Math"}, "task": {"Explain"}, "question": {"q"}}))

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, 0, env.provider.calls)
	})

	t.Run("quota reached", func(t *testing.T) {
		env := newTestEnv(t)
		c := env.signIn(t, "user-1")
		for i := 0; i < 80; i++ {
			require.NoError(t, env.history.Insert(context.Background(),
				models.NewHistoryRecord("user-1", "Math", "Solve", fmt.Sprint(i), "a", time.Now())))
		}

		w := env.do(postForm("/ask", url.Values{"subject": {"Math"}, "task": {"Explain"}, "question": {"q"}}), c)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "⚠️ 今日提問已達 80 次上限")
		assert.Equal(t, 0, env.provider.calls)
	})

	t.Run("quota taken by a concurrent request shows the unsaved answer", func(t *testing.T) {
		env := newTestEnv(t)
		for i := 0; i < 80; i++ {
			require.NoError(t, env.history.Insert(context.Background(),
				models.NewHistoryRecord("user-1", "Math", "Solve", fmt.Sprint(i), "a", time.Now())))
		}
		stale := &staleCountHistory{MemoryHistoryRepository: env.history, count: 79}
		env.deps.QA = qa.NewService(stale, env.provider, prompts.Builtin(), 80, zap.NewNop())
		c := env.signIn(t, "user-1")

		w := env.do(postForm("/ask", url.Values{"subject": {"Math"}, "task": {"Explain"}, "question": {"q"}}), c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "The answer is four.")
		assert.Contains(t, w.Body.String(), "本次回答未儲存")
		assert.Equal(t, 1, env.provider.calls)

		records, err := env.history.ListByUser(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Len(t, records, 80)
	})

	t.Run("inference failure is shown and not recorded", func(t *testing.T) {
		env := newTestEnv(t)
		env.provider.status = http.StatusInternalServerError
		c := env.signIn(t, "user-1")

		w := env.do(postForm("/ask", url.Values{"subject": {"Math"}, "task": {"Explain"}, "question": {"q"}}), c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "❌ 請求失敗（500）")
		records, _ := env.history.ListByUser(context.Background(), "user-1")
		assert.Empty(t, records)
	})

	t.Run("transport failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.provider.err = errors.New("connection refused")
		c := env.signIn(t, "user-1")

		w := env.do(postForm("/ask", url.Values{"subject": {"Math"}, "task": {"Explain"}, "question": {"q"}}), c)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "AI 服務暫時無法使用")
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	c := env.signIn(t, "user-1")

	w := env.do(httptest.NewRequest(http.MethodPost, "/logout", nil), c)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, []string{"acc-user-1"}, env.auth.signOuts, "sign-out errors are ignored")
	cleared := findCookie(w, "mindmix_session")
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	_, err := env.deps.Sessions.Get(context.Background(), c.Value)
	assert.ErrorIs(t, err, session.ErrNotFound)

	page := env.do(httptest.NewRequest(http.MethodGet, "/", nil), c)
	assert.Contains(t, page.Body.String(), "🔐 登入或註冊")
}

func TestLang(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/lang?l=en", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	lang := findCookie(w, langCookie)
	require.NotNil(t, lang)
	assert.Equal(t, "en", lang.Value)

	page := env.do(httptest.NewRequest(http.MethodGet, "/", nil), lang)
	assert.Contains(t, page.Body.String(), "🔐 Login or Sign Up")
}

func TestCookies_FollowSecureSetting(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Config.Session.CookieSecure = true
	env.auth.exchangeErr = &auth.APIError{StatusCode: 400, Message: "Invalid Refresh Token"}

	w := env.do(httptest.NewRequest(http.MethodGet, "/?access_token=x&refresh_token=y", nil))
	flash := findCookie(w, flashCookie)
	require.NotNil(t, flash)
	assert.True(t, flash.Secure)

	w = env.do(httptest.NewRequest(http.MethodGet, "/", nil), flash)
	cleared := findCookie(w, flashCookie)
	require.NotNil(t, cleared)
	assert.True(t, cleared.Secure)

	w = env.do(httptest.NewRequest(http.MethodGet, "/lang?l=en", nil))
	lang := findCookie(w, langCookie)
	require.NotNil(t, lang)
	assert.True(t, lang.Secure)
}

func TestAPIHistory(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.history.Insert(context.Background(), models.NewHistoryRecord("user-1", "Math", "Explain", "mine", "a", time.Now())))
	require.NoError(t, env.history.Insert(context.Background(), models.NewHistoryRecord("user-2", "Math", "Explain", "theirs", "a", time.Now())))

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/history", nil), env.signIn(t, "user-1"))
	require.Equal(t, http.StatusOK, w.Code)

	var records []models.HistoryRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "mine", records[0].Question)
}

func TestAPIAsk(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(env *testEnv)
		wantStatus int
		wantText   string
	}{
		{
			name:       "answered",
			body:       `{"subject":"Math","task":"Explain","question":"What is 2+2?","answer_language":"en"}`,
			wantStatus: http.StatusOK,
			wantText:   "The answer is four.",
		},
		{
			name:       "rejected by provider",
			body:       `{"subject":"Math","task":"Explain","question":"q","answer_language":"en"}`,
			setup:      func(env *testEnv) { env.provider.status = http.StatusInternalServerError },
			wantStatus: http.StatusOK,
			wantText:   "❌ Request failed (500)",
		},
		{
			name:       "unknown prompt",
			body:       `{"subject":"Math","task":"Dance","question":"q"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "user id cannot be supplied",
			body:       `{"subject":"Math","task":"Explain","question":"q","user_id":"user-2"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "provider unreachable",
			body:       `{"subject":"Math","task":"Explain","question":"q"}`,
			setup:      func(env *testEnv) { env.provider.err = errors.New("timeout") },
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(env)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := env.do(req, env.signIn(t, "user-1"))

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantText == "" {
				return
			}
			var resp struct {
				Answer qa.Answer `json:"answer"`
				Usage  qa.Usage  `json:"usage"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantText, resp.Answer.Text)
			assert.Equal(t, 80, resp.Usage.Limit)
		})
	}
}

func TestAPIUsage(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.history.Insert(context.Background(), models.NewHistoryRecord("user-1", "Math", "Explain", "q", "a", time.Now())))

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/usage", nil), env.signIn(t, "user-1"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"used":1,"limit":80,"remaining":79}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{}}`, w.Body.String())

	env.deps.Health["redis"] = func(ctx context.Context) error { return errors.New("connection refused") }
	w = env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestHealth_ReportsAuditStats(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Stats = map[string]StatsReporter{
		"audit": func(ctx context.Context) (interface{}, error) {
			return audit.Stats{Queued: 2, DeadLettered: 1, Dropped: 3}, nil
		},
		"broken": func(ctx context.Context) (interface{}, error) {
			return nil, errors.New("redis down")
		},
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{},"stats":{"audit":{"queued":2,"dead_lettered":1,"dropped":3}}}`, w.Body.String())
}

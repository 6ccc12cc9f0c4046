package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"mindmix/internal/audit"
	"mindmix/internal/auth"
	"mindmix/internal/config"
	"mindmix/internal/middleware"
	"mindmix/internal/models"
	"mindmix/internal/prompts"
	"mindmix/internal/providers"
	"mindmix/internal/qa"
	"mindmix/internal/queue"
	"mindmix/internal/ratelimit"
	"mindmix/internal/session"
	"mindmix/internal/storage"
	"mindmix/internal/web"
)

// AuthService is the subset of the auth client used by the handlers
type AuthService interface {
	session.Exchanger
	SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	SignOut(ctx context.Context, accessToken string) error
	AuthorizeURL(provider, redirectTo string) string
}

// HealthCheck reports whether a backing service is reachable
type HealthCheck func(ctx context.Context) error

// StatsReporter returns a JSON-encodable snapshot shown under /healthz
type StatsReporter func(ctx context.Context) (interface{}, error)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Config     *config.Config
	Logger     *zap.Logger
	Auth       AuthService
	Sessions   session.Store
	Reconciler *session.Reconciler
	QA         *qa.Service
	Throttle   ratelimit.Limiter
	Renderer   *web.Renderer
	Health     map[string]HealthCheck
	Stats      map[string]StatsReporter

	closers []func() error
}

// Close releases every connection opened by NewRouter
func (d *Dependencies) Close() error {
	var firstErr error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.closers = nil
	return firstErr
}

// NewRouter creates an HTTP handler with all dependencies wired up
func NewRouter(cfg *config.Config, logger *zap.Logger) (http.Handler, *Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		Health: make(map[string]HealthCheck),
		Stats:  make(map[string]StatsReporter),
	}

	fail := func(err error) (http.Handler, *Dependencies, error) {
		_ = deps.Close()
		return nil, nil, err
	}

	history, err := newHistoryRepository(cfg, deps)
	if err != nil {
		return fail(err)
	}

	table := prompts.Builtin()
	if cfg.PromptFile != "" {
		table, err = prompts.LoadFile(cfg.PromptFile)
		if err != nil {
			return fail(fmt.Errorf("failed to load prompts: %w", err))
		}
		logger.Info("loaded prompt table", zap.String("file", cfg.PromptFile), zap.Int("subjects", len(table.Subjects())))
	}

	provider, err := providers.NewOpenRouterProvider(providers.OpenRouterConfig{
		APIKey:  cfg.Inference.APIKey,
		BaseURL: cfg.Inference.BaseURL,
		Model:   cfg.Inference.Model,
		Timeout: cfg.Inference.Timeout,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize inference provider: %w", err))
	}
	deps.closers = append(deps.closers, provider.Close)
	logger.Info("inference provider ready", zap.String("provider", provider.Name()), zap.String("model", provider.Model()))

	var redisClient *storage.RedisClient
	if cfg.Redis.Address != "" {
		redisClient, err = storage.NewRedisClient(storage.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to initialize Redis: %w", err))
		}
		deps.closers = append(deps.closers, redisClient.Close)
		deps.Health["redis"] = redisClient.Ping

		store := session.NewRedisStore(redisClient.Client(), cfg.Session.KeyPrefix)
		if cfg.Session.EncryptionKey != "" {
			c, err := session.NewCipherFromBase64(cfg.Session.EncryptionKey)
			if err != nil {
				return fail(fmt.Errorf("invalid SESSION_ENCRYPTION_KEY: %w", err))
			}
			store.WithCipher(c)
		}
		deps.Sessions = store
		deps.Throttle = ratelimit.NewRateLimiter(redisClient.Client(), "mindmix:login:", cfg.Quota.LoginPerMinute, time.Minute)
	} else {
		logger.Warn("REDIS_ADDRESS not set; sessions are kept in memory and sign-in is not throttled")
		store := session.NewMemoryStore(cfg.Session.CacheSize)
		ctx, cancel := context.WithCancel(context.Background())
		store.StartCleanup(ctx, time.Minute)
		deps.closers = append(deps.closers, func() error { cancel(); return nil })

		deps.Sessions = store
		deps.Throttle = ratelimit.NewNoopLimiter()
	}

	authClient := auth.NewClient(auth.ClientConfig{
		BaseURL:   cfg.Supabase.URL,
		AnonKey:   cfg.Supabase.AnonKey,
		JWTSecret: cfg.Supabase.JWTSecret,
		Timeout:   cfg.Supabase.AuthTimeout,
	})
	deps.Auth = authClient
	deps.Reconciler = session.NewReconciler(authClient, deps.Sessions, cfg.Session.TTL, logger)
	deps.QA = qa.NewService(history, provider, table, cfg.Quota.DailyLimit, logger)

	recorder, err := newAuditRecorder(cfg, deps, redisClient)
	if err != nil {
		return fail(err)
	}
	deps.QA.SetRecorder(recorder)

	renderer, err := web.NewRenderer()
	if err != nil {
		return fail(err)
	}
	deps.Renderer = renderer

	if !cfg.OAuthEnabled() {
		logger.Warn("APP_URL not set; OAuth login is disabled")
	}

	return NewHandler(deps), deps, nil
}

func newHistoryRepository(cfg *config.Config, deps *Dependencies) (storage.HistoryRepository, error) {
	switch cfg.History.Backend {
	case config.HistoryBackendPostgres:
		db, err := storage.NewDB(storage.DBConfig{
			DSN:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		deps.closers = append(deps.closers, db.Close)
		deps.Health["database"] = db.Health

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
		return storage.NewPostgresHistoryRepository(db), nil

	case config.HistoryBackendMemory:
		deps.Logger.Warn("using in-memory history; records are lost on restart")
		return storage.NewMemoryHistoryRepository(), nil

	default:
		repo, err := storage.NewRESTHistoryRepository(storage.RESTConfig{
			BaseURL:    cfg.Supabase.URL,
			ServiceKey: cfg.Supabase.ServiceRoleKey,
			Timeout:    cfg.Supabase.AuthTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize history backend: %w", err)
		}
		return repo, nil
	}
}

// newAuditRecorder starts the ask event pipeline. Events queue in Redis when it is configured.
func newAuditRecorder(cfg *config.Config, deps *Dependencies, redisClient *storage.RedisClient) (audit.Recorder, error) {
	var sink audit.Sink
	switch cfg.Audit.Sink {
	case config.AuditSinkFile:
		sink = audit.NewFileSink(cfg.Audit.File, cfg.Audit.MaxSizeMB)
	case config.AuditSinkS3:
		instance, err := os.Hostname()
		if err != nil || instance == "" {
			instance = "mindmix"
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s3Sink, err := audit.NewS3Sink(ctx, cfg.Audit.S3Bucket, cfg.Audit.S3Region, cfg.Audit.S3Prefix, instance)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize audit sink: %w", err)
		}
		sink = s3Sink
	default:
		return audit.NopRecorder{}, nil
	}

	qcfg := queue.DefaultConfig("audit")
	if cfg.Audit.QueueCapacity > 0 {
		qcfg.Capacity = cfg.Audit.QueueCapacity
	}
	if cfg.Audit.BatchSize > 0 {
		qcfg.BatchSize = cfg.Audit.BatchSize
	}
	if cfg.Audit.BatchTimeout > 0 {
		qcfg.BatchTimeout = cfg.Audit.BatchTimeout
	}
	if cfg.Audit.MaxRetries >= 0 {
		qcfg.MaxRetries = cfg.Audit.MaxRetries
	}

	var (
		q   queue.Queue
		dlq queue.DeadLetterQueue
	)
	if redisClient != nil {
		rq, err := queue.NewRedisQueue(redisClient.Client(), "mindmix:", qcfg)
		if err != nil {
			return nil, err
		}
		rdlq, err := queue.NewRedisDeadLetterQueue(redisClient.Client(), "mindmix:", qcfg)
		if err != nil {
			return nil, err
		}
		q, dlq = rq, rdlq
	} else {
		q, dlq = queue.NewMemoryQueue(qcfg), queue.NewMemoryDeadLetterQueue(qcfg.Capacity)
	}

	pipeline := audit.NewPipeline(q, dlq, sink, qcfg, deps.Logger)
	pipeline.Start(context.Background())
	deps.closers = append(deps.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return pipeline.Stop(ctx)
	})
	deps.Health["audit_queue"] = func(ctx context.Context) error {
		st, err := pipeline.Stats(ctx)
		if err != nil {
			return err
		}
		if st.Queued >= qcfg.Capacity {
			return fmt.Errorf("audit queue backlog: %d events", st.Queued)
		}
		return nil
	}
	deps.Stats["audit"] = func(ctx context.Context) (interface{}, error) {
		return pipeline.Stats(ctx)
	}

	deps.Logger.Info("audit trail enabled", zap.String("sink", cfg.Audit.Sink), zap.Bool("redis_queue", redisClient != nil))
	return pipeline, nil
}

// NewHandler registers all routes on a new mux and wraps it with the standard middleware
func NewHandler(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()
	registerRoutes(mux, deps)

	return middleware.Chain(mux,
		middleware.Recover(deps.Logger),
		middleware.AccessLog(deps.Logger),
	)
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Pages
	mux.Handle("GET /{$}", deps.withSession(deps.handleIndex))
	mux.HandleFunc("POST /login", deps.handleLogin)
	mux.HandleFunc("POST /signup", deps.handleSignup)
	mux.HandleFunc("GET /login/oauth", deps.handleOAuth)
	mux.HandleFunc("GET /auth/callback", deps.handleCallback)
	mux.Handle("POST /logout", deps.withSession(deps.handleLogout))
	mux.Handle("POST /ask", deps.withSession(deps.handleAsk))
	mux.HandleFunc("GET /lang", deps.handleLang)

	// JSON API behind the same session cookie
	mux.Handle("GET /api/history", deps.withSession(deps.handleAPIHistory))
	mux.Handle("GET /api/usage", deps.withSession(deps.handleAPIUsage))
	mux.Handle("POST /api/ask", deps.withSession(deps.handleAPIAsk))

	// Health check endpoint - public
	mux.HandleFunc("GET /healthz", deps.handleHealth)
}

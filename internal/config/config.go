package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// History backends
const (
	HistoryBackendREST     = "rest"
	HistoryBackendPostgres = "postgres"
	HistoryBackendMemory   = "memory"
)

// Audit sinks
const (
	AuditSinkNone = "none"
	AuditSinkFile = "file"
	AuditSinkS3   = "s3"
)

// Config holds configuration for the application.
type Config struct {
	HTTPPort   string
	AppURL     string // public return address for OAuth; empty disables OAuth login
	Supabase   SupabaseConfig
	Inference  InferenceConfig
	History    HistoryConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Session    SessionConfig
	Quota      QuotaConfig
	PromptFile string
	Log        LogConfig
	Audit      AuditConfig
}

// SupabaseConfig holds the hosted auth/database endpoint and its keys
type SupabaseConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	JWTSecret      string // optional; enables local signature verification of access tokens
	AuthTimeout    time.Duration
	OAuthProvider  string
}

// InferenceConfig holds LLM gateway settings
type InferenceConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// HistoryConfig selects where history records live
type HistoryConfig struct {
	Backend string
}

// DatabaseConfig holds direct Postgres connection settings (postgres backend only)
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings. An empty Address disables Redis.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SessionConfig holds login session settings
type SessionConfig struct {
	CookieName    string
	CookieSecure  bool
	TTL           time.Duration
	CacheSize     int
	KeyPrefix     string
	// EncryptionKey is a base64 AES key; when set, sessions stored in Redis are sealed
	EncryptionKey string
}

// QuotaConfig holds usage limits
type QuotaConfig struct {
	DailyLimit     int // questions per user per UTC day
	LoginPerMinute int // sign-in attempts per client per minute, 0 disables
}

// LogConfig holds logger settings
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// AuditConfig controls the ask event trail. Events carry metadata only, never question or answer text.
type AuditConfig struct {
	Sink          string
	File          string
	MaxSizeMB     int
	S3Bucket      string
	S3Region      string
	S3Prefix      string
	QueueCapacity int
	BatchSize     int
	BatchTimeout  time.Duration
	MaxRetries    int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8501")
	v.SetDefault("AUTH_TIMEOUT", 60*time.Second)
	v.SetDefault("OAUTH_PROVIDER", "google")
	v.SetDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")
	v.SetDefault("OPENROUTER_MODEL", "deepseek/deepseek-chat:free")
	v.SetDefault("INFERENCE_TIMEOUT", 60*time.Second)
	v.SetDefault("HISTORY_BACKEND", HistoryBackendREST)
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
	v.SetDefault("SESSION_COOKIE_NAME", "mindmix_session")
	v.SetDefault("SESSION_COOKIE_SECURE", false)
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("SESSION_CACHE_SIZE", 10000)
	v.SetDefault("SESSION_KEY_PREFIX", "mindmix:session:")
	v.SetDefault("QUOTA_DAILY_LIMIT", 80)
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("AUDIT_SINK", AuditSinkNone)
	v.SetDefault("AUDIT_FILE", "audit/asks.jsonl")
	v.SetDefault("AUDIT_MAX_SIZE_MB", 100)
	v.SetDefault("AUDIT_S3_PREFIX", "audit/")
	v.SetDefault("AUDIT_QUEUE_CAPACITY", 1000)
	v.SetDefault("AUDIT_BATCH_SIZE", 100)
	v.SetDefault("AUDIT_BATCH_TIMEOUT", 5*time.Second)
	v.SetDefault("AUDIT_MAX_RETRIES", 3)
}

// Load reads configuration from an optional .env file and the environment.
func Load(envFiles ...string) (*Config, error) {
	// A missing .env is normal in production; only malformed files are an error.
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		HTTPPort: v.GetString("HTTP_PORT"),
		AppURL:   strings.TrimRight(v.GetString("APP_URL"), "/"),
		Supabase: SupabaseConfig{
			URL:            strings.TrimRight(v.GetString("SUPABASE_URL"), "/"),
			AnonKey:        v.GetString("SUPABASE_KEY"),
			ServiceRoleKey: v.GetString("SUPABASE_SERVICE_ROLE_KEY"),
			JWTSecret:      v.GetString("SUPABASE_JWT_SECRET"),
			AuthTimeout:    v.GetDuration("AUTH_TIMEOUT"),
			OAuthProvider:  v.GetString("OAUTH_PROVIDER"),
		},
		Inference: InferenceConfig{
			APIKey:  v.GetString("OPENROUTER_API_KEY"),
			BaseURL: v.GetString("OPENROUTER_BASE_URL"),
			Model:   v.GetString("OPENROUTER_MODEL"),
			Timeout: v.GetDuration("INFERENCE_TIMEOUT"),
		},
		History: HistoryConfig{
			Backend: strings.ToLower(v.GetString("HISTORY_BACKEND")),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("DATABASE_URL"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		Redis: RedisConfig{
			Address:      v.GetString("REDIS_ADDRESS"),
			Password:     v.GetString("REDIS_PASSWORD"),
			DB:           v.GetInt("REDIS_DB"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
		},
		Session: SessionConfig{
			CookieName:    v.GetString("SESSION_COOKIE_NAME"),
			CookieSecure:  v.GetBool("SESSION_COOKIE_SECURE"),
			TTL:           v.GetDuration("SESSION_TTL"),
			CacheSize:     v.GetInt("SESSION_CACHE_SIZE"),
			KeyPrefix:     v.GetString("SESSION_KEY_PREFIX"),
			EncryptionKey: v.GetString("SESSION_ENCRYPTION_KEY"),
		},
		Quota: QuotaConfig{
			DailyLimit:     v.GetInt("QUOTA_DAILY_LIMIT"),
			LoginPerMinute: v.GetInt("LOGIN_RATE_LIMIT"),
		},
		PromptFile: v.GetString("PROMPTS_FILE"),
		Log: LogConfig{
			Level:      v.GetString("LOG_LEVEL"),
			File:       v.GetString("LOG_FILE"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
		},
		Audit: AuditConfig{
			Sink:          strings.ToLower(v.GetString("AUDIT_SINK")),
			File:          v.GetString("AUDIT_FILE"),
			MaxSizeMB:     v.GetInt("AUDIT_MAX_SIZE_MB"),
			S3Bucket:      v.GetString("AUDIT_S3_BUCKET"),
			S3Region:      v.GetString("AUDIT_S3_REGION"),
			S3Prefix:      v.GetString("AUDIT_S3_PREFIX"),
			QueueCapacity: v.GetInt("AUDIT_QUEUE_CAPACITY"),
			BatchSize:     v.GetInt("AUDIT_BATCH_SIZE"),
			BatchTimeout:  v.GetDuration("AUDIT_BATCH_TIMEOUT"),
			MaxRetries:    v.GetInt("AUDIT_MAX_RETRIES"),
		},
	}
}

// Validate reports every missing required setting at once.
// APP_URL is optional; without it only OAuth login is disabled.
func (c *Config) Validate() error {
	var errs []error

	if c.Supabase.URL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is required"))
	}
	if c.Supabase.AnonKey == "" {
		errs = append(errs, errors.New("SUPABASE_KEY is required"))
	}
	if c.Inference.APIKey == "" {
		errs = append(errs, errors.New("OPENROUTER_API_KEY is required"))
	}

	switch c.History.Backend {
	case HistoryBackendREST:
		if c.Supabase.ServiceRoleKey == "" {
			errs = append(errs, errors.New("SUPABASE_SERVICE_ROLE_KEY is required for the rest history backend"))
		}
	case HistoryBackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres history backend"))
		}
	case HistoryBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown HISTORY_BACKEND %q", c.History.Backend))
	}

	switch c.Audit.Sink {
	case AuditSinkNone, "":
	case AuditSinkFile:
		if c.Audit.File == "" {
			errs = append(errs, errors.New("AUDIT_FILE is required for the file audit sink"))
		}
	case AuditSinkS3:
		if c.Audit.S3Bucket == "" {
			errs = append(errs, errors.New("AUDIT_S3_BUCKET is required for the s3 audit sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUDIT_SINK %q", c.Audit.Sink))
	}

	if c.Quota.DailyLimit <= 0 {
		errs = append(errs, errors.New("QUOTA_DAILY_LIMIT must be positive"))
	}

	return errors.Join(errs...)
}

// OAuthEnabled reports whether the OAuth return address is configured
func (c *Config) OAuthEnabled() bool {
	return c.AppURL != ""
}


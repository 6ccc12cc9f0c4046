package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter is used to enforce per-key rate limits.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// NoopLimiter allows all requests. Used when Redis is not configured.
type NoopLimiter struct{}

func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

func (l *NoopLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (l *NoopLimiter) Reset(ctx context.Context, key string) error {
	return nil
}

// slidingWindow trims the window, records the attempt only if it fits,
// and returns {allowed, count, resetAtMillis}
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
	local count = redis.call('ZCARD', key)
	local allowed = 0
	if count < limit then
		redis.call('ZADD', key, now, member)
		count = count + 1
		allowed = 1
	end
	redis.call('PEXPIRE', key, window)

	local reset = now + window
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if #oldest == 2 then
		reset = tonumber(oldest[2]) + window
	end
	return {allowed, count, reset}
`)

// RateLimiter implements distributed sliding-window rate limiting using Redis sorted sets
type RateLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit attempts per key within window. A limit <= 0 disables limiting.
func NewRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (rl *RateLimiter) key(k string) string {
	return fmt.Sprintf("%s%s", rl.prefix, k)
}

// Allow records an attempt for key and reports whether it is within the limit
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, _, _, err := rl.AllowWithDetails(ctx, key)
	return allowed, err
}

// AllowWithDetails is Allow plus the attempts left and when the oldest attempt leaves the window.
// Unlimited limiters report remaining = -1 and a zero resetAt.
func (rl *RateLimiter) AllowWithDetails(ctx context.Context, key string) (bool, int, time.Time, error) {
	if rl.limit <= 0 {
		return true, -1, time.Time{}, nil
	}

	now := rl.now().UnixMilli()
	res, err := slidingWindow.Run(ctx, rl.client,
		[]string{rl.key(key)},
		now, rl.window.Milliseconds(), rl.limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check returned %d values", len(res))
	}

	remaining := rl.limit - int(res[1])
	if remaining < 0 {
		remaining = 0
	}
	return res[0] == 1, remaining, time.UnixMilli(res[2]), nil
}

// Reset clears the attempts recorded for key
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, rl.key(key)).Err()
}

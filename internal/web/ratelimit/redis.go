package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a sliding-window Limiter backed by a Redis sorted set per
// key, for deployments where requests spread across instances.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// slidingWindow trims entries older than the window, counts the rest, and
// records the request if it fits, all atomically.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, now)
		redis.call('PEXPIRE', key, ttl)
		return {1, limit - count - 1}
	end
	return {0, 0}
`)

// RedisLimiterConfig configures a RedisLimiter
type RedisLimiterConfig struct {
	Client *redis.Client
	Limit  int
	Window time.Duration
	Prefix string
}

// NewRedisLimiter creates a Redis-backed sliding window limiter
func NewRedisLimiter(config RedisLimiterConfig) (*RedisLimiter, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Limit <= 0 || config.Window <= 0 {
		return nil, errors.New("limit and window must be positive")
	}
	prefix := config.Prefix
	if prefix == "" {
		prefix = "ratelimit:"
	}

	return &RedisLimiter{
		client: config.Client,
		limit:  config.Limit,
		window: config.Window,
		prefix: prefix,
	}, nil
}

// Allow records the request in the key's window if the limit permits
func (r *RedisLimiter) Allow(ctx context.Context, key string) (*Decision, error) {
	now := time.Now()
	windowStart := now.Add(-r.window)

	result, err := slidingWindow.Run(ctx, r.client, []string{r.prefix + key},
		now.UnixMicro(), windowStart.UnixMicro(), r.limit, r.window.Milliseconds()).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return nil, fmt.Errorf("unexpected rate limit script result: %v", result)
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)

	return &Decision{
		Allowed:   allowed == 1,
		Limit:     r.limit,
		Remaining: int(remaining),
		ResetAt:   now.Add(r.window),
	}, nil
}

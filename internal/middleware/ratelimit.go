package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimitKeyPrefix namespaces limiter counters in Redis. Scope and client
// IP follow it, e.g. "datarest_ratelimit:people:10.0.0.1".
const RateLimitKeyPrefix = "datarest_ratelimit"

// RedisRateLimiter owns the Redis connection behind the rate limit store.
type RedisRateLimiter struct {
	client *redis.Client
}

// NewRedisRateLimiter connects to redisURL and verifies the connection.
func NewRedisRateLimiter(redisURL string) (*RedisRateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = "datarest"
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisRateLimiter{client: client}, nil
}

// Store returns the ulule/limiter store shared by every scope. Counters of
// all server instances live in the same Redis keys, so limits are global.
func (r *RedisRateLimiter) Store() (limiter.Store, error) {
	store, err := redisstore.NewStoreWithOptions(r.client, limiter.StoreOptions{
		Prefix:   RateLimitKeyPrefix,
		MaxRetry: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis limiter store: %w", err)
	}
	return store, nil
}

// Ping reports whether Redis is reachable.
func (r *RedisRateLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisRateLimiter) Close() error {
	return r.client.Close()
}

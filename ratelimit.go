package qflow

import (
	"context"
	"time"

	"github.com/QFlow/qflow-go/internal/ratelimit"
	"github.com/redis/go-redis/v9"
)

// RateLimitStore is the admission gate consulted on every submission.
// The default is an in-process sliding window; NewRedisRateLimit returns a
// store shared across host replicas.
type RateLimitStore interface {
	// Allow reports whether the caller identified by key may submit now.
	Allow(ctx context.Context, key string) (bool, error)
	// Reset clears the window for a key.
	Reset(ctx context.Context, key string) error
}

// NewRedisRateLimit creates an admission store backed by a shared Redis
// counter, for hosts that run several replicas behind one budget. The
// counting is done atomically with a Lua script.
func NewRedisRateLimit(rdb redis.UniversalClient, window time.Duration, maxRequests int) RateLimitStore {
	return ratelimit.NewRedis(rdb, window, maxRequests)
}

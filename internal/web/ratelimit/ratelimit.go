// Package ratelimit provides per-client request throttling for the API:
// an in-process token bucket and a Redis-backed sliding window for
// multi-instance deployments.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (*Decision, error)
}

// Decision is the outcome of one rate limit check, carrying the state
// exposed through the X-RateLimit response headers.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

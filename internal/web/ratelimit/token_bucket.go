package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is an in-process Limiter: each key owns a bucket of Capacity
// tokens refilled continuously over Window. Stale buckets are swept by a
// background goroutine.
type TokenBucket struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	capacity int
	window   time.Duration

	sweep *time.Ticker
	done  chan struct{}
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// TokenBucketConfig configures a TokenBucket
type TokenBucketConfig struct {
	// Capacity is the burst size and the per-window request budget
	Capacity int
	// Window is the time it takes an empty bucket to refill completely
	Window time.Duration
	// SweepInterval is how often idle buckets are discarded. Zero disables
	// sweeping.
	SweepInterval time.Duration
}

// DefaultTokenBucketConfig allows 100 requests per minute
func DefaultTokenBucketConfig() TokenBucketConfig {
	return TokenBucketConfig{
		Capacity:      100,
		Window:        time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

// NewTokenBucket creates a token bucket limiter
func NewTokenBucket(config TokenBucketConfig) *TokenBucket {
	tb := &TokenBucket{
		buckets:  make(map[string]*bucket),
		capacity: config.Capacity,
		window:   config.Window,
		done:     make(chan struct{}),
	}

	if config.SweepInterval > 0 {
		tb.sweep = time.NewTicker(config.SweepInterval)
		go tb.sweepLoop()
	}
	return tb
}

// Allow consumes one token from the key's bucket
func (tb *TokenBucket) Allow(ctx context.Context, key string) (*Decision, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(tb.capacity)}
		tb.buckets[key] = b
	} else {
		refill := float64(tb.capacity) * now.Sub(b.lastSeen).Seconds() / tb.window.Seconds()
		b.tokens += refill
		if b.tokens > float64(tb.capacity) {
			b.tokens = float64(tb.capacity)
		}
	}
	b.lastSeen = now

	decision := &Decision{
		Limit:   tb.capacity,
		ResetAt: now.Add(tb.window),
	}
	if b.tokens >= 1 {
		b.tokens--
		decision.Allowed = true
	}
	decision.Remaining = int(b.tokens)
	return decision, nil
}

func (tb *TokenBucket) sweepLoop() {
	for {
		select {
		case <-tb.sweep.C:
			tb.sweepIdle()
		case <-tb.done:
			return
		}
	}
}

// sweepIdle drops buckets idle for longer than two windows; an absent
// bucket and a full one are indistinguishable
func (tb *TokenBucket) sweepIdle() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	cutoff := time.Now().Add(-2 * tb.window)
	for key, b := range tb.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(tb.buckets, key)
		}
	}
}

// Close stops the sweep goroutine
func (tb *TokenBucket) Close() error {
	close(tb.done)
	if tb.sweep != nil {
		tb.sweep.Stop()
	}
	return nil
}

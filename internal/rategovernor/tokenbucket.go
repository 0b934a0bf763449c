package rategovernor

import (
	"context"
	"sync"
	"time"
)

// tokenBucket is a simple time-based token bucket: capacity of a single
// token (no burst), refilled continuously at the configured rate. It suspends the
// caller until a token is available and honors context cancellation.
type tokenBucket struct {
	mu         sync.Mutex
	rps        float64
	tokens     float64
	capacity   float64
	lastRefill time.Time
	now        func() time.Time
}

func newTokenBucket(rps float64) *tokenBucket {
	if rps <= 0 {
		rps = 0.01
	}
	return &tokenBucket{
		rps:        rps,
		tokens:     1,
		capacity:   1,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// wait blocks until a token is available or ctx is cancelled.
func (b *tokenBucket) wait(ctx context.Context) error {
	for {
		wait, ok := b.tryTake()
		if ok {
			return nil
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// tryTake attempts to consume one token. If none is available it returns
// the duration to wait before retrying.
func (b *tokenBucket) tryTake() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now
	b.tokens += elapsed * b.rps
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}

	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}

	deficit := 1 - b.tokens
	return time.Duration(deficit / b.rps * float64(time.Second)), false
}

package rategovernor

import (
	"context"
	"testing"
	"time"

	"mediawatch/internal/httpclient"
)

func TestTokenBucketPacesRequests(t *testing.T) {
	b := newTokenBucket(10) // 10 rps -> ~100ms per token once exhausted
	ctx := context.Background()

	if err := b.wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := b.wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	// 5 tokens at 10rps should take at least ~400ms (allow slack).
	if elapsed < 300*time.Millisecond {
		t.Errorf("elapsed %v, expected pacing to enforce >= ~400ms for 5 tokens at 10rps", elapsed)
	}
}

func TestTokenBucketRespectsCancellation(t *testing.T) {
	b := newTokenBucket(0.1) // very slow, so the next wait blocks
	ctx := context.Background()
	if err := b.wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	if err := b.wait(cancelCtx); err == nil {
		t.Error("expected context deadline error, got nil")
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	br := newCircuitBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !br.allow() {
			t.Fatalf("expected allow before threshold reached (i=%d)", i)
		}
		br.record(false)
	}

	if br.allow() {
		t.Error("expected circuit to be open after threshold consecutive failures")
	}
}

func TestCircuitBreakerHalfOpenAfterCooldown(t *testing.T) {
	br := newCircuitBreaker(1, time.Millisecond)
	fakeNow := time.Now()
	br.now = func() time.Time { return fakeNow }

	br.allow()
	br.record(false) // opens

	if br.allow() {
		t.Fatal("expected open circuit to reject before cooldown elapses")
	}

	fakeNow = fakeNow.Add(10 * time.Millisecond)
	if !br.allow() {
		t.Fatal("expected half-open probe to be allowed after cooldown")
	}
	if br.allow() {
		t.Error("expected only a single probe to be allowed while half-open")
	}

	br.record(true)
	if !br.allow() {
		t.Error("expected circuit to close after a successful probe")
	}
}

func TestGovernorAcquireOpensCircuit(t *testing.T) {
	g := New(Config{HTMLRPS: 1000, APIRPS: 1000, RSSRPS: 1000, CircuitThreshold: 2, CircuitCooldown: time.Hour})

	for i := 0; i < 2; i++ {
		release, err := g.Acquire(context.Background(), httpclient.ProfileHTML, "example.com")
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		release()
		g.RecordExtractionResult("example.com", false)
	}

	_, err := g.Acquire(context.Background(), httpclient.ProfileHTML, "example.com")
	if err != ErrCircuitOpen {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

// Package rategovernor enforces per-domain request rates, bounded global
// concurrency, and per-domain circuit breaking (spec §4.3).
package rategovernor

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"mediawatch/internal/httpclient"
)

// ErrCircuitOpen is returned by Acquire when the domain's circuit is open.
var ErrCircuitOpen = errors.New("circuit open")

// Config controls the per-profile rate and concurrency limits.
type Config struct {
	HTMLRPS float64
	APIRPS  float64
	RSSRPS  float64

	// MaxConcurrent bounds total in-flight requests per profile. Zero means
	// no cap.
	MaxConcurrent int64

	CircuitThreshold int
	CircuitCooldown  time.Duration
}

// DefaultConfig mirrors spec §4.3/§6.2 defaults.
func DefaultConfig() Config {
	return Config{
		HTMLRPS:          1.5,
		APIRPS:           3.0,
		RSSRPS:           2.0,
		MaxConcurrent:    16,
		CircuitThreshold: 8,
		CircuitCooldown:  10 * time.Minute,
	}
}

// Governor is a process-wide, shared resource governing outbound request
// pacing and per-domain circuit breaking.
type Governor struct {
	cfg Config

	mu       sync.Mutex
	buckets  map[bucketKey]*tokenBucket
	breakers map[string]*circuitBreaker

	semas map[httpclient.Profile]*semaphore.Weighted
}

type bucketKey struct {
	profile httpclient.Profile
	domain  string
}

// New creates a Governor with the given configuration.
func New(cfg Config) *Governor {
	g := &Governor{
		cfg:      cfg,
		buckets:  make(map[bucketKey]*tokenBucket),
		breakers: make(map[string]*circuitBreaker),
		semas:    make(map[httpclient.Profile]*semaphore.Weighted),
	}
	if cfg.MaxConcurrent > 0 {
		for _, p := range []httpclient.Profile{httpclient.ProfileHTML, httpclient.ProfileAPI, httpclient.ProfileRSS} {
			g.semas[p] = semaphore.NewWeighted(cfg.MaxConcurrent)
		}
	}
	return g
}

// Acquire blocks until a request to domain under profile is permitted,
// respecting the circuit breaker, the per-domain rate limit, and the
// global concurrency cap. It returns a release func that MUST be called
// once the request completes.
func (g *Governor) Acquire(ctx context.Context, profile httpclient.Profile, domain string) (release func(), err error) {
	if br := g.breakerFor(domain); !br.allow() {
		return nil, ErrCircuitOpen
	}

	if sem, ok := g.semas[profile]; ok {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}

	bucket := g.bucketFor(profile, domain)
	if err := bucket.wait(ctx); err != nil {
		if sem, ok := g.semas[profile]; ok {
			sem.Release(1)
		}
		return nil, err
	}

	released := false
	release = func() {
		if released {
			return
		}
		released = true
		if sem, ok := g.semas[profile]; ok {
			sem.Release(1)
		}
	}
	return release, nil
}

// RecordExtractionResult feeds the per-domain circuit breaker: usable
// reports whether the extraction produced usable content (score >= the
// extractor's quality-gate threshold).
func (g *Governor) RecordExtractionResult(domain string, usable bool) {
	g.breakerFor(domain).record(usable)
}

func (g *Governor) rps(profile httpclient.Profile) float64 {
	switch profile {
	case httpclient.ProfileAPI:
		return g.cfg.APIRPS
	case httpclient.ProfileRSS:
		return g.cfg.RSSRPS
	default:
		return g.cfg.HTMLRPS
	}
}

func (g *Governor) bucketFor(profile httpclient.Profile, domain string) *tokenBucket {
	key := bucketKey{profile: profile, domain: domain}

	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.buckets[key]
	if !ok {
		b = newTokenBucket(g.rps(profile))
		g.buckets[key] = b
	}
	return b
}

func (g *Governor) breakerFor(domain string) *circuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	br, ok := g.breakers[domain]
	if !ok {
		br = newCircuitBreaker(g.cfg.CircuitThreshold, g.cfg.CircuitCooldown)
		g.breakers[domain] = br
	}
	return br
}

package rategovernor

import (
	"sync"
	"time"
)

type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
	stateHalfOpen
)

// circuitBreaker counts consecutive extraction failures (zero usable
// content) per domain. It opens after threshold consecutive failures and
// half-opens after cooldown, allowing a single probe to decide the next
// state (spec §4.3).
type circuitBreaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration

	state       circuitState
	consecutive int
	openedAt    time.Time
	probing     bool

	now func() time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 8
	}
	if cooldown <= 0 {
		cooldown = 10 * time.Minute
	}
	return &circuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     stateClosed,
		now:       time.Now,
	}
}

// allow reports whether a new request may proceed, transitioning open ->
// half-open after the cooldown elapses and reserving the single probe slot.
func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = stateHalfOpen
		b.probing = true
		return true
	case stateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// record feeds back whether the most recent request produced usable
// content, driving the open/half-open/closed transitions.
func (b *circuitBreaker) record(usable bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if usable {
		b.consecutive = 0
		b.state = stateClosed
		b.probing = false
		return
	}

	b.consecutive++
	b.probing = false

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = b.now()
		return
	}

	if b.consecutive >= b.threshold {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}

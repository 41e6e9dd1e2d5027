package arrowexport

import (
	"sync"
	"time"
)

// breakerState is the circuit's current disposition toward new Puts.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// circuitBreaker guards FlightSink.Put against a wedged or unreachable
// Flight endpoint, grounded on internal/client/circuit_breaker.go's
// CircuitBreaker. After maxFailures consecutive Put failures it trips
// open and rejects sends for timeout; after that it goes half-open and
// lets calls through until one succeeds (closing it) or fails
// (reopening it).
type circuitBreaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	maxFailures int
	timeout     time.Duration
	lastFailure time.Time
}

func newCircuitBreaker(maxFailures int, timeout time.Duration) *circuitBreaker {
	return &circuitBreaker{maxFailures: maxFailures, timeout: timeout}
}

// allow reports whether a Put may proceed, transitioning Open to
// Half-Open once timeout has elapsed since the last failure.
func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if time.Since(cb.lastFailure) > cb.timeout {
			cb.state = breakerHalfOpen
			return true
		}
		return false
	default: // breakerHalfOpen
		return true
	}
}

func (cb *circuitBreaker) success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = breakerClosed
	cb.failures = 0
}

func (cb *circuitBreaker) failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()
	if cb.state == breakerClosed && cb.failures >= cb.maxFailures {
		cb.state = breakerOpen
	} else if cb.state == breakerHalfOpen {
		cb.state = breakerOpen
	}
}

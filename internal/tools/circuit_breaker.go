package tools

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Circuit breaker errors
var (
	ErrCircuitOpen     = errors.New("circuit breaker open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// CircuitState represents the state of the circuit breaker
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half-open"
)

// BreakerStats is a snapshot of breaker counters
type BreakerStats struct {
	State       CircuitState `json:"state"`
	Requests    int64        `json:"requests"`
	Successes   int64        `json:"successes"`
	Failures    int64        `json:"failures"`
	Rejections  int64        `json:"rejections"`
	TimeInState string       `json:"time_in_state"`
}

// CircuitBreaker stops calls to a provider after repeated failures and
// lets a few probes through once the cooldown has elapsed.
type CircuitBreaker struct {
	mu                   sync.Mutex
	name                 string
	state                CircuitState
	failureCount         int
	halfOpenInFlight     int
	consecutiveSuccesses int
	lastFailureTime      time.Time
	lastStateChange      time.Time

	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	halfOpenMax      int

	stats  BreakerStats
	now    func() time.Time
	logger *slog.Logger
}

// NewCircuitBreaker creates a breaker that opens after threshold
// consecutive failures and stays open for cooldown.
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration, logger *slog.Logger) *CircuitBreaker {
	if threshold < 1 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitBreaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: threshold,
		successThreshold: 1,
		cooldown:         cooldown,
		halfOpenMax:      1,
		lastStateChange:  time.Now(),
		now:              time.Now,
		logger:           logger.With("component", "breaker", "breaker", name),
	}
}

// Call runs fn unless the circuit is open; fn's error is recorded and returned.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}
	err := fn()
	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.Requests++
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.cooldown {
			cb.stats.Rejections++
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.consecutiveSuccesses = 0
		cb.halfOpenInFlight = 1
		return nil
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.halfOpenMax {
			cb.stats.Rejections++
			return ErrTooManyRequests
		}
		cb.halfOpenInFlight++
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.halfOpenInFlight > 0 {
		cb.halfOpenInFlight--
	}

	if err != nil {
		cb.stats.Failures++
		cb.failureCount++
		cb.consecutiveSuccesses = 0
		cb.lastFailureTime = cb.now()

		switch cb.state {
		case StateClosed:
			if cb.failureCount >= cb.failureThreshold {
				cb.setState(StateOpen)
			}
		case StateHalfOpen:
			cb.setState(StateOpen)
		}
		return
	}

	cb.stats.Successes++
	cb.consecutiveSuccesses++
	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		if cb.consecutiveSuccesses >= cb.successThreshold {
			cb.setState(StateClosed)
			cb.failureCount = 0
		}
	}
}

func (cb *CircuitBreaker) setState(next CircuitState) {
	prev := cb.state
	cb.state = next
	cb.lastStateChange = cb.now()
	if prev != next {
		cb.logger.Info("state transition", "from", prev, "to", next, "failures", cb.failureCount)
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a copy of the counters
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s := cb.stats
	s.State = cb.state
	s.TimeInState = cb.now().Sub(cb.lastStateChange).Round(time.Second).String()
	return s
}

// Reset manually closes the circuit
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.failureCount = 0
	cb.halfOpenInFlight = 0
	cb.consecutiveSuccesses = 0
}

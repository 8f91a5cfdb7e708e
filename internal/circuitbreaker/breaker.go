// Package circuitbreaker stops calls to an upstream service after repeated
// failures and lets a trial call through once a cooldown has passed.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrOpen is returned while the breaker rejects calls
var ErrOpen = errors.New("circuit breaker open: upstream protection engaged")

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, no new operations allowed
	StateHalfOpen              // Testing if upstream has recovered
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// MarshalText renders the state name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CircuitBreaker counts consecutive failures of one upstream
type CircuitBreaker struct {
	name string

	// Consecutive failures that trip the breaker
	failureThreshold int

	// Current state of the circuit breaker (Closed, Open, HalfOpen)
	state State

	// Consecutive failures seen while closed
	failures int

	// Timestamp of the last circuit trip
	lastTrip time.Time

	// Duration before a trial call is allowed
	resetDelay time.Duration

	// Count of consecutive successful operations in HalfOpen state
	successCount int

	// Number of successful operations required to close circuit
	successThreshold int

	// Decides which errors count against the upstream
	isFailure func(error) bool

	// Event callback for monitoring/alerting
	onTripCallback func(reason string)

	now func() time.Time
	mu  sync.Mutex
}

// New creates a breaker for the named upstream that trips after failureThreshold consecutive failures
func New(name string, failureThreshold int) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		state:            StateClosed,
		resetDelay:       30 * time.Second,
		successThreshold: 1,
		isFailure:        func(err error) bool { return err != nil },
		now:              time.Now,
	}
}

// WithResetDelay sets a custom reset delay and returns the circuit breaker
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithSuccessThreshold sets the number of successful operations needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	cb.successThreshold = threshold
	return cb
}

// WithTripCallback sets a callback function that is called when the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(reason string)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

// WithFailurePredicate sets which errors count as upstream failures. Errors
// it rejects are returned to the caller without affecting the breaker.
func (cb *CircuitBreaker) WithFailurePredicate(fn func(error) bool) *CircuitBreaker {
	cb.isFailure = fn
	return cb
}

// WithClock replaces the time source
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.now = now
	return cb
}

// Execute runs fn unless the breaker is open and records its outcome
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn()
	if err != nil && cb.isFailure(err) {
		cb.RecordFailure(err.Error())
		return err
	}
	cb.RecordSuccess()
	return err
}

// Allow returns ErrOpen while the breaker is open. Once the reset delay has
// passed it moves to half-open and lets calls through.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	if cb.now().Sub(cb.lastTrip) < cb.resetDelay {
		return ErrOpen
	}
	cb.state = StateHalfOpen
	cb.successCount = 0
	logrus.WithField("upstream", cb.name).Info("Circuit breaker half-open: testing upstream recovery")
	return nil
}

// RecordSuccess notes a successful call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			logrus.WithField("upstream", cb.name).Info("Circuit breaker closed: upstream has recovered")
		}
	}
}

// RecordFailure notes a failed call, tripping the breaker when the threshold
// is reached or when a half-open trial fails.
func (cb *CircuitBreaker) RecordFailure(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.trip(fmt.Sprintf("trial call failed: %s", reason))
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.trip(fmt.Sprintf("%d consecutive failures, last: %s", cb.failures, reason))
		}
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// trip sets the circuit breaker to open state; callers hold mu
func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.lastTrip = cb.now()
	cb.failures = 0
	logrus.WithFields(logrus.Fields{"upstream": cb.name, "reason": reason}).Warn("Circuit breaker tripped")

	if cb.onTripCallback != nil {
		go cb.onTripCallback(reason)
	}
}

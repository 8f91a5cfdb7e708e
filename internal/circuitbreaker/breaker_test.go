package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream returned 503")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCircuitBreaker_BasicFunctionality(t *testing.T) {
	cb := New("lifi", 3)
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit breaker should start closed")

	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err, "Successful call should pass through")
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit should remain closed for successful calls")
}

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cb := New("lifi", 3)

	for i := 0; i < 2; i++ {
		err := cb.Execute(func() error { return errUpstream })
		assert.ErrorIs(t, err, errUpstream)
	}
	assert.Equal(t, StateClosed, cb.GetState(), "Two failures should not trip a threshold of three")

	// a success in between resets the streak
	require.NoError(t, cb.Execute(func() error { return nil }))
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errUpstream })
	}
	assert.Equal(t, StateClosed, cb.GetState(), "Streak should restart after a success")

	_ = cb.Execute(func() error { return errUpstream })
	assert.Equal(t, StateOpen, cb.GetState(), "Circuit should be open after three consecutive failures")

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen, "Open circuit should reject calls")
	assert.False(t, called, "Rejected call must not reach the upstream")
}

func TestCircuitBreaker_FailurePredicate(t *testing.T) {
	clientErr := errors.New("400 bad request")
	cb := New("lifi", 1).WithFailurePredicate(func(err error) bool { return err != clientErr })

	err := cb.Execute(func() error { return clientErr })
	assert.ErrorIs(t, err, clientErr, "Ignored errors are still returned")
	assert.Equal(t, StateClosed, cb.GetState(), "Ignored errors should not trip the circuit")

	_ = cb.Execute(func() error { return errUpstream })
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_Recovery(t *testing.T) {
	c := &clock{now: time.Unix(1700000000, 0)}
	cb := New("lifi", 1).
		WithResetDelay(30 * time.Second).
		WithSuccessThreshold(1).
		WithClock(c.Now)

	_ = cb.Execute(func() error { return errUpstream })
	require.Equal(t, StateOpen, cb.GetState(), "Circuit should be open after trip")

	c.Advance(10 * time.Second)
	assert.ErrorIs(t, cb.Allow(), ErrOpen, "Still cooling down")

	c.Advance(21 * time.Second)
	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err, "Trial call should pass in half-open state")
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit should close after successful trial")
}

func TestCircuitBreaker_FailedTrialReopens(t *testing.T) {
	c := &clock{now: time.Unix(1700000000, 0)}
	cb := New("lifi", 5).WithResetDelay(time.Second).WithClock(c.Now)

	for i := 0; i < 5; i++ {
		_ = cb.Execute(func() error { return errUpstream })
	}
	require.Equal(t, StateOpen, cb.GetState())

	c.Advance(2 * time.Second)
	require.NoError(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.GetState())

	cb.RecordFailure("still down")
	assert.Equal(t, StateOpen, cb.GetState(), "A single failed trial reopens the circuit")
}

func TestCircuitBreaker_CallbackExecution(t *testing.T) {
	var mu sync.Mutex
	callbackReason := ""
	done := make(chan struct{})

	cb := New("lifi", 1).WithTripCallback(func(reason string) {
		mu.Lock()
		callbackReason = reason
		mu.Unlock()
		close(done)
	})

	_ = cb.Execute(func() error { return errUpstream })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Callback should be executed when circuit trips")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, callbackReason, "upstream returned 503", "Callback reason should explain the trip")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}

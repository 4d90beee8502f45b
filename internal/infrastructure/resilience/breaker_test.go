package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDevice = errors.New("device unreachable")

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func fail() error    { return errDevice }
func succeed() error { return nil }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		threshold     uint32
		calls         []bool // true = success, false = failure
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			threshold:     3,
			calls:         []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name:          "opens after consecutive failures",
			threshold:     3,
			calls:         []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name:          "success resets the failure run",
			threshold:     3,
			calls:         []bool{false, false, true, false, false},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &clock{now: time.Unix(0, 0)}
			breaker := New("test", Settings{FailureThreshold: tt.threshold, Cooldown: time.Minute, Now: c.Now})

			for _, success := range tt.calls {
				fn := fail
				if success {
					fn = succeed
				}
				_ = breaker.Do(fn)
			}

			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	breaker := New("ccu", Settings{FailureThreshold: 1, Cooldown: time.Minute, Now: c.Now})

	require.ErrorIs(t, breaker.Do(fail), errDevice)

	called := false
	err := breaker.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenTrial(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	var transitions []string
	breaker := New("ccu", Settings{
		FailureThreshold: 2,
		Cooldown:         time.Minute,
		Now:              c.Now,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = breaker.Do(fail)
	_ = breaker.Do(fail)
	require.Equal(t, StateOpen, breaker.State())

	c.Advance(time.Minute)
	assert.Equal(t, StateHalfOpen, breaker.State())

	// failed trial reopens immediately
	assert.ErrorIs(t, breaker.Do(fail), errDevice)
	assert.Equal(t, StateOpen, breaker.State())

	c.Advance(time.Minute)
	assert.NoError(t, breaker.Do(succeed))
	assert.Equal(t, StateClosed, breaker.State())
	assert.Zero(t, breaker.Failures())

	assert.Equal(t, []string{
		"closed->open",
		"open->half-open",
		"half-open->open",
		"open->half-open",
		"half-open->closed",
	}, transitions)
}

func TestBreakerSingleTrial(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	breaker := New("ccu", Settings{FailureThreshold: 1, Cooldown: time.Second, Now: c.Now})

	_ = breaker.Do(fail)
	c.Advance(time.Second)

	err := breaker.Do(func() error {
		assert.ErrorIs(t, breaker.Do(succeed), ErrTrialPending)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerRecordsPanics(t *testing.T) {
	breaker := New("test", Settings{FailureThreshold: 1})

	assert.Panics(t, func() {
		_ = breaker.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, breaker.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}

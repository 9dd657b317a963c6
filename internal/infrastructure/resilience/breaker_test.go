package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			settings:      Settings{FailureThreshold: 3, ResetTimeout: time.Minute},
			requests:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name:          "opens after consecutive failures",
			settings:      Settings{FailureThreshold: 3, ResetTimeout: time.Minute},
			requests:      []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name:          "success resets the failure streak",
			settings:      Settings{FailureThreshold: 3, ResetTimeout: time.Minute},
			requests:      []bool{false, false, true, false, false},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := NewBreaker("test", tt.settings)

			for _, success := range tt.requests {
				breaker.Execute(func() (any, error) { //nolint:errcheck
					if success {
						return "ok", nil
					}
					return nil, errBoom
				})
			}

			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerOpenFailsFast(t *testing.T) {
	breaker := NewBreaker("test", Settings{FailureThreshold: 2, ResetTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := breaker.Execute(func() (any, error) { return nil, errBoom })
		require.ErrorIs(t, err, errBoom)
	}

	invoked := false
	_, err := breaker.Execute(func() (any, error) {
		invoked = true
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, invoked, "operation must not run while open")
}

func TestBreakerHalfOpenTrial(t *testing.T) {
	breaker := NewBreaker("test", Settings{FailureThreshold: 1, ResetTimeout: 20 * time.Millisecond})

	_, err := breaker.Execute(func() (any, error) { return nil, errBoom })
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, StateOpen, breaker.State())

	time.Sleep(30 * time.Millisecond)

	// Trial call succeeds, breaker closes and counters reset.
	result, err := breaker.Execute(func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, uint32(0), breaker.Counts().ConsecutiveFailures)
}

func TestBreakerHalfOpenTrialFailureReopens(t *testing.T) {
	breaker := NewBreaker("test", Settings{FailureThreshold: 1, ResetTimeout: 20 * time.Millisecond})

	breaker.Execute(func() (any, error) { return nil, errBoom }) //nolint:errcheck
	time.Sleep(30 * time.Millisecond)

	_, err := breaker.Execute(func() (any, error) { return nil, errBoom })
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerHalfOpenSingleTrialUnderConcurrency(t *testing.T) {
	breaker := NewBreaker("test", Settings{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	breaker.Execute(func() (any, error) { return nil, errBoom }) //nolint:errcheck
	time.Sleep(20 * time.Millisecond)

	var invoked atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			breaker.Execute(func() (any, error) { //nolint:errcheck
				invoked.Add(1)
				<-release
				return "ok", nil
			})
		}()
	}

	// Give every goroutine a chance to hit the breaker before releasing.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), invoked.Load(), "exactly one half-open trial may run")
}

func TestBreakerStateChangeNotification(t *testing.T) {
	transitions := make(chan [2]State, 4)
	breaker := NewBreaker("dep", Settings{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(name string, from, to State) {
			transitions <- [2]State{from, to}
		},
	})

	breaker.Execute(func() (any, error) { return nil, errBoom }) //nolint:errcheck

	select {
	case tr := <-transitions:
		assert.Equal(t, StateClosed, tr[0])
		assert.Equal(t, StateOpen, tr[1])
	case <-time.After(time.Second):
		t.Fatal("no state change notification received")
	}
}

func TestBreakerCounts(t *testing.T) {
	breaker := NewBreaker("test", Settings{FailureThreshold: 5, ResetTimeout: time.Minute})

	_, err := breaker.Execute(func() (any, error) { return "ok", nil })
	require.NoError(t, err)

	counts := breaker.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(0), counts.TotalFailures)

	breaker.Execute(func() (any, error) { return nil, errBoom }) //nolint:errcheck

	counts = breaker.Counts()
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned without invoking the operation while the
	// breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when the half-open trial slot is
	// already taken by a concurrent caller.
	ErrTooManyRequests = errors.New("too many requests")
)

// IsCircuitOpen reports whether err means the breaker rejected the call
// without running it.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker from closed to open.
	FailureThreshold uint32
	// ResetTimeout is the period of the open state until transitioning to
	// half-open. Checked lazily on the next call, not by a timer.
	ResetTimeout time.Duration
	// MaxRequests is the number of trial requests allowed in half-open
	// state. The default of 1 admits exactly one trial call.
	MaxRequests uint32
	// OnStateChange is called whenever the state changes. It is dispatched
	// on its own goroutine so observers can never block the call path.
	OnStateChange func(name string, from State, to State)
}

// Counts holds the statistics for the circuit breaker.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker guards one named downstream dependency. One call that exhausts its
// retries counts as a single failure toward the threshold.
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	counts     Counts
	expiry     time.Time
	generation uint64
}

// NewBreaker creates a circuit breaker for the named dependency.
func NewBreaker(name string, settings Settings) *Breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.ResetTimeout == 0 {
		settings.ResetTimeout = 30 * time.Second
	}
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}

	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
	}
}

// Name returns the dependency name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, applying the lazy open→half-open
// transition if the reset timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, _ := b.currentState(time.Now())
	return state
}

// Counts returns a copy of the internal counts.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Execute runs the operation if the breaker admits it. While open it fails
// with ErrCircuitOpen without invoking the operation; in half-open state only
// MaxRequests concurrent trials pass through.
func (b *Breaker) Execute(op func() (any, error)) (any, error) {
	generation, err := b.beforeRequest()
	if err != nil {
		return nil, err
	}

	defer func() {
		if e := recover(); e != nil {
			b.afterRequest(generation, false)
			panic(e)
		}
	}()

	result, err := op()
	b.afterRequest(generation, err == nil)
	return result, err
}

func (b *Breaker) beforeRequest() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, generation := b.currentState(now)

	if state == StateOpen {
		return generation, ErrCircuitOpen
	}

	if state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests {
		return generation, ErrTooManyRequests
	}

	b.counts.Requests++
	return generation, nil
}

func (b *Breaker) afterRequest(before uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, generation := b.currentState(now)

	// A state change happened while the request was in flight; its outcome
	// belongs to the previous generation and is discarded.
	if generation != before {
		return
	}

	if success {
		b.onSuccess(state, now)
	} else {
		b.onFailure(state, now)
	}
}

func (b *Breaker) onSuccess(state State, now time.Time) {
	switch state {
	case StateClosed:
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
	case StateHalfOpen:
		// Trial call succeeded: dependency recovered.
		b.setState(StateClosed, now)
	}
}

func (b *Breaker) onFailure(state State, now time.Time) {
	switch state {
	case StateClosed:
		b.counts.TotalFailures++
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		if b.counts.ConsecutiveFailures >= b.settings.FailureThreshold {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		// Trial call failed: back to open, reset timeout restarts.
		b.setState(StateOpen, now)
	}
}

// currentState returns the current state and generation, applying the lazy
// open→half-open transition.
func (b *Breaker) currentState(now time.Time) (State, uint64) {
	if b.state == StateOpen && b.expiry.Before(now) {
		b.setState(StateHalfOpen, now)
	}
	return b.state, b.generation
}

// setState changes the state and notifies observers off the call path.
func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.generation++
	b.counts = Counts{}

	switch state {
	case StateOpen:
		b.expiry = now.Add(b.settings.ResetTimeout)
	default:
		b.expiry = time.Time{}
	}

	if b.settings.OnStateChange != nil {
		go b.settings.OnStateChange(b.name, prev, state)
	}
}

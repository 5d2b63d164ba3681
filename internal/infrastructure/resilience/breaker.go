package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
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

// Settings configures the circuit breaker behavior
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int
	// Cooldown is how long the circuit stays open before probing again
	Cooldown time.Duration
	// HalfOpenRequests is the number of trial calls allowed while half-open;
	// that many successes close the circuit
	HalfOpenRequests int
	// OnStateChange is called outside the lock whenever the state changes
	OnStateChange func(name string, from State, to State)
}

// Counts holds the statistics for the current state
type Counts struct {
	Requests             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker stops calling a remote that keeps failing. After Cooldown it lets
// a few trial calls through; their outcome decides whether to close again.
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	inFlight int
}

// New creates a circuit breaker. Zero settings fall back to 5 failures,
// a 30s cooldown and one trial request.
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.HalfOpenRequests <= 0 {
		settings.HalfOpenRequests = 1
	}
	return &Breaker{name: name, settings: settings, now: time.Now}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string { return b.name }

// State returns the current state, moving an expired open circuit to half-open
func (b *Breaker) State() State {
	b.mu.Lock()
	state, change := b.refresh()
	b.mu.Unlock()
	b.notify(change)
	return state
}

// Counts returns a copy of the counts for the current state
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Allow reserves a call slot. The caller must report the outcome through
// done exactly once.
func (b *Breaker) Allow() (done func(success bool), err error) {
	b.mu.Lock()
	state, change := b.refresh()
	switch {
	case state == StateOpen:
		err = ErrCircuitOpen
	case state == StateHalfOpen && b.inFlight >= b.settings.HalfOpenRequests:
		err = ErrTooManyRequests
	default:
		b.counts.Requests++
		b.inFlight++
	}
	b.mu.Unlock()
	b.notify(change)
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func(success bool) {
		once.Do(func() { b.finish(success) })
	}, nil
}

// Execute runs fn if the circuit accepts it and records the outcome
func (b *Breaker) Execute(fn func() error) error {
	done, err := b.Allow()
	if err != nil {
		return err
	}

	ok := false
	defer func() { done(ok) }()

	err = fn()
	ok = err == nil
	return err
}

// Call is Execute for functions returning a value
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var result T
	err := b.Execute(func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}

func (b *Breaker) finish(success bool) {
	b.mu.Lock()
	b.inFlight--
	state, change := b.refresh()

	if success {
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && int(b.counts.ConsecutiveSuccesses) >= b.settings.HalfOpenRequests {
			change = b.transition(StateClosed)
		}
	} else {
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		if state == StateHalfOpen || int(b.counts.ConsecutiveFailures) >= b.settings.FailureThreshold {
			change = b.transition(StateOpen)
		}
	}
	b.mu.Unlock()
	b.notify(change)
}

type stateChange struct {
	from, to State
}

// refresh moves an open circuit to half-open once the cooldown has passed.
// Must hold b.mu.
func (b *Breaker) refresh() (State, *stateChange) {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		return StateHalfOpen, b.transition(StateHalfOpen)
	}
	return b.state, nil
}

// transition changes state and resets counts. Must hold b.mu.
func (b *Breaker) transition(to State) *stateChange {
	if b.state == to {
		return nil
	}
	change := &stateChange{from: b.state, to: to}
	b.state = to
	b.counts = Counts{}
	if to == StateOpen {
		b.openedAt = b.now()
	}
	return change
}

func (b *Breaker) notify(change *stateChange) {
	if change != nil && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, change.from, change.to)
	}
}

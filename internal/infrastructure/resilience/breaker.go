package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while an upstream is being skipped.
var ErrCircuitOpen = errors.New("circuit breaker is open")

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

// DefaultCooldown applies when Settings leaves Cooldown unset.
const DefaultCooldown = time.Minute

// Settings configures a breaker guarding one upstream. The zero value
// disables the breaker.
type Settings struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	// Zero turns the breaker off.
	Threshold int
	// Cooldown is how long the circuit stays open before one trial call.
	Cooldown time.Duration
	// OnStateChange is called, outside the lock, whenever the state changes.
	OnStateChange func(name string, from, to State)
}

// Enabled reports whether the settings describe an active breaker.
func (s Settings) Enabled() bool {
	return s.Threshold > 0
}

// Breaker skips calls to an upstream that keeps failing. After Cooldown a
// single trial call is let through; its outcome closes or reopens the circuit.
// A disabled breaker lets every call through and stays closed.
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool
}

// New creates a closed breaker.
func New(name string, settings Settings) *Breaker {
	if settings.Cooldown <= 0 {
		settings.Cooldown = DefaultCooldown
	}
	return &Breaker{name: name, settings: settings, now: time.Now}
}

// State returns the current state, moving an expired open circuit to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	from := b.state
	b.advance()
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return to
}

// Allow reserves a call. It returns ErrCircuitOpen while the circuit is open
// or while the half-open trial call is still in flight.
func (b *Breaker) Allow() error {
	if !b.settings.Enabled() {
		return nil
	}
	b.mu.Lock()
	from := b.state
	b.advance()
	to := b.state

	var err error
	switch b.state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if b.trial {
			err = ErrCircuitOpen
		} else {
			b.trial = true
		}
	}
	b.mu.Unlock()

	b.notify(from, to)
	return err
}

// Report records the outcome of a call reserved with Allow.
func (b *Breaker) Report(success bool) {
	if !b.settings.Enabled() {
		return
	}
	b.mu.Lock()
	from := b.state
	b.trial = false

	if success {
		b.failures = 0
		b.state = StateClosed
	} else {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.settings.Threshold {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

// advance must be called with mu held.
func (b *Breaker) advance() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		b.state = StateHalfOpen
		b.trial = false
	}
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}

// Do runs fn through the breaker. Cancellation by the caller's own context is
// not held against the upstream.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}

	result, err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		b.mu.Lock()
		b.trial = false
		b.mu.Unlock()
		return zero, err
	}
	b.Report(err == nil)
	if err != nil {
		return zero, err
	}
	return result, nil
}

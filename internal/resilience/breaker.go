package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned without calling the wrapped operation while a
// breaker is open.
var ErrBreakerOpen = errors.New("circuit breaker open")

// BreakerState is the state of a Breaker.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half-open"
)

const (
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 60 * time.Second
)

// BreakerSnapshot is a point-in-time view of a Breaker.
type BreakerSnapshot struct {
	Name        string       `json:"name"`
	State       BreakerState `json:"state"`
	Failures    int          `json:"failures"`
	Threshold   int          `json:"threshold"`
	LastFailure *time.Time   `json:"last_failure,omitempty"`
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithBreakerClock replaces time.Now. Used by tests.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

// Breaker guards one external dependency. After threshold consecutive
// failures it opens and rejects calls until cooldown has elapsed since the
// last failure; the next call is then admitted as a single probe.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	probing     bool
}

// NewBreaker creates a closed Breaker. Non-positive values use the defaults.
func NewBreaker(name string, threshold int, cooldown time.Duration, opts ...BreakerOption) *Breaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	b := &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		state:     StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the dependency name.
func (b *Breaker) Name() string { return b.name }

// Execute runs op unless the breaker rejects the call.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := op(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		b.RecordFailure()
		return err
	}
	if err != nil {
		// A caller cancellation says nothing about the dependency.
		b.releaseProbe()
		return err
	}
	b.RecordSuccess()
	return nil
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.cooldown {
			return fmt.Errorf("%s: %w", b.name, ErrBreakerOpen)
		}
		b.state = StateHalfOpen
		b.probing = true
		slog.Info("breaker: half-open, probing", "breaker", b.name)
		return nil
	case StateHalfOpen:
		if b.probing {
			return fmt.Errorf("%s: %w (probe in flight)", b.name, ErrBreakerOpen)
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) releaseProbe() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

// RecordFailure counts a failure and opens the breaker at the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	b.probing = false
	if b.failures >= b.threshold && b.state != StateOpen {
		b.state = StateOpen
		slog.Warn("breaker: opened", "breaker", b.name, "failures", b.failures)
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		slog.Info("breaker: closed after recovery", "breaker", b.name)
	}
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// State returns the current state without applying the lazy cooldown check.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the state for observability.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := BreakerSnapshot{
		Name:      b.name,
		State:     b.state,
		Failures:  b.failures,
		Threshold: b.threshold,
	}
	if !b.lastFailure.IsZero() {
		t := b.lastFailure
		s.LastFailure = &t
	}
	return s
}

package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Backoff selects how the delay grows between attempts.
type Backoff string

const (
	BackoffExponential Backoff = "exponential"
	BackoffLinear      Backoff = "linear"
)

// Policy configures a Retrier.
type Policy struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Backoff     Backoff       `yaml:"backoff" json:"backoff"`
}

// DefaultPolicy returns 3 attempts, 1s base delay, exponential backoff capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Backoff:     BackoffExponential,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Backoff != BackoffLinear {
		p.Backoff = BackoffExponential
	}
	return p
}

// RetryObserver is notified before each backoff sleep.
type RetryObserver func(name string, attempt int, err error, delay time.Duration)

// RetryOption configures a Retrier.
type RetryOption func(*Retrier)

// WithRetryObserver registers a callback invoked before every retry.
func WithRetryObserver(fn RetryObserver) RetryOption {
	return func(r *Retrier) { r.observer = fn }
}

// WithSleep replaces the context-aware sleep. Used by tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(r *Retrier) { r.sleep = fn }
}

// Retrier runs an operation with bounded, classification-aware retry.
type Retrier struct {
	policy   Policy
	observer RetryObserver
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a Retrier. Zero policy fields fall back to DefaultPolicy.
func NewRetrier(policy Policy, opts ...RetryOption) *Retrier {
	r := &Retrier{
		policy: policy.normalized(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the effective policy.
func (r *Retrier) Policy() Policy { return r.policy }

// Do executes op until it succeeds, fails fatally, or MaxAttempts is reached.
func (r *Retrier) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			slog.Info("retry: attempting", "op", name, "attempt", attempt+1, "max", r.policy.MaxAttempts)
		}
		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				slog.Info("retry: succeeded", "op", name, "attempt", attempt+1)
			}
			return nil
		}
		lastErr = err

		class := Classify(err)
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, errors.Join(lastErr, ctx.Err()))
		}
		if class == ClassFatal {
			slog.Warn("retry: not retryable", "op", name, "err", err)
			return err
		}
		if attempt == r.policy.MaxAttempts-1 {
			slog.Warn("retry: attempts exhausted", "op", name, "attempts", r.policy.MaxAttempts, "err", err)
			return err
		}

		delay := r.Delay(attempt, err)
		slog.Info("retry: backing off", "op", name, "attempt", attempt+1, "delay", delay, "class", class.String(), "err", err)
		if r.observer != nil {
			r.observer(name, attempt+1, err, delay)
		}
		if serr := r.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("%s: %w", name, errors.Join(lastErr, serr))
		}
	}
	return lastErr
}

// Retry is the value-returning form of Retrier.Do.
func Retry[T any](ctx context.Context, r *Retrier, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, name, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Delay computes the wait after the given 0-based failed attempt.
func (r *Retrier) Delay(attempt int, err error) time.Duration {
	p := r.policy
	rateLimited := Classify(err) == ClassRateLimited

	var delay time.Duration
	switch p.Backoff {
	case BackoffLinear:
		delay = p.BaseDelay * time.Duration(attempt+1)
	default:
		base := 2.0
		if rateLimited {
			base = 3.0
		}
		// 2s, 4s, 8s for ordinary failures; 3s, 9s, 27s when rate limited.
		delay = time.Duration(float64(p.BaseDelay) * math.Pow(base, float64(attempt+1)))
	}
	if delay > p.MaxDelay || delay < 0 {
		delay = p.MaxDelay
	}

	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > delay {
		delay = rl.RetryAfter
	}
	return delay
}

// sleepContext waits for d, returning early with ctx.Err() on cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

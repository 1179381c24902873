package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueFull is returned by Limiter.Do when a bounded queue is at capacity.
var ErrQueueFull = errors.New("rate limiter queue is full")

// DefaultMinInterval is the spacing applied when none is configured.
const DefaultMinInterval = 2 * time.Second

// LimiterStats is a point-in-time view of a Limiter.
type LimiterStats struct {
	Name          string `json:"name"`
	QueueLength   int    `json:"queue_length"`
	Busy          bool   `json:"busy"`
	MinIntervalMs int64  `json:"min_interval_ms"`
	MaxQueue      int    `json:"max_queue,omitempty"`
}

type limiterJob struct {
	ctx  context.Context
	run  func(ctx context.Context) error
	done chan error
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithMaxQueue bounds the number of waiting callers. Zero means unbounded.
func WithMaxQueue(n int) LimiterOption {
	return func(l *Limiter) { l.maxQueue = n }
}

// Limiter serializes operations through a single FIFO worker and keeps at
// least minInterval between consecutive dispatch starts.
//
// The queue is unbounded unless WithMaxQueue is set: a burst of callers
// waits (honouring their contexts) rather than being rejected.
type Limiter struct {
	name string

	mu          sync.Mutex
	queue       []*limiterJob
	busy        bool
	last        time.Time
	minInterval time.Duration
	maxQueue    int
}

// NewLimiter creates a Limiter. A non-positive interval uses DefaultMinInterval.
func NewLimiter(name string, minInterval time.Duration, opts ...LimiterOption) *Limiter {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	l := &Limiter{name: name, minInterval: minInterval}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Do queues op and blocks until it has run. If ctx ends while op is still
// queued, op is dropped and ctx.Err() returned; once dispatched, op runs to
// completion under its own ctx.
func (l *Limiter) Do(ctx context.Context, op func(ctx context.Context) error) error {
	job := &limiterJob{ctx: ctx, run: op, done: make(chan error, 1)}

	l.mu.Lock()
	if l.maxQueue > 0 && len(l.queue) >= l.maxQueue {
		l.mu.Unlock()
		slog.Warn("ratelimit: queue full, rejecting", "limiter", l.name, "max_queue", l.maxQueue)
		return ErrQueueFull
	}
	l.queue = append(l.queue, job)
	if !l.busy {
		l.busy = true
		go l.drain()
	}
	l.mu.Unlock()

	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		if l.remove(job) {
			return ctx.Err()
		}
		return <-job.done
	}
}

// Throttle is the value-returning form of Limiter.Do.
func Throttle[T any](ctx context.Context, l *Limiter, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := l.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// drain is the single consumer. It exits when the queue is empty; the next
// Do restarts it.
func (l *Limiter) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.busy = false
			l.mu.Unlock()
			return
		}
		wait := l.minInterval - time.Since(l.last)
		l.mu.Unlock()

		if wait > 0 {
			time.Sleep(wait)
		}

		l.mu.Lock()
		if len(l.queue) == 0 {
			l.busy = false
			l.mu.Unlock()
			return
		}
		job := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.last = time.Now()
		l.mu.Unlock()

		job.done <- job.run(job.ctx)
	}
}

func (l *Limiter) remove(job *limiterJob) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, j := range l.queue {
		if j == job {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return true
		}
	}
	return false
}

// SetMinInterval changes the spacing for subsequent dispatches.
func (l *Limiter) SetMinInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	l.minInterval = d
	l.mu.Unlock()
}

// Stats returns the queue depth and busy state.
func (l *Limiter) Stats() LimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LimiterStats{
		Name:          l.name,
		QueueLength:   len(l.queue),
		Busy:          l.busy,
		MinIntervalMs: l.minInterval.Milliseconds(),
		MaxQueue:      l.maxQueue,
	}
}

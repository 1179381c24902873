package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestLimiter_FIFOAndMinInterval(t *testing.T) {
	const interval = 30 * time.Millisecond
	l := NewLimiter("test", interval)

	var mu sync.Mutex
	var order []int
	var starts []time.Time

	gate := make(chan struct{})
	var wg sync.WaitGroup

	// The first job holds the worker so the rest queue up in a known order.
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = l.Do(context.Background(), func(context.Context) error {
			mu.Lock()
			order = append(order, 0)
			starts = append(starts, time.Now())
			mu.Unlock()
			<-gate
			return nil
		})
	}()
	waitFor(t, func() bool { return l.Stats().Busy && l.Stats().QueueLength == 0 })

	const n = 5
	for i := 1; i <= n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				starts = append(starts, time.Now())
				mu.Unlock()
				return nil
			})
		}()
		waitFor(t, func() bool { return l.Stats().QueueLength == i })
	}

	close(gate)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, order)
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, interval-2*time.Millisecond, "gap %d", i)
	}
	waitFor(t, func() bool { return !l.Stats().Busy })
}

func TestLimiter_ReturnsOperationError(t *testing.T) {
	l := NewLimiter("err", time.Millisecond)
	want := errors.New("boom")
	err := l.Do(context.Background(), func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)

	v, err := Throttle(context.Background(), l, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestLimiter_CancelledWhileQueuedIsDropped(t *testing.T) {
	l := NewLimiter("cancel", time.Millisecond)

	gate := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = l.Do(context.Background(), func(context.Context) error {
			<-gate
			return nil
		})
		close(done)
	}()
	waitFor(t, func() bool { return l.Stats().Busy })

	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Do(ctx, func(context.Context) error {
			ran = true
			return nil
		})
	}()
	waitFor(t, func() bool { return l.Stats().QueueLength == 1 })
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, l.Stats().QueueLength)

	close(gate)
	<-done
	assert.False(t, ran)
}

func TestLimiter_BoundedQueueRejects(t *testing.T) {
	l := NewLimiter("bounded", time.Millisecond, WithMaxQueue(1))

	gate := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = l.Do(context.Background(), func(context.Context) error { <-gate; return nil })
	}()
	waitFor(t, func() bool { return l.Stats().Busy && l.Stats().QueueLength == 0 })
	go func() {
		defer wg.Done()
		_ = l.Do(context.Background(), func(context.Context) error { return nil })
	}()
	waitFor(t, func() bool { return l.Stats().QueueLength == 1 })

	err := l.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)

	close(gate)
	wg.Wait()
}

func TestLimiter_DefaultsAndSetInterval(t *testing.T) {
	l := NewLimiter("defaults", 0)
	assert.Equal(t, int64(2000), l.Stats().MinIntervalMs)
	l.SetMinInterval(500 * time.Millisecond)
	assert.Equal(t, int64(500), l.Stats().MinIntervalMs)
	l.SetMinInterval(-1)
	assert.Equal(t, int64(500), l.Stats().MinIntervalMs)
}

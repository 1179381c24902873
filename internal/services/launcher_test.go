package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingExecutor holds every run until release is closed or the run
// context ends.
type blockingExecutor struct {
	mu       sync.Mutex
	started  chan string
	release  chan struct{}
	deadline []bool
	errs     []error
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{started: make(chan string, 4), release: make(chan struct{})}
}

func (b *blockingExecutor) Execute(ctx context.Context, id string) Result {
	_, hasDeadline := ctx.Deadline()
	b.started <- id
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	b.mu.Lock()
	b.deadline = append(b.deadline, hasDeadline)
	b.errs = append(b.errs, ctx.Err())
	b.mu.Unlock()
	return Result{Success: ctx.Err() == nil, WorkflowID: id}
}

func TestLauncher_StartDetachesFromRequest(t *testing.T) {
	exec := newBlockingExecutor()
	l := NewLauncher(exec, time.Minute)

	reqCtx, cancel := context.WithCancel(context.Background())
	id := l.Start(reqCtx)
	require.NotEmpty(t, id)
	assert.Equal(t, id, <-exec.started)
	assert.Equal(t, 1, l.InFlight())

	cancel()
	close(exec.release)
	l.Wait()

	assert.Equal(t, 0, l.InFlight())
	require.Len(t, exec.errs, 1)
	assert.NoError(t, exec.errs[0], "request cancellation does not stop the run")
	assert.True(t, exec.deadline[0])
}

func TestLauncher_RunCeiling(t *testing.T) {
	exec := newBlockingExecutor()
	l := NewLauncher(exec, 20*time.Millisecond)

	res := l.Run(context.Background())
	<-exec.started
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.WorkflowID)
	require.Len(t, exec.errs, 1)
	assert.ErrorIs(t, exec.errs[0], context.DeadlineExceeded)
}

func TestLauncher_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultRunTimeout, NewLauncher(newBlockingExecutor(), 0).Timeout())
}

package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soochol/blogforge/internal/blog"
)

// DefaultRunTimeout is the wall-clock ceiling of a single run.
const DefaultRunTimeout = 5 * time.Minute

// Executor runs one workflow to completion.
type Executor interface {
	Execute(ctx context.Context, workflowID string) Result
}

// Launcher starts workflow runs under a wall-clock ceiling and tracks the
// runs in flight so shutdown can wait for them.
type Launcher struct {
	exec     Executor
	timeout  time.Duration
	newID    func() string
	wg       sync.WaitGroup
	inFlight atomic.Int64
	logger   *slog.Logger
}

// NewLauncher creates a Launcher. timeout <= 0 uses DefaultRunTimeout.
func NewLauncher(exec Executor, timeout time.Duration) *Launcher {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Launcher{
		exec:    exec,
		timeout: timeout,
		newID:   blog.NewWorkflowID,
		logger:  slog.Default(),
	}
}

// Start launches a run in the background and returns its workflow ID at
// once. The run is detached from ctx cancellation; only the ceiling stops it.
func (l *Launcher) Start(ctx context.Context) string {
	id := l.newID()
	l.wg.Add(1)
	l.inFlight.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.inFlight.Add(-1)
		defer func() {
			if rec := recover(); rec != nil {
				l.logger.Error("launcher: run panicked", "workflow_id", id, "panic", rec)
			}
		}()
		l.execute(context.WithoutCancel(ctx), id)
	}()
	l.logger.Info("launcher: run started", "workflow_id", id)
	return id
}

// Run executes a run synchronously under the same ceiling as Start.
func (l *Launcher) Run(ctx context.Context) Result {
	id := l.newID()
	l.wg.Add(1)
	l.inFlight.Add(1)
	defer l.wg.Done()
	defer l.inFlight.Add(-1)
	return l.execute(ctx, id)
}

func (l *Launcher) execute(ctx context.Context, id string) Result {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.exec.Execute(ctx, id)
}

// Wait blocks until every started run has returned.
func (l *Launcher) Wait() { l.wg.Wait() }

// InFlight reports the number of runs currently executing.
func (l *Launcher) InFlight() int { return int(l.inFlight.Load()) }

// Timeout reports the per-run ceiling.
func (l *Launcher) Timeout() time.Duration { return l.timeout }

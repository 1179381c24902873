package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/repository"
)

// stepWriteTimeout bounds a single step-log write. Writes run on a context
// detached from the run so a terminal record survives the run deadline.
const stepWriteTimeout = 5 * time.Second

// StepDetail carries the optional parts of a step record.
type StepDetail struct {
	Metadata map[string]any
	Err      error
	Duration time.Duration
}

// StepLogger appends step records for workflow runs. Logging is a side
// channel: write failures are reported through slog and never returned.
type StepLogger struct {
	repo   repository.StepRepository
	logger *slog.Logger
}

// NewStepLogger creates a StepLogger over repo.
func NewStepLogger(repo repository.StepRepository, logger *slog.Logger) *StepLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &StepLogger{repo: repo, logger: logger}
}

// Log appends one record. Duration is recorded only for terminal statuses.
func (l *StepLogger) Log(ctx context.Context, workflowID string, step blog.StepName, status blog.StepStatus, d StepDetail) {
	rec := &blog.StepRecord{
		WorkflowID: workflowID,
		StepName:   step,
		Status:     status,
		Metadata:   d.Metadata,
	}
	if status.Terminal() {
		ms := d.Duration.Milliseconds()
		rec.DurationMs = &ms
	}
	if d.Err != nil {
		rec.ErrorMessage = d.Err.Error()
		rec.ErrorStack = errorChain(d.Err)
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stepWriteTimeout)
	defer cancel()
	if err := l.repo.Append(wctx, rec); err != nil {
		l.logger.Warn("steplog: append failed",
			"workflow_id", workflowID, "step", step, "status", status, "err", err)
	}
}

// errorChain renders the wrap chain of err, outermost first, one error per
// line with its dynamic type.
func errorChain(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, fmt.Sprintf("%T: %s", e, e.Error()))
		if len(lines) == 16 {
			break
		}
	}
	return strings.Join(lines, "\n")
}

// StatusService derives workflow status from the step log.
type StatusService struct {
	repo repository.StepRepository
}

// NewStatusService creates a StatusService over repo.
func NewStatusService(repo repository.StepRepository) *StatusService {
	return &StatusService{repo: repo}
}

// Status returns the derived status of a workflow, or repository.ErrNotFound
// when no records exist for it.
func (s *StatusService) Status(ctx context.Context, workflowID string) (*blog.WorkflowStatus, error) {
	records, err := s.repo.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list steps for %s: %w", workflowID, err)
	}
	st := blog.DeriveStatus(workflowID, records)
	if st == nil {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, repository.ErrNotFound)
	}
	return st, nil
}

package repository

import (
	"context"

	"github.com/soochol/blogforge/internal/blog"
)

// StepRepository is the append-only store of step log records.
type StepRepository interface {
	// Append assigns ID, StepNumber and CreatedAt and stores rec.
	Append(ctx context.Context, rec *blog.StepRecord) error
	// ListByWorkflow returns the workflow's records in creation order.
	ListByWorkflow(ctx context.Context, workflowID string) ([]blog.StepRecord, error)
}

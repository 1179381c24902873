package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soochol/blogforge/internal/blog"
)

var _ StepRepository = (*PersistentStepRepository)(nil)

// StepDB defines the DB-layer methods needed by the persistent step repo.
// *db.DB satisfies this interface.
type StepDB interface {
	AppendStep(ctx context.Context, rec *blog.StepRecord) error
	ListSteps(ctx context.Context, workflowID string) ([]blog.StepRecord, error)
}

// PersistentStepRepository writes step logs to PostgreSQL. A record the
// database rejects is kept in memory and the error is returned; reads fall
// back to memory when the database is unavailable.
type PersistentStepRepository struct {
	mem *MemoryStepRepository
	db  StepDB
}

func NewPersistentStepRepository(mem *MemoryStepRepository, db StepDB) *PersistentStepRepository {
	return &PersistentStepRepository{mem: mem, db: db}
}

func (r *PersistentStepRepository) Append(ctx context.Context, rec *blog.StepRecord) error {
	if err := r.db.AppendStep(ctx, rec); err != nil {
		_ = r.mem.Append(ctx, rec)
		return fmt.Errorf("db append step: %w", err)
	}
	return nil
}

func (r *PersistentStepRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]blog.StepRecord, error) {
	recs, err := r.db.ListSteps(ctx, workflowID)
	if err == nil {
		return recs, nil
	}
	slog.Warn("db list workflow logs failed, falling back to in-memory", "workflow_id", workflowID, "err", err)
	return r.mem.ListByWorkflow(ctx, workflowID)
}

package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soochol/blogforge/internal/blog"
)

var _ StepRepository = (*MemoryStepRepository)(nil)

const maxStepWorkflows = 1000

// MemoryStepRepository keeps step logs in memory, evicting the oldest
// workflow once maxStepWorkflows are held.
type MemoryStepRepository struct {
	mu    sync.RWMutex
	logs  map[string][]blog.StepRecord
	order []string
	last  time.Time
	now   func() time.Time
}

func NewMemoryStepRepository(opts ...Option) *MemoryStepRepository {
	o := newOptions(opts)
	return &MemoryStepRepository{
		logs: make(map[string][]blog.StepRecord),
		now:  o.now,
	}
}

func (r *MemoryStepRepository) Append(_ context.Context, rec *blog.StepRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	log, ok := r.logs[rec.WorkflowID]
	if !ok {
		if len(r.order) >= maxStepWorkflows {
			oldest := r.order[0]
			r.order = r.order[1:]
			delete(r.logs, oldest)
		}
		r.order = append(r.order, rec.WorkflowID)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.StepNumber = len(log) + 1
	// Creation times never go backwards, so ordering by time matches append order.
	now := r.now()
	if now.Before(r.last) {
		now = r.last
	}
	r.last = now
	rec.CreatedAt = now

	r.logs[rec.WorkflowID] = append(log, *rec)
	return nil
}

func (r *MemoryStepRepository) ListByWorkflow(_ context.Context, workflowID string) ([]blog.StepRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	log := r.logs[workflowID]
	out := make([]blog.StepRecord, len(log))
	copy(out, log)
	return out, nil
}

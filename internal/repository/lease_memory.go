package repository

import (
	"context"
	"sync"
	"time"
)

var _ LeaseRepository = (*MemoryLeaseRepository)(nil)

type lease struct {
	holder    string
	heartbeat time.Time
}

// MemoryLeaseRepository grants leases within one process.
type MemoryLeaseRepository struct {
	mu     sync.Mutex
	leases map[string]*lease
	now    func() time.Time
}

func NewMemoryLeaseRepository(opts ...Option) *MemoryLeaseRepository {
	o := newOptions(opts)
	return &MemoryLeaseRepository{leases: make(map[string]*lease), now: o.now}
}

func (r *MemoryLeaseRepository) Acquire(_ context.Context, name, holder string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if l, ok := r.leases[name]; ok && l.holder != holder && now.Sub(l.heartbeat) < ttl {
		return false, nil
	}
	r.leases[name] = &lease{holder: holder, heartbeat: now}
	return true, nil
}

func (r *MemoryLeaseRepository) Heartbeat(_ context.Context, name, holder string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.leases[name]
	if !ok || l.holder != holder {
		return false, nil
	}
	l.heartbeat = r.now()
	return true, nil
}

func (r *MemoryLeaseRepository) Release(_ context.Context, name, holder string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.leases[name]; ok && l.holder == holder {
		delete(r.leases, name)
	}
	return nil
}

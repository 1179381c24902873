package repository

import (
	"context"
	"time"
)

// LeaseRepository grants named advisory leases. A lease whose holder has
// not heartbeated within ttl may be taken over.
type LeaseRepository interface {
	Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	Heartbeat(ctx context.Context, name, holder string) (bool, error)
	Release(ctx context.Context, name, holder string) error
}

// LeaseDB defines the DB-layer methods needed by the persistent lease repo.
// *db.DB satisfies this interface.
type LeaseDB interface {
	AcquireLease(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	HeartbeatLease(ctx context.Context, name, holder string) (bool, error)
	ReleaseLease(ctx context.Context, name, holder string) error
}

// PersistentLeaseRepository shares leases between processes through PostgreSQL.
type PersistentLeaseRepository struct {
	db LeaseDB
}

func NewPersistentLeaseRepository(db LeaseDB) *PersistentLeaseRepository {
	return &PersistentLeaseRepository{db: db}
}

func (r *PersistentLeaseRepository) Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	return r.db.AcquireLease(ctx, name, holder, ttl)
}

func (r *PersistentLeaseRepository) Heartbeat(ctx context.Context, name, holder string) (bool, error) {
	return r.db.HeartbeatLease(ctx, name, holder)
}

func (r *PersistentLeaseRepository) Release(ctx context.Context, name, holder string) error {
	return r.db.ReleaseLease(ctx, name, holder)
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// leaseAcquire inserts the lease or takes it over when the current holder
// is the caller or has not heartbeated within ttl.
func leaseAcquire(name, holder string, ttl time.Duration) (string, []any, error) {
	return psql.Insert("workflow_leases").
		Columns("name", "holder", "acquired_at", "heartbeat_at").
		Values(name, holder, sq.Expr("NOW()"), sq.Expr("NOW()")).
		Suffix(`ON CONFLICT (name) DO UPDATE
			SET holder = EXCLUDED.holder, acquired_at = NOW(), heartbeat_at = NOW()
			WHERE workflow_leases.holder = EXCLUDED.holder
			   OR workflow_leases.heartbeat_at < NOW() - make_interval(secs => ?)
			RETURNING holder`, ttl.Seconds()).
		ToSql()
}

// AcquireLease reports whether holder now owns the named lease.
func (d *DB) AcquireLease(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	query, args, err := leaseAcquire(name, holder, ttl)
	if err != nil {
		return false, fmt.Errorf("build acquire lease: %w", err)
	}
	var got string
	err = d.Pool.QueryRowContext(ctx, query, args...).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	return got == holder, nil
}

// HeartbeatLease refreshes a held lease. It returns false when holder no
// longer owns it.
func (d *DB) HeartbeatLease(ctx context.Context, name, holder string) (bool, error) {
	query, args, err := psql.Update("workflow_leases").
		Set("heartbeat_at", sq.Expr("NOW()")).
		Where(sq.Eq{"name": name, "holder": holder}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build heartbeat lease: %w", err)
	}
	res, err := d.Pool.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("heartbeat lease %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat lease %s: %w", name, err)
	}
	return n == 1, nil
}

// ReleaseLease drops the lease if holder owns it.
func (d *DB) ReleaseLease(ctx context.Context, name, holder string) error {
	query, args, err := psql.Delete("workflow_leases").
		Where(sq.Eq{"name": name, "holder": holder}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build release lease: %w", err)
	}
	if _, err := d.Pool.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("release lease %s: %w", name, err)
	}
	return nil
}

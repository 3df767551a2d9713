package postgres

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.QuotaCounter = (*QuotaCounter)(nil)
	_ driven.RunLock      = (*Lock)(nil)
)

// QuotaCounter returns a daily call counter shared by every process using
// this database.
func (db *DB) QuotaCounter() driven.QuotaCounter {
	return &QuotaCounter{db: db}
}

// RunLock returns a named lock kept in this database. Each call creates a
// new owner.
func (db *DB) RunLock() driven.RunLock {
	hostname, _ := os.Hostname()
	return &Lock{
		db:    db,
		owner: fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.NewString()),
	}
}

// QuotaCounter implements driven.QuotaCounter using PostgreSQL.
type QuotaCounter struct {
	db *DB
}

// Increment adds one call to the day's count and returns the new total.
func (q *QuotaCounter) Increment(ctx context.Context, day string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO quota_counts (day, calls) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET calls = quota_counts.calls + 1
		RETURNING calls
	`, day).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("incrementing quota %s: %w", day, err)
	}
	return n, nil
}

// Count returns the day's count.
func (q *QuotaCounter) Count(ctx context.Context, day string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(calls), 0) FROM quota_counts WHERE day = $1", day).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("reading quota %s: %w", day, err)
	}
	return n, nil
}

// Lock implements driven.RunLock using PostgreSQL rows with an expiry.
type Lock struct {
	db    *DB
	owner string
}

// Acquire takes the lock when no row exists or the existing one has expired.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	now := l.db.now().UTC()
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO run_locks (name, owner, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			owner = EXCLUDED.owner,
			expires_at = EXCLUDED.expires_at
		WHERE run_locks.expires_at <= $4
	`, name, l.owner, now.Add(ttl), now)
	if err != nil {
		return false, fmt.Errorf("acquiring lock %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquiring lock %s: %w", name, err)
	}
	return n == 1, nil
}

// Release drops the lock if this owner holds it.
func (l *Lock) Release(ctx context.Context, name string) error {
	_, err := l.db.ExecContext(ctx,
		"DELETE FROM run_locks WHERE name = $1 AND owner = $2", name, l.owner)
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", name, err)
	}
	return nil
}

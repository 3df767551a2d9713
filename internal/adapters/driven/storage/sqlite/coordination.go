package sqlite

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
	_ driven.QuotaCounter = (*quotaCounter)(nil)
	_ driven.RunLock      = (*runLock)(nil)
)

// QuotaCounter returns a daily call counter kept in the database, so every
// process using the same file counts against one ceiling.
func (s *Store) QuotaCounter() driven.QuotaCounter {
	return &quotaCounter{store: s}
}

// RunLock returns a named lock kept in the database. Each call creates a
// new owner; a lock is only released by the owner that took it.
func (s *Store) RunLock() driven.RunLock {
	hostname, _ := os.Hostname()
	return &runLock{
		store: s,
		owner: fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.NewString()),
	}
}

// quotaCounter implements driven.QuotaCounter with one row per day.
type quotaCounter struct {
	store *Store
}

// Increment adds one call to the day's count and returns the new total.
func (q *quotaCounter) Increment(ctx context.Context, day string) (int64, error) {
	var n int64
	err := q.store.db.QueryRowContext(ctx, `
		INSERT INTO quota_counts (day, calls) VALUES (?, 1)
		ON CONFLICT(day) DO UPDATE SET calls = quota_counts.calls + 1
		RETURNING calls
	`, day).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("incrementing quota %s: %w", day, err)
	}
	return n, nil
}

// Count returns the day's count.
func (q *quotaCounter) Count(ctx context.Context, day string) (int64, error) {
	var n int64
	err := q.store.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(calls), 0) FROM quota_counts WHERE day = ?", day).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("reading quota %s: %w", day, err)
	}
	return n, nil
}

// runLock implements driven.RunLock with a row per held lock.
type runLock struct {
	store *Store
	owner string
}

// Acquire takes the lock when no row exists or the existing one has expired.
func (l *runLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	now := l.store.now().UTC()
	res, err := l.store.db.ExecContext(ctx, `
		INSERT INTO run_locks (name, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			owner = excluded.owner,
			expires_at = excluded.expires_at
		WHERE run_locks.expires_at <= ?
	`, name, l.owner, formatTime(now.Add(ttl)), formatTime(now))
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
func (l *runLock) Release(ctx context.Context, name string) error {
	_, err := l.store.db.ExecContext(ctx,
		"DELETE FROM run_locks WHERE name = ? AND owner = ?", name, l.owner)
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", name, err)
	}
	return nil
}

package driven

import (
	"context"
	"time"
)

// QuotaCounter tracks upstream calls against the daily ceiling.
// Shared implementations let several harvester processes respect one quota.
type QuotaCounter interface {
	// Increment adds one call to the day's count and returns the new total.
	Increment(ctx context.Context, day string) (int64, error)

	// Count returns the day's count without changing it.
	Count(ctx context.Context, day string) (int64, error)
}

// RunLock prevents two harvesting runs for the same job at once.
type RunLock interface {
	// Acquire attempts to take a named lock with the given TTL.
	// Returns false if another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release releases a named lock. Safe to call if not held.
	Release(ctx context.Context, name string) error
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// Ensure the coordination stores implement the interfaces.
var (
	_ driven.QuotaCounter = (*QuotaCounter)(nil)
	_ driven.RunLock      = (*RunLock)(nil)
)

// QuotaCounter is an in-process daily call counter.
type QuotaCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewQuotaCounter creates a new in-memory quota counter.
func NewQuotaCounter() *QuotaCounter {
	return &QuotaCounter{counts: make(map[string]int64)}
}

// Increment adds one call to the day's count.
func (q *QuotaCounter) Increment(_ context.Context, day string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.counts[day]++
	return q.counts[day], nil
}

// Count returns the day's count.
func (q *QuotaCounter) Count(_ context.Context, day string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.counts[day], nil
}

// RunLock is an in-process named lock with expiry.
type RunLock struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewRunLock creates a new in-memory run lock.
func NewRunLock() *RunLock {
	return &RunLock{held: make(map[string]time.Time), now: time.Now}
}

// Acquire takes the lock unless a live holder has it.
func (l *RunLock) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if until, ok := l.held[name]; ok && now.Before(until) {
		return false, nil
	}
	l.held[name] = now.Add(ttl)
	return true, nil
}

// Release drops the lock.
func (l *RunLock) Release(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}

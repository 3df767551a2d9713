// Package redis shares the daily request quota and the sync run lock
// between lexharvest processes through Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.QuotaCounter = (*QuotaCounter)(nil)
	_ driven.RunLock      = (*Lock)(nil)
)

const (
	quotaPrefix = "lexharvest:quota:"
	lockPrefix  = "lexharvest:lock:"

	// quotaTTL keeps a day's counter past midnight in every time zone.
	quotaTTL = 48 * time.Hour
)

// QuotaCounter counts upstream calls per day in Redis.
type QuotaCounter struct {
	client *redis.Client
}

// NewQuotaCounter creates a Redis-backed quota counter.
func NewQuotaCounter(client *redis.Client) *QuotaCounter {
	return &QuotaCounter{client: client}
}

// Increment adds one call to the day's count and returns the new total.
func (q *QuotaCounter) Increment(ctx context.Context, day string) (int64, error) {
	key := quotaPrefix + day
	pipe := q.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, quotaTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment quota %s: %w", day, err)
	}
	return incr.Val(), nil
}

// Count returns the day's count.
func (q *QuotaCounter) Count(ctx context.Context, day string) (int64, error) {
	n, err := q.client.Get(ctx, quotaPrefix+day).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read quota %s: %w", day, err)
	}
	return n, nil
}

// Lock implements driven.RunLock using Redis SETNX with TTL.
// It uses a unique owner ID to prevent accidental release by other processes.
type Lock struct {
	client  *redis.Client
	ownerID string
}

// NewLock creates a new Redis-backed run lock.
func NewLock(client *redis.Client) *Lock {
	hostname, _ := os.Hostname()
	return &Lock{
		client:  client,
		ownerID: fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.NewString()),
	}
}

// Acquire attempts to take a named lock with the given TTL.
// Returns false if another holder has it.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockPrefix+name, l.ownerID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// releaseScript deletes the lock only if this owner still holds it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release drops a named lock if held by this instance.
// Safe to call when the lock has expired or belongs to someone else.
func (l *Lock) Release(ctx context.Context, name string) error {
	_, err := releaseScript.Run(ctx, l.client, []string{lockPrefix + name}, l.ownerID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// OwnerID returns the identifier written into held locks.
func (l *Lock) OwnerID() string {
	return l.ownerID
}

// Ping checks that Redis is reachable.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

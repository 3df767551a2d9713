package lawapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

const (
	// HeaderRetryAfter is the retry-after header (seconds or HTTP date).
	HeaderRetryAfter = "Retry-After"

	// QuotaDayLayout formats the calendar day a quota count belongs to.
	QuotaDayLayout = "2006-01-02"
)

// quotaZone is the registry's calendar. Korea observes no daylight saving,
// so a fixed offset matches Asia/Seoul without a tz database.
var quotaZone = time.FixedZone("KST", 9*60*60)

// Clock abstracts time so throttling can be tested without sleeping.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// RateLimiter implements dual-strategy rate limiting for the registry:
// a proactive token bucket plus reactive Retry-After pauses, and a daily
// ceiling counted through a QuotaCounter.
type RateLimiter struct {
	mu           sync.Mutex
	bucket       *rate.Limiter
	clock        Clock
	quota        driven.QuotaCounter
	dailyLimit   int64
	blockedUntil time.Time
}

// NewRateLimiter creates a limiter at rps requests per second with burst 1.
// A nil quota counter or a non-positive dailyLimit disables the ceiling.
func NewRateLimiter(rps float64, dailyLimit int, quota driven.QuotaCounter, clock Clock) *RateLimiter {
	if clock == nil {
		clock = RealClock()
	}
	return &RateLimiter{
		bucket:     rate.NewLimiter(rate.Limit(rps), 1),
		clock:      clock,
		quota:      quota,
		dailyLimit: int64(dailyLimit),
	}
}

// Wait blocks until it is safe to make a request, then counts it against
// the daily ceiling. Returns domain.ErrDailyQuotaExceeded once the ceiling
// is reached.
func (r *RateLimiter) Wait(ctx context.Context) error {
	// 1. Honour a server-requested pause.
	r.mu.Lock()
	until := r.blockedUntil
	r.mu.Unlock()
	if d := until.Sub(r.clock.Now()); d > 0 {
		if err := r.clock.Sleep(ctx, d); err != nil {
			return err
		}
	}

	// 2. Token bucket, driven by our clock.
	now := r.clock.Now()
	res := r.bucket.ReserveN(now, 1)
	if !res.OK() {
		return fmt.Errorf("rate limiter: reservation refused")
	}
	if d := res.DelayFrom(now); d > 0 {
		if err := r.clock.Sleep(ctx, d); err != nil {
			res.CancelAt(r.clock.Now())
			return err
		}
	}

	// 3. Daily ceiling.
	if r.quota == nil || r.dailyLimit <= 0 {
		return nil
	}
	n, err := r.quota.Increment(ctx, r.Day())
	if err != nil {
		return fmt.Errorf("count request: %w", err)
	}
	if n > r.dailyLimit {
		return fmt.Errorf("%w: %d of %d calls used on %s", domain.ErrDailyQuotaExceeded, n-1, r.dailyLimit, r.Day())
	}
	return nil
}

// Day returns the quota day of the current instant.
func (r *RateLimiter) Day() string {
	return r.clock.Now().In(quotaZone).Format(QuotaDayLayout)
}

// Used returns the calls counted today, or 0 without a quota counter.
func (r *RateLimiter) Used(ctx context.Context) (int64, error) {
	if r.quota == nil {
		return 0, nil
	}
	return r.quota.Count(ctx, r.Day())
}

// BlockFor pauses every caller for d. Longer existing pauses are kept.
func (r *RateLimiter) BlockFor(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if until := r.clock.Now().Add(d); until.After(r.blockedUntil) {
		r.blockedUntil = until
	}
}

// RetryAfter parses the Retry-After header of a throttling response.
// Returns 0 if absent or unparseable.
func (r *RateLimiter) RetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get(HeaderRetryAfter)
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return at.Sub(r.clock.Now())
	}
	return 0
}

// Clock returns the limiter's clock.
func (r *RateLimiter) Clock() Clock {
	return r.clock
}

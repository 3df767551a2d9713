package lawapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

func TestRateLimiter_SpacesCallsByRate(t *testing.T) {
	clock := newFakeClock()
	r := NewRateLimiter(2, 0, nil, clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Wait(context.Background()))
	}

	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, clock.sleeps)
}

func TestRateLimiter_BlockForDelaysNextCall(t *testing.T) {
	clock := newFakeClock()
	r := NewRateLimiter(100, 0, nil, clock)

	r.BlockFor(3 * time.Second)
	r.BlockFor(time.Second)
	require.NoError(t, r.Wait(context.Background()))

	require.NotEmpty(t, clock.sleeps)
	assert.Equal(t, 3*time.Second, clock.sleeps[0])
}

func TestRateLimiter_BlockForIgnoresNonPositive(t *testing.T) {
	clock := newFakeClock()
	r := NewRateLimiter(100, 0, nil, clock)

	r.BlockFor(0)
	r.BlockFor(-time.Second)
	require.NoError(t, r.Wait(context.Background()))

	assert.Empty(t, clock.sleeps)
}

func TestRateLimiter_DailyCeiling(t *testing.T) {
	quota := &clientMockQuota{}
	r := NewRateLimiter(100, 2, quota, newFakeClock())

	require.NoError(t, r.Wait(context.Background()))
	require.NoError(t, r.Wait(context.Background()))
	err := r.Wait(context.Background())
	assert.ErrorIs(t, err, domain.ErrDailyQuotaExceeded)

	used, err := r.Used(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), used)
}

func TestRateLimiter_NoQuotaCounter(t *testing.T) {
	r := NewRateLimiter(100, 5, nil, newFakeClock())

	require.NoError(t, r.Wait(context.Background()))
	used, err := r.Used(context.Background())
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestRateLimiter_CancelledWhileWaiting(t *testing.T) {
	r := NewRateLimiter(1, 0, nil, newFakeClock())
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.Canceled)
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	clock := newFakeClock()
	r := NewRateLimiter(1, 0, nil, clock)

	withHeader := func(v string) *http.Response {
		resp := &http.Response{Header: http.Header{}}
		if v != "" {
			resp.Header.Set(HeaderRetryAfter, v)
		}
		return resp
	}

	assert.Equal(t, 7*time.Second, r.RetryAfter(withHeader("7")))
	assert.Equal(t, 90*time.Second,
		r.RetryAfter(withHeader(clock.Now().Add(90*time.Second).Format(http.TimeFormat))))
	assert.Zero(t, r.RetryAfter(withHeader("")))
	assert.Zero(t, r.RetryAfter(withHeader("soon")))
	assert.Zero(t, r.RetryAfter(nil))
}

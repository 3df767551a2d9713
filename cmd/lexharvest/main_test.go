package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexharvest/internal/adapters/driven/quota/redis"
	"github.com/custodia-labs/lexharvest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lexharvest/internal/adapters/driving/cli"
	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

func testSettings(t *testing.T) *domain.AppSettings {
	t.Helper()
	s := domain.DefaultAppSettings()
	s.Storage.Driver = domain.StorageMemory
	s.Storage.DataDir = t.TempDir()
	s.Embedding.Provider = domain.EmbeddingProviderNone
	return &s
}

func TestHasVerboseFlag(t *testing.T) {
	assert.True(t, hasVerboseFlag([]string{"sync", "-v"}))
	assert.True(t, hasVerboseFlag([]string{"--verbose", "runs"}))
	assert.False(t, hasVerboseFlag([]string{"search", "손해배상"}))
	assert.False(t, hasVerboseFlag([]string{"search", "--", "-v"}))
}

func TestResolveDataDir(t *testing.T) {
	dir, err := resolveDataDir("/srv/lexharvest")
	require.NoError(t, err)
	assert.Equal(t, "/srv/lexharvest", dir)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	dir, err = resolveDataDir("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".lexharvest", "data"), dir)
}

func TestNewEmbeddingService_None(t *testing.T) {
	svc, err := newEmbeddingService(domain.EmbeddingSettings{Provider: domain.EmbeddingProviderNone})
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestWire_WithoutAPIKeyDisablesSync(t *testing.T) {
	a, err := wire(context.Background(), testSettings(t))
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &memory.QuotaCounter{}, a.quota)
	assert.IsType(t, &memory.RunLock{}, a.lock)

	svc := &cli.Services{}
	a.fill(svc)
	assert.NotNil(t, svc.Search)
	assert.NotNil(t, svc.Index)
	assert.NotNil(t, svc.Records)
	assert.Nil(t, svc.Sync)
	assert.Nil(t, svc.Scheduler)
}

func TestWire_WithAPIKeyAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	s := testSettings(t)
	s.API.APIKey = "law-test"
	s.Redis.Addr = mr.Addr()

	a, err := wire(context.Background(), s)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &redis.QuotaCounter{}, a.quota)
	assert.IsType(t, &redis.Lock{}, a.lock)

	svc := &cli.Services{}
	a.fill(svc)
	assert.NotNil(t, svc.Sync)
	assert.NotNil(t, svc.Scheduler)
	assert.Equal(t, s.Watch.Interval, svc.WatchInterval)
}

func TestWire_UnreachableRedisFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	s := testSettings(t)
	s.Redis.Addr = addr

	_, err := wire(context.Background(), s)
	assert.ErrorContains(t, err, "connecting to redis")
}

func TestWire_SQLiteStorage(t *testing.T) {
	s := testSettings(t)
	s.Storage.Driver = domain.StorageSQLite

	a, err := wire(context.Background(), s)
	require.NoError(t, err)
	defer a.Close()

	_, err = os.Stat(filepath.Join(s.Storage.DataDir, "lexharvest.db"))
	assert.NoError(t, err)
	_, inProcess := a.lock.(*memory.RunLock)
	assert.False(t, inProcess)
	_, inProcess = a.quota.(*memory.QuotaCounter)
	assert.False(t, inProcess)
}

func TestWire_SQLiteCoordinatesSeparateProcesses(t *testing.T) {
	ctx := context.Background()
	s := testSettings(t)
	s.Storage.Driver = domain.StorageSQLite

	first, err := wire(ctx, s)
	require.NoError(t, err)
	defer first.Close()
	second, err := wire(ctx, s)
	require.NoError(t, err)
	defer second.Close()

	name := domain.WriterLockName(domain.KindCase)
	ok, err := first.lock.Acquire(ctx, name, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = second.lock.Acquire(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "the lock lives in the shared database")

	_, err = first.quota.Increment(ctx, "2026-10-16")
	require.NoError(t, err)
	n, err := second.quota.Increment(ctx, "2026-10-16")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

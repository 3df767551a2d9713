package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a store in a temp dir with the mapped environment
// variables blanked so the host environment cannot leak in.
func newTestStore(t *testing.T) (*ConfigStore, string) {
	t.Helper()
	for name := range envKeys {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestNewConfigStore_Success(t *testing.T) {
	store, dir := newTestStore(t)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())

	_, ok := store.Get("any_key")
	assert.False(t, ok)
}

func TestNewConfigStore_WithNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, dir := newTestStore(t)
	content := `
[api]
base_url = "https://www.law.go.kr"
requests_per_second = 2.5
daily_limit = 9000
timeout = "45s"
retry_delay = 2

[sync]
display = 50

[redis]
enabled = true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))
	require.NoError(t, store.Load())

	assert.Equal(t, "https://www.law.go.kr", store.GetString("api.base_url"))
	assert.Equal(t, 2.5, store.GetFloat("api.requests_per_second"))
	assert.Equal(t, 9000, store.GetInt("api.daily_limit"))
	assert.Equal(t, 9000.0, store.GetFloat("api.daily_limit"))
	assert.Equal(t, 45*time.Second, store.GetDuration("api.timeout"))
	assert.Equal(t, 2*time.Second, store.GetDuration("api.retry_delay"))
	assert.Equal(t, 50, store.GetInt("sync.display"))
	assert.True(t, store.GetBool("redis.enabled"))

	// Wrong types and missing keys fall back to zero values.
	assert.Equal(t, "", store.GetString("sync.display"))
	assert.Equal(t, 0, store.GetInt("missing"))
	assert.Zero(t, store.GetDuration("api.base_url"))
	assert.False(t, store.GetBool("api.base_url"))
}

func TestConfigStore_SaveWritesNestedTables(t *testing.T) {
	store, dir := newTestStore(t)

	require.NoError(t, store.Set("api.timeout", "30s"))
	require.NoError(t, store.Set("sync.display", 100))
	require.NoError(t, store.Set("storage.driver", "sqlite"))

	raw, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[api]")
	assert.Contains(t, string(raw), "[sync]")
	assert.NotContains(t, string(raw), "'api.timeout'")

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, reloaded.GetDuration("api.timeout"))
	assert.Equal(t, 100, reloaded.GetInt("sync.display"))
	assert.Equal(t, "sqlite", reloaded.GetString("storage.driver"))
}

func TestConfigStore_SaveConflict(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Set("api.timeout", "30s"))
	assert.Error(t, store.Set("api.timeout.extra", 1))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Set("api.key", "value"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_Load_InvalidTOML(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[api\nkey ="), 0600))

	assert.Error(t, store.Load())

	_, err := NewConfigStore(dir)
	assert.Error(t, err)
}

func TestConfigStore_EnvFileOverride(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, store.Set("api.key", "from-file"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LAW_API_KEY=from-dotenv\n"), 0600))

	require.NoError(t, store.Load())
	assert.Equal(t, "from-dotenv", store.GetString("api.key"))

	t.Setenv("LAW_API_KEY", "from-process")
	require.NoError(t, store.Load())
	assert.Equal(t, "from-process", store.GetString("api.key"))

	// The override is never persisted.
	require.NoError(t, store.Save())
	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "from-file")
	assert.NotContains(t, string(raw), "from-process")
}

func TestConfigStore_SetDropsOverride(t *testing.T) {
	store, _ := newTestStore(t)
	t.Setenv("LEXHARVEST_REDIS_ADDR", "redis:6379")
	require.NoError(t, store.Load())
	assert.Equal(t, "redis:6379", store.GetString("redis.addr"))

	require.NoError(t, store.Set("redis.addr", "localhost:6379"))
	assert.Equal(t, "localhost:6379", store.GetString("redis.addr"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := "worker.key" + string(rune('0'+id))
			_ = store.Set(key, id)
			_ = store.GetInt(key)
			_ = store.GetDuration(key)
			_, _ = store.Get(key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, store.GetInt("worker.key3"))
}

func TestNestMap(t *testing.T) {
	nested, err := nestMap(map[string]any{"a.b": 1, "a.c": "x", "d": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": map[string]any{"b": 1, "c": "x"},
		"d": true,
	}, nested)
	assert.Equal(t, map[string]any{"a.b": 1, "a.c": "x", "d": true}, flattenMap(nested, ""))

	_, err = nestMap(map[string]any{"a": 1, "a.b": 2})
	assert.Error(t, err)
}

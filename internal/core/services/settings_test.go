package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexharvest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAppSettings(), *settings)
}

func TestSettingsService_Get_ReadsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	require.NoError(t, store.Set("api.key", "secret"))
	require.NoError(t, store.Set("api.requests_per_second", int64(5)))
	require.NoError(t, store.Set("api.timeout", "45s"))
	require.NoError(t, store.Set("sync.display", int64(50)))
	require.NoError(t, store.Set("embedding.provider", "openai"))
	require.NoError(t, store.Set("search.min_score", 0.5))
	require.NoError(t, store.Set("watch.interval", int64(3600)))

	settings, err := NewSettingsService(store).Get()
	require.NoError(t, err)

	assert.Equal(t, "secret", settings.API.APIKey)
	assert.Equal(t, 5.0, settings.API.RequestsPerSecond)
	assert.Equal(t, 45*time.Second, settings.API.Timeout)
	assert.Equal(t, 50, settings.Sync.Display)
	assert.Equal(t, domain.EmbeddingProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, 0.5, settings.Search.MinScore)
	assert.Equal(t, time.Hour, settings.Watch.Interval)
	assert.Equal(t, 4, settings.Sync.EmbedWorkers)
}

func TestSettingsService_Set(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	require.NoError(t, service.Set("sync.display", " 20 "))
	require.NoError(t, service.Set("api.retry_delay", "2s"))
	require.NoError(t, service.Set("search.min_score", "0.45"))
	assert.Equal(t, 3, store.Saves())

	val, ok := store.Get("api.retry_delay")
	require.True(t, ok)
	assert.Equal(t, "2s", val)

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, 20, settings.Sync.Display)
	assert.Equal(t, 2*time.Second, settings.API.RetryDelay)
	assert.Equal(t, 0.45, settings.Search.MinScore)
}

func TestSettingsService_SetRejectsInvalid(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	assert.ErrorIs(t, service.Set("llm.model", "x"), ErrUnknownSetting)
	assert.ErrorIs(t, service.Set("sync.display", "many"), domain.ErrInvalidInput)
	assert.ErrorIs(t, service.Set("sync.display", "500"), domain.ErrInvalidInput)
	assert.ErrorIs(t, service.Set("storage.driver", "postgres"), domain.ErrInvalidInput)

	_, ok := store.Get("sync.display")
	assert.False(t, ok)
	_, ok = store.Get("storage.driver")
	assert.False(t, ok)
	assert.Zero(t, store.Saves())

	require.NoError(t, service.Set("storage.postgres_url", "postgres://localhost/lex"))
	require.NoError(t, service.Set("storage.driver", "postgres"))
}

func TestSettingsService_Keys(t *testing.T) {
	keys := NewSettingsService(memory.NewConfigStore()).Keys()
	assert.Equal(t, "api.base_url", keys[0])
	assert.Contains(t, keys, "embedding.provider")
	assert.Contains(t, keys, "watch.interval")
	assert.Len(t, keys, len(settingKeys))
}

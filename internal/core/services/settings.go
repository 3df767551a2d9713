package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

type valueType int

const (
	typeString valueType = iota
	typeInt
	typeFloat
	typeBool
	typeDuration
)

// settingKey binds a config key to a field of AppSettings.
type settingKey struct {
	name  string
	typ   valueType
	field func(*domain.AppSettings) any
}

// settingKeys is the full set of settable keys, in display order.
//
//nolint:gosec // G101: key names, not credentials.
var settingKeys = []settingKey{
	{"api.base_url", typeString, func(s *domain.AppSettings) any { return &s.API.BaseURL }},
	{"api.key", typeString, func(s *domain.AppSettings) any { return &s.API.APIKey }},
	{"api.requests_per_second", typeFloat, func(s *domain.AppSettings) any { return &s.API.RequestsPerSecond }},
	{"api.daily_limit", typeInt, func(s *domain.AppSettings) any { return &s.API.DailyLimit }},
	{"api.timeout", typeDuration, func(s *domain.AppSettings) any { return &s.API.Timeout }},
	{"api.max_retries", typeInt, func(s *domain.AppSettings) any { return &s.API.MaxRetries }},
	{"api.retry_delay", typeDuration, func(s *domain.AppSettings) any { return &s.API.RetryDelay }},
	{"sync.display", typeInt, func(s *domain.AppSettings) any { return &s.Sync.Display }},
	{"sync.embed_workers", typeInt, func(s *domain.AppSettings) any { return &s.Sync.EmbedWorkers }},
	{"sync.lock_ttl", typeDuration, func(s *domain.AppSettings) any { return &s.Sync.LockTTL }},
	{"embedding.provider", typeString, func(s *domain.AppSettings) any { return (*string)(&s.Embedding.Provider) }},
	{"embedding.model", typeString, func(s *domain.AppSettings) any { return &s.Embedding.Model }},
	{"embedding.base_url", typeString, func(s *domain.AppSettings) any { return &s.Embedding.BaseURL }},
	{"embedding.api_key", typeString, func(s *domain.AppSettings) any { return &s.Embedding.APIKey }},
	{"embedding.dimensions", typeInt, func(s *domain.AppSettings) any { return &s.Embedding.Dimensions }},
	{"embedding.batch_size", typeInt, func(s *domain.AppSettings) any { return &s.Embedding.BatchSize }},
	{"embedding.max_chars", typeInt, func(s *domain.AppSettings) any { return &s.Embedding.MaxChars }},
	{"search.min_score", typeFloat, func(s *domain.AppSettings) any { return &s.Search.MinScore }},
	{"search.default_limit", typeInt, func(s *domain.AppSettings) any { return &s.Search.DefaultLimit }},
	{"search.max_limit", typeInt, func(s *domain.AppSettings) any { return &s.Search.MaxLimit }},
	{"storage.driver", typeString, func(s *domain.AppSettings) any { return (*string)(&s.Storage.Driver) }},
	{"storage.data_dir", typeString, func(s *domain.AppSettings) any { return &s.Storage.DataDir }},
	{"storage.postgres_url", typeString, func(s *domain.AppSettings) any { return &s.Storage.PostgresURL }},
	{"vector.backend", typeString, func(s *domain.AppSettings) any { return (*string)(&s.Vector.Backend) }},
	{"vector.postgres_url", typeString, func(s *domain.AppSettings) any { return &s.Vector.PostgresURL }},
	{"vector.table", typeString, func(s *domain.AppSettings) any { return &s.Vector.Table }},
	{"redis.addr", typeString, func(s *domain.AppSettings) any { return &s.Redis.Addr }},
	{"redis.password", typeString, func(s *domain.AppSettings) any { return &s.Redis.Password }},
	{"redis.db", typeInt, func(s *domain.AppSettings) any { return &s.Redis.DB }},
	{"watch.interval", typeDuration, func(s *domain.AppSettings) any { return &s.Watch.Interval }},
}

// ErrUnknownSetting is returned by Set for keys outside the settable set.
var ErrUnknownSetting = errors.New("unknown setting")

// SettingsService resolves AppSettings from a ConfigStore.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get resolves every setting. Absent keys keep their defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()
	for _, k := range settingKeys {
		if _, ok := s.configStore.Get(k.name); !ok {
			continue
		}
		switch ptr := k.field(&settings).(type) {
		case *string:
			*ptr = s.configStore.GetString(k.name)
		case *int:
			*ptr = s.configStore.GetInt(k.name)
		case *float64:
			*ptr = s.configStore.GetFloat(k.name)
		case *bool:
			*ptr = s.configStore.GetBool(k.name)
		case *time.Duration:
			*ptr = s.configStore.GetDuration(k.name)
		}
	}
	return &settings, nil
}

// Set parses value for key, validates the result and persists it.
func (s *SettingsService) Set(key, value string) error {
	k, ok := lookupKey(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	parsed, err := parseValue(k.typ, strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	assign(k.field(settings), parsed)
	if errs := settings.Validate(); len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, errs[0])
	}

	// Durations are stored in their string form so the file stays readable.
	if d, ok := parsed.(time.Duration); ok {
		parsed = d.String()
	}
	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return s.configStore.Save()
}

// Keys lists the settable keys in display order.
func (s *SettingsService) Keys() []string {
	out := make([]string, len(settingKeys))
	for i, k := range settingKeys {
		out[i] = k.name
	}
	return out
}

func lookupKey(name string) (settingKey, bool) {
	for _, k := range settingKeys {
		if k.name == name {
			return k, true
		}
	}
	return settingKey{}, false
}

func parseValue(typ valueType, raw string) (any, error) {
	switch typ {
	case typeInt:
		return strconv.Atoi(raw)
	case typeFloat:
		return strconv.ParseFloat(raw, 64)
	case typeBool:
		return strconv.ParseBool(raw)
	case typeDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func assign(ptr, value any) {
	switch p := ptr.(type) {
	case *string:
		*p = value.(string)
	case *int:
		*p = value.(int)
	case *float64:
		*p = value.(float64)
	case *bool:
		*p = value.(bool)
	case *time.Duration:
		*p = value.(time.Duration)
	}
}

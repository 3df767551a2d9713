package domain

import (
	"fmt"
	"net/url"
	"time"
)

// EmbeddingProvider identifies the embedding backend.
type EmbeddingProvider string

// Available embedding providers.
const (
	// EmbeddingProviderNone stores records without indexing them.
	EmbeddingProviderNone   EmbeddingProvider = "none"
	EmbeddingProviderOllama EmbeddingProvider = "ollama"
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"
)

// IsValid returns true if the provider is recognised.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case EmbeddingProviderNone, EmbeddingProviderOllama, EmbeddingProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if the provider needs credentials.
func (p EmbeddingProvider) RequiresAPIKey() bool {
	return p == EmbeddingProviderOpenAI
}

// StorageDriver selects the relational store.
type StorageDriver string

// Available storage drivers.
const (
	StorageSQLite   StorageDriver = "sqlite"
	StoragePostgres StorageDriver = "postgres"
	// StorageMemory keeps everything in process; used for dry runs.
	StorageMemory StorageDriver = "memory"
)

// VectorBackend selects the vector index implementation.
type VectorBackend string

// Available vector backends.
const (
	VectorFlat     VectorBackend = "flat"
	VectorPGVector VectorBackend = "pgvector"
)

// AppSettings is the resolved configuration of the application.
type AppSettings struct {
	API       APISettings
	Sync      HarvestSettings
	Embedding EmbeddingSettings
	Search    QuerySettings
	Storage   StorageSettings
	Vector    VectorSettings
	Redis     RedisSettings
	Watch     WatchSettings
}

// APISettings configures the registry client.
type APISettings struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	DailyLimit        int
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
}

// HarvestSettings tunes sync runs.
type HarvestSettings struct {
	Display      int
	EmbedWorkers int
	LockTTL      time.Duration
}

// EmbeddingSettings configures the embedding backend and encoder.
type EmbeddingSettings struct {
	Provider   EmbeddingProvider
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int
	BatchSize  int
	MaxChars   int
}

// QuerySettings bounds similarity queries.
type QuerySettings struct {
	MinScore     float64
	DefaultLimit int
	MaxLimit     int
}

// StorageSettings selects and locates the relational store.
type StorageSettings struct {
	Driver StorageDriver
	// DataDir holds the SQLite database and flat index files.
	DataDir     string
	PostgresURL string
}

// VectorSettings selects the vector index backend.
type VectorSettings struct {
	Backend VectorBackend
	// PostgresURL defaults to the storage URL when empty.
	PostgresURL string
	Table       string
}

// RedisSettings enables the shared quota counter and run lock.
// An empty address disables them.
type RedisSettings struct {
	Addr     string
	Password string
	DB       int
}

// WatchSettings configures scheduled incremental syncs.
type WatchSettings struct {
	Interval time.Duration
}

// DefaultAppSettings returns the built-in defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		API: APISettings{
			BaseURL:           "https://www.law.go.kr",
			RequestsPerSecond: 2,
			DailyLimit:        10000,
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			RetryDelay:        500 * time.Millisecond,
		},
		Sync: HarvestSettings{
			Display:      100,
			EmbedWorkers: 4,
			LockTTL:      6 * time.Hour,
		},
		Embedding: EmbeddingSettings{
			Provider:   EmbeddingProviderOllama,
			Model:      "nomic-embed-text",
			BaseURL:    "http://localhost:11434",
			Dimensions: 768,
			BatchSize:  32,
			MaxChars:   1000,
		},
		Search: QuerySettings{
			MinScore:     0.3,
			DefaultLimit: 20,
			MaxLimit:     100,
		},
		Storage: StorageSettings{
			Driver: StorageSQLite,
		},
		Vector: VectorSettings{
			Backend: VectorFlat,
			Table:   "lexharvest_vectors",
		},
		Watch: WatchSettings{
			Interval: 6 * time.Hour,
		},
	}
}

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate reports every invalid setting. The API key is not required here;
// commands that reach the registry check it themselves.
//
//nolint:gocyclo // flat list of independent checks
func (s *AppSettings) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if u, err := url.Parse(s.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("api.base_url", "must be an absolute URL")
	}
	if s.API.RequestsPerSecond <= 0 {
		add("api.requests_per_second", "must be positive")
	}
	if s.API.DailyLimit < 0 {
		add("api.daily_limit", "must not be negative")
	}
	if s.API.Timeout <= 0 {
		add("api.timeout", "must be positive")
	}
	if s.API.MaxRetries < 0 {
		add("api.max_retries", "must not be negative")
	}

	if s.Sync.Display < 1 || s.Sync.Display > 100 {
		add("sync.display", "must be between 1 and 100")
	}
	if s.Sync.EmbedWorkers < 1 {
		add("sync.embed_workers", "must be positive")
	}

	if !s.Embedding.Provider.IsValid() {
		add("embedding.provider", fmt.Sprintf("unknown provider %q", s.Embedding.Provider))
	}
	if s.Embedding.Provider.RequiresAPIKey() && s.Embedding.APIKey == "" {
		add("embedding.api_key", fmt.Sprintf("required for %s", s.Embedding.Provider))
	}
	if s.Embedding.Dimensions < 1 {
		add("embedding.dimensions", "must be positive")
	}
	if s.Embedding.BatchSize < 1 {
		add("embedding.batch_size", "must be positive")
	}
	if s.Embedding.MaxChars < 1 {
		add("embedding.max_chars", "must be positive")
	}

	if s.Search.MinScore < -1 || s.Search.MinScore > 1 {
		add("search.min_score", "must be between -1 and 1")
	}
	if s.Search.DefaultLimit < 1 {
		add("search.default_limit", "must be positive")
	}
	if s.Search.MaxLimit < s.Search.DefaultLimit {
		add("search.max_limit", "must not be below search.default_limit")
	}

	switch s.Storage.Driver {
	case StorageSQLite, StorageMemory:
	case StoragePostgres:
		if s.Storage.PostgresURL == "" {
			add("storage.postgres_url", "required for the postgres driver")
		}
	default:
		add("storage.driver", fmt.Sprintf("unknown driver %q", s.Storage.Driver))
	}

	switch s.Vector.Backend {
	case VectorFlat:
	case VectorPGVector:
		if s.VectorPostgresURL() == "" {
			add("vector.postgres_url", "required for the pgvector backend")
		}
	default:
		add("vector.backend", fmt.Sprintf("unknown backend %q", s.Vector.Backend))
	}

	if s.Watch.Interval <= 0 {
		add("watch.interval", "must be positive")
	}
	return errs
}

// VectorPostgresURL returns the pgvector connection string, falling back to
// the storage URL.
func (s *AppSettings) VectorPostgresURL() string {
	if s.Vector.PostgresURL != "" {
		return s.Vector.PostgresURL
	}
	return s.Storage.PostgresURL
}

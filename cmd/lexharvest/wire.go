package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/lexharvest/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/lexharvest/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/lexharvest/internal/adapters/driven/quota/redis"
	"github.com/custodia-labs/lexharvest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lexharvest/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/lexharvest/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/lexharvest/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/lexharvest/internal/adapters/driven/vector/pgvector"
	"github.com/custodia-labs/lexharvest/internal/adapters/driving/cli"
	"github.com/custodia-labs/lexharvest/internal/connectors/lawapi"
	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
	"github.com/custodia-labs/lexharvest/internal/core/services"
	"github.com/custodia-labs/lexharvest/internal/logger"
	"github.com/custodia-labs/lexharvest/internal/normalisers/legal"
	"github.com/custodia-labs/lexharvest/internal/parsers/fieldtable"
)

// stores groups the persistence ports of one storage driver.
type stores struct {
	records     driven.RecordStore
	checkpoints driven.CheckpointStore
	runs        driven.RunStatsStore
	entries     driven.EmbeddingEntryStore
	scheduler   driven.SchedulerStore
}

// app holds the wired services and the resources to release on exit.
type app struct {
	settings *domain.AppSettings
	stores   stores
	quota    driven.QuotaCounter
	lock     driven.RunLock

	index   *services.IndexManager
	search  *services.SimilarityService
	records *services.RecordService
	sync    *services.SyncOrchestrator
	sched   *services.Scheduler

	closers []func() error
}

// wire builds every adapter and service from validated settings.
func wire(ctx context.Context, s *domain.AppSettings) (a *app, err error) {
	a = &app{settings: s}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	dataDir, err := resolveDataDir(s.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	// ===== Storage =====
	if err := a.openStorage(ctx, dataDir); err != nil {
		return nil, err
	}

	// ===== Quota and run lock (Redis if configured, otherwise the store) =====
	if s.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis %s: %w", s.Redis.Addr, err)
		}
		a.quota = redis.NewQuotaCounter(client)
		a.lock = redis.NewLock(client)
		logger.Debug("Using Redis quota counter and run lock at %s", s.Redis.Addr)
	}

	// ===== Embedding and vector index =====
	embedder, err := newEmbeddingService(s.Embedding)
	if err != nil {
		return nil, err
	}
	if embedder != nil {
		a.closers = append(a.closers, embedder.Close)
	}

	vectors, err := a.openVectors(ctx, dataDir)
	if err != nil {
		return nil, err
	}

	encoder := services.NewEncoder(embedder, s.Embedding.MaxChars, s.Embedding.BatchSize)
	a.index = services.NewIndexManager(vectors, a.stores.entries, a.stores.records, encoder)
	a.index.SetRunLock(a.lock, s.Sync.LockTTL)
	a.closers = append(a.closers, a.index.Close)

	a.search = services.NewSimilarityService(a.index, encoder, a.stores.records, services.SearchSettings{
		DefaultLimit: s.Search.DefaultLimit,
		MaxLimit:     s.Search.MaxLimit,
		MinScore:     s.Search.MinScore,
	})
	a.records = services.NewRecordService(a.stores.records, a.stores.runs)

	// ===== Registry client and sync (requires an API key) =====
	if s.API.APIKey == "" {
		logger.Warn("api.key is not set; sync and watch are disabled")
		return a, nil
	}
	if err := a.wireSync(); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *app) openStorage(ctx context.Context, dataDir string) error {
	s := a.settings
	switch s.Storage.Driver {
	case domain.StoragePostgres:
		db, err := postgres.Connect(ctx, postgres.DefaultConfig(s.Storage.PostgresURL))
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialising postgres schema: %w", err)
		}
		a.stores = stores{
			records:     db.RecordStore(),
			checkpoints: db.CheckpointStore(),
			runs:        db.RunStatsStore(),
			entries:     db.EmbeddingEntryStore(),
			scheduler:   db.SchedulerStore(),
		}
		a.quota = db.QuotaCounter()
		a.lock = db.RunLock()
		logger.Debug("Using PostgreSQL storage, quota counter and run lock")

	case domain.StorageMemory:
		a.stores = stores{
			records:     memory.NewRecordStore(),
			checkpoints: memory.NewCheckpointStore(),
			runs:        memory.NewRunStatsStore(),
			entries:     memory.NewEmbeddingEntryStore(),
			scheduler:   memory.NewSchedulerStore(),
		}
		a.quota = memory.NewQuotaCounter()
		a.lock = memory.NewRunLock()
		logger.Debug("Using in-memory storage; nothing is persisted and runs are not coordinated across processes")

	default:
		store, err := sqlite.NewStore(dataDir)
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.stores = stores{
			records:     store.RecordStore(),
			checkpoints: store.CheckpointStore(),
			runs:        store.RunStatsStore(),
			entries:     store.EmbeddingEntryStore(),
			scheduler:   store.SchedulerStore(),
		}
		a.quota = store.QuotaCounter()
		a.lock = store.RunLock()
		logger.Debug("Using SQLite storage, quota counter and run lock at %s", store.Path())
	}
	return nil
}

func (a *app) openVectors(ctx context.Context, dataDir string) (driven.VectorIndexFactory, error) {
	s := a.settings
	if s.Vector.Backend == domain.VectorPGVector {
		factory, err := pgvector.NewFactory(ctx, pgvector.Config{
			ConnString: s.VectorPostgresURL(),
			Table:      s.Vector.Table,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			factory.Close()
			return nil
		})
		logger.Debug("Using pgvector index table %s", s.Vector.Table)
		return factory, nil
	}

	dir := filepath.Join(dataDir, "vectors")
	logger.Debug("Using flat vector files in %s", dir)
	return flat.NewFactory(dir), nil
}

func (a *app) wireSync() error {
	s := a.settings

	limiter := lawapi.NewRateLimiter(s.API.RequestsPerSecond, s.API.DailyLimit, a.quota, nil)
	cfg := lawapi.Config{
		BaseURL:           s.API.BaseURL,
		APIKey:            s.API.APIKey,
		RequestsPerSecond: s.API.RequestsPerSecond,
		DailyLimit:        s.API.DailyLimit,
		Timeout:           s.API.Timeout,
		MaxRetries:        s.API.MaxRetries,
		RetryDelay:        s.API.RetryDelay,
		UserAgent:         "lexharvest/" + version,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	client := lawapi.NewClient(cfg, limiter)

	parser, err := fieldtable.New()
	if err != nil {
		return fmt.Errorf("loading field tables: %w", err)
	}
	normaliser, err := legal.New()
	if err != nil {
		return fmt.Errorf("loading normalisation rules: %w", err)
	}

	a.sync = services.NewSyncOrchestrator(
		lawapi.NewInterpreter(client, parser),
		normaliser,
		a.stores.records,
		a.stores.checkpoints,
		a.stores.runs,
		a.lock,
		a.index,
		services.SyncSettings{
			Display:      s.Sync.Display,
			EmbedWorkers: s.Sync.EmbedWorkers,
			LockTTL:      s.Sync.LockTTL,
		},
	)
	a.sched = services.NewScheduler(a.stores.scheduler, a.sync, services.DefaultTick)
	return nil
}

// newEmbeddingService returns nil when embedding is disabled.
func newEmbeddingService(s domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	switch s.Provider {
	case domain.EmbeddingProviderOllama:
		svc, err := ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			Dimensions: s.Dimensions,
			BatchSize:  s.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("creating ollama embedder: %w", err)
		}
		return svc, nil

	case domain.EmbeddingProviderOpenAI:
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:     s.APIKey,
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			Dimensions: s.Dimensions,
			BatchSize:  s.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("creating openai embedder: %w", err)
		}
		return svc, nil

	default:
		logger.Debug("Embedding disabled; records are stored without vectors")
		return nil, nil
	}
}

// fill copies the wired services into the CLI service set.
func (a *app) fill(svc *cli.Services) {
	svc.Search = a.search
	svc.Index = a.index
	svc.Records = a.records
	svc.WatchInterval = a.settings.Watch.Interval
	if a.sync != nil {
		svc.Sync = a.sync
		svc.Scheduler = a.sched
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("Shutdown: %v", err)
		}
	}
	a.closers = nil
}

func resolveDataDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".lexharvest", "data"), nil
}

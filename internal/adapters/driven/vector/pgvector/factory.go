package pgvector

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
	"github.com/custodia-labs/lexharvest/internal/logger"
)

// Ensure Factory implements the interface.
var _ driven.VectorIndexFactory = (*Factory)(nil)

// DefaultTable is the vectors table name.
const DefaultTable = "lexharvest_vectors"

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config holds configuration for the pgvector backend.
type Config struct {
	// ConnString is a PostgreSQL connection string (required).
	ConnString string

	// Table is the vectors table (default: lexharvest_vectors).
	Table string
}

// Factory opens indexes in one PostgreSQL table.
type Factory struct {
	pool  *pgxpool.Pool
	table string
}

// NewFactory connects, enables the vector extension and creates the table.
func NewFactory(ctx context.Context, cfg Config) (*Factory, error) {
	if cfg.ConnString == "" {
		return nil, fmt.Errorf("pgvector: connection string is required")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if !tableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("%w: table name %q", domain.ErrInvalidInput, cfg.Table)
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("pgvector: connect: %w", err)
	}

	f := &Factory{pool: pool, table: cfg.Table}
	if err := f.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Debug("pgvector: using table %s", cfg.Table)
	return f, nil
}

func (f *Factory) initialize(ctx context.Context) error {
	if _, err := f.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("pgvector: create extension: %w", err)
	}

	// The column is untyped so generations of different sizes can coexist.
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			kind       TEXT NOT NULL,
			generation BIGINT NOT NULL,
			position   BIGINT NOT NULL,
			embedding  vector NOT NULL,
			PRIMARY KEY (kind, generation, position)
		)`, f.table)
	if _, err := f.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("pgvector: create table: %w", err)
	}
	return nil
}

// Open returns the index of one kind and generation. Nothing is read
// until Load is called.
func (f *Factory) Open(_ context.Context, kind domain.DocumentKind, generation int64, dimensions int) (driven.VectorIndex, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: document kind %q", domain.ErrInvalidInput, kind)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions %d", domain.ErrInvalidInput, dimensions)
	}
	return &Index{
		pool:       f.pool,
		table:      f.table,
		kind:       kind,
		generation: generation,
		dim:        dimensions,
	}, nil
}

// Ping checks the database is reachable.
func (f *Factory) Ping(ctx context.Context) error {
	return f.pool.Ping(ctx)
}

// Close closes the pool.
func (f *Factory) Close() {
	f.pool.Close()
}

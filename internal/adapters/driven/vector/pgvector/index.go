// Package pgvector provides an exact vector index stored in PostgreSQL with
// the pgvector extension.
//
// All generations of all kinds share one table. Search is a sequential scan
// ordered by negative inner product; no ANN index is created, so results
// match the flat backend exactly.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is one (kind, generation) slice of the vectors table.
type Index struct {
	mu         sync.Mutex
	pool       *pgxpool.Pool
	table      string
	kind       domain.DocumentKind
	generation int64
	dim        int
	count      int64
}

// Dimensions returns the vector size.
func (x *Index) Dimensions() int {
	return x.dim
}

// Append inserts vectors in one transaction and returns the position of the first.
func (x *Index) Append(ctx context.Context, vectors [][]float32) (int64, error) {
	for _, v := range vectors {
		if len(v) != x.dim {
			return 0, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(v), x.dim)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	first := x.count
	if len(vectors) == 0 {
		return first, nil
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (kind, generation, position, embedding) VALUES ($1, $2, $3, $4)`, x.table)
	batch := &pgx.Batch{}
	for i, v := range vectors {
		batch.Queue(stmt, string(x.kind), x.generation, first+int64(i), pgvector.NewVector(v))
	}

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", domain.ErrVectorIndexUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("%w: insert vectors: %w", domain.ErrVectorIndexUnavailable, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", domain.ErrVectorIndexUnavailable, err)
	}

	x.count += int64(len(vectors))
	return first, nil
}

// Search returns the k highest inner-product positions, ties broken by position.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(query), x.dim)
	}
	if k <= 0 {
		return []driven.VectorHit{}, nil
	}

	// <#> is the negative inner product.
	q := fmt.Sprintf(`
		SELECT position, -(embedding <#> $3) AS similarity
		FROM %s
		WHERE kind = $1 AND generation = $2
		ORDER BY embedding <#> $3, position
		LIMIT $4`, x.table)

	rows, err := x.pool.Query(ctx, q, string(x.kind), x.generation, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", domain.ErrVectorIndexUnavailable, err)
	}
	defer rows.Close()

	hits := make([]driven.VectorHit, 0, k)
	for rows.Next() {
		var h driven.VectorHit
		if err := rows.Scan(&h.Position, &h.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scan hit: %w", domain.ErrVectorIndexUnavailable, err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: search: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return hits, nil
}

// Vector reads the vector stored at a position.
func (x *Index) Vector(ctx context.Context, position int64) ([]float32, error) {
	q := fmt.Sprintf(`
		SELECT embedding FROM %s
		WHERE kind = $1 AND generation = $2 AND position = $3`, x.table)

	var v pgvector.Vector
	err := x.pool.QueryRow(ctx, q, string(x.kind), x.generation, position).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: position %d", domain.ErrNotFound, position)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read vector: %w", domain.ErrVectorIndexUnavailable, err)
	}
	return v.Slice(), nil
}

// Len returns the number of stored vectors.
func (x *Index) Len() int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.count
}

// Persist is a no-op; appends are committed as they happen.
func (x *Index) Persist(_ context.Context) error {
	return nil
}

// Load reads the generation's size and checks the stored vector size.
func (x *Index) Load(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	q := fmt.Sprintf(`
		SELECT COALESCE(MAX(position) + 1, 0), COALESCE(MIN(vector_dims(embedding)), 0)
		FROM %s
		WHERE kind = $1 AND generation = $2`, x.table)

	var count int64
	var dims int
	if err := x.pool.QueryRow(ctx, q, string(x.kind), x.generation).Scan(&count, &dims); err != nil {
		return fmt.Errorf("%w: load: %w", domain.ErrVectorIndexUnavailable, err)
	}
	if count > 0 && dims != x.dim {
		return fmt.Errorf("%w: stored %d, want %d", domain.ErrDimensionMismatch, dims, x.dim)
	}
	x.count = count
	return nil
}

// Drop deletes the generation's rows.
func (x *Index) Drop(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	q := fmt.Sprintf(`DELETE FROM %s WHERE kind = $1 AND generation = $2`, x.table)
	if _, err := x.pool.Exec(ctx, q, string(x.kind), x.generation); err != nil {
		return fmt.Errorf("%w: drop: %w", domain.ErrVectorIndexUnavailable, err)
	}
	x.count = 0
	return nil
}

// Close is a no-op; the pool belongs to the factory.
func (x *Index) Close() error {
	return nil
}

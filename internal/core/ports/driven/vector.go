package driven

import (
	"context"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

// VectorIndex is append-only exact vector storage for one index generation.
// Positions are dense and assigned in append order starting at zero.
// There is no removal by position; stale slots are reclaimed by retiring
// the whole generation.
type VectorIndex interface {
	// Dimensions returns the vector size.
	Dimensions() int

	// Append stores vectors and returns the position of the first one.
	Append(ctx context.Context, vectors [][]float32) (int64, error)

	// Search returns the k highest inner-product positions, best first.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Vector returns the vector stored at a position, or domain.ErrNotFound.
	Vector(ctx context.Context, position int64) ([]float32, error)

	// Len returns the number of stored vectors.
	Len() int64

	// Persist flushes the index to durable storage.
	Persist(ctx context.Context) error

	// Load restores the index from durable storage. A missing store yields an empty index.
	Load(ctx context.Context) error

	// Drop removes the generation's durable storage.
	Drop(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Position is the matched slot.
	Position int64

	// Similarity is the inner product; cosine similarity for unit vectors.
	Similarity float64
}

// VectorIndexFactory opens the storage for one (kind, generation) pair.
type VectorIndexFactory interface {
	Open(ctx context.Context, kind domain.DocumentKind, generation int64, dimensions int) (VectorIndex, error)
}

// EmbeddingEntryStore persists the key to position mapping of each index.
type EmbeddingEntryStore interface {
	// Put stores entries, replacing any entry with the same key and generation.
	Put(ctx context.Context, entries ...domain.EmbeddingEntry) error

	// List returns every entry of a kind and generation ordered by position.
	List(ctx context.Context, kind domain.DocumentKind, generation int64) ([]domain.EmbeddingEntry, error)

	// DeleteGeneration removes every entry of a retired generation.
	DeleteGeneration(ctx context.Context, kind domain.DocumentKind, generation int64) error

	// CurrentGeneration returns the active generation, or 0 if none was set.
	CurrentGeneration(ctx context.Context, kind domain.DocumentKind) (int64, error)

	// SetCurrentGeneration marks a generation active.
	SetCurrentGeneration(ctx context.Context, kind domain.DocumentKind, generation int64) error
}

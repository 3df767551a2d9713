package driving

import (
	"context"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

// SimilarityService answers semantic similarity queries.
type SimilarityService interface {
	// Search returns hits ordered by descending score, hydrated with their
	// stored records and narrowed by the query filter.
	Search(ctx context.Context, q SimilarityQuery) ([]domain.HydratedHit, error)
}

// SimilarityQuery describes one similarity search.
// Exactly one of Text or SimilarTo must be set.
type SimilarityQuery struct {
	Kind domain.DocumentKind

	// Text is free text to embed and search with.
	Text string

	// SimilarTo is the serial number of a stored record to search around.
	// The record itself is excluded from results.
	SimilarTo string

	// TopK bounds the result count. Zero uses the default; values above the
	// configured maximum are clamped.
	TopK int

	// MinScore is the similarity floor. Nil uses the default.
	MinScore *float64

	// Filter is applied to hydrated records after the vector query.
	Filter domain.RecordFilter
}

// IndexService maintains the vector indexes.
type IndexService interface {
	// Rebuild re-embeds every stored record of a kind into a fresh generation
	// and retires the old one.
	Rebuild(ctx context.Context, kind domain.DocumentKind) (*domain.IndexStats, error)

	// Stats describes the active generation of a kind's index.
	Stats(ctx context.Context, kind domain.DocumentKind) (*domain.IndexStats, error)
}

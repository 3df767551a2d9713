package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
	"github.com/custodia-labs/lexharvest/internal/logger"
)

// Ensure SimilarityService implements the interface.
var _ driving.SimilarityService = (*SimilarityService)(nil)

// Search defaults.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	DefaultMinScore    = 0.3
)

// SearchSettings bounds similarity queries.
type SearchSettings struct {
	DefaultLimit int
	MaxLimit     int
	MinScore     float64
}

// DefaultSearchSettings returns the built-in search bounds.
func DefaultSearchSettings() SearchSettings {
	return SearchSettings{
		DefaultLimit: DefaultSearchLimit,
		MaxLimit:     MaxSearchLimit,
		MinScore:     DefaultMinScore,
	}
}

// SimilarityService answers similarity queries over the vector indexes.
type SimilarityService struct {
	index    *IndexManager
	encoder  *Encoder
	records  driven.RecordStore
	settings SearchSettings
}

// NewSimilarityService creates a similarity service.
func NewSimilarityService(
	index *IndexManager,
	encoder *Encoder,
	records driven.RecordStore,
	settings SearchSettings,
) *SimilarityService {
	if settings.DefaultLimit <= 0 {
		settings.DefaultLimit = DefaultSearchLimit
	}
	if settings.MaxLimit <= 0 {
		settings.MaxLimit = MaxSearchLimit
	}
	return &SimilarityService{
		index:    index,
		encoder:  encoder,
		records:  records,
		settings: settings,
	}
}

// Search embeds the query text, or reads the stored vector of the SimilarTo
// record, and returns hydrated hits ordered by descending score.
//
//nolint:gocyclo // Validation plus query, hydrate and filter steps
func (s *SimilarityService) Search(ctx context.Context, q driving.SimilarityQuery) ([]domain.HydratedHit, error) {
	logger.Section("Similarity Search")

	if !q.Kind.Valid() {
		return nil, fmt.Errorf("%w: document kind %q", domain.ErrInvalidInput, q.Kind)
	}
	text := strings.TrimSpace(q.Text)
	similarTo := strings.TrimSpace(q.SimilarTo)
	if (text == "") == (similarTo == "") {
		return nil, fmt.Errorf("%w: exactly one of query text or similar-to serial is required", domain.ErrInvalidInput)
	}
	if !s.index.Available() {
		return nil, domain.ErrVectorIndexUnavailable
	}

	topK := s.limit(q.TopK)
	minScore := s.minScore(q.MinScore)
	logger.Debug("Kind: %s, topK: %d, minScore: %.2f", q.Kind, topK, minScore)

	var exclude []string
	var vec []float32
	if similarTo != "" {
		exclude = append(exclude, similarTo)
		logger.Debug("Searching around %s %s", q.Kind, similarTo)

		v, err := s.aroundRecord(ctx, domain.RecordKey{Kind: q.Kind, SerialNumber: similarTo})
		if err != nil {
			return nil, err
		}
		vec = v
	} else {
		v, err := s.encoder.Encode(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("encode query: %w", err)
		}
		vec = v
	}

	// Filters apply after hydration, so fetch a wider window.
	internalK := topK
	if !q.Filter.IsZero() {
		internalK = topK * 3
	}

	hits, err := s.index.Query(ctx, q.Kind, vec, internalK, minScore, exclude...)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	logger.Debug("Raw hits: %d", len(hits))

	hydrated, err := s.Hydrate(ctx, hits)
	if err != nil {
		return nil, err
	}
	if !q.Filter.IsZero() {
		hydrated = FilterHits(hydrated, q.Filter)
		logger.Debug("After filter: %d", len(hydrated))
	}
	if len(hydrated) > topK {
		hydrated = hydrated[:topK]
	}

	logger.Info("Final results: %d", len(hydrated))
	return hydrated, nil
}

// aroundRecord returns the stored vector of a record. A record that was
// never indexed under the current model has its text embedded instead.
func (s *SimilarityService) aroundRecord(ctx context.Context, key domain.RecordKey) ([]float32, error) {
	vec, err := s.index.VectorOf(ctx, key)
	if err == nil {
		return vec, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("read vector of %s %s: %w", key.Kind, key.SerialNumber, err)
	}

	rec, err := s.records.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", key.Kind, key.SerialNumber, err)
	}
	text, _ := rec.EmbeddingText()
	logger.Debug("%s %s has no stored vector, embedding its text", key.Kind, key.SerialNumber)
	vec, err = s.encoder.Encode(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	return vec, nil
}

// Hydrate loads the stored record of each hit. Hits whose record is no
// longer stored keep a nil Record.
func (s *SimilarityService) Hydrate(ctx context.Context, hits []domain.SimilarityHit) ([]domain.HydratedHit, error) {
	out := make([]domain.HydratedHit, 0, len(hits))
	for _, h := range hits {
		rec, err := s.records.Get(ctx, domain.RecordKey{Kind: h.Kind, SerialNumber: h.SerialNumber})
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get record %s: %w", h.SerialNumber, err)
		}
		out = append(out, domain.HydratedHit{SimilarityHit: h, Record: rec})
	}
	return out, nil
}

// FilterHits keeps hits whose record satisfies the filter.
// Hits without a record never match a non-empty filter.
func FilterHits(hits []domain.HydratedHit, filter domain.RecordFilter) []domain.HydratedHit {
	if filter.IsZero() {
		return hits
	}
	out := make([]domain.HydratedHit, 0, len(hits))
	for _, h := range hits {
		if filter.Matches(h.Record) {
			out = append(out, h)
		}
	}
	return out
}

func (s *SimilarityService) limit(n int) int {
	switch {
	case n <= 0:
		return s.settings.DefaultLimit
	case n > s.settings.MaxLimit:
		return s.settings.MaxLimit
	default:
		return n
	}
}

// minScore clamps the floor to the cosine range.
func (s *SimilarityService) minScore(v *float64) float64 {
	score := s.settings.MinScore
	if v != nil {
		score = *v
	}
	return max(-1, min(1, score))
}

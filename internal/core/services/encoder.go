package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// Encoder defaults.
const (
	// DefaultMaxChars keeps inputs well inside a 512-token model window.
	DefaultMaxChars = 1000

	// DefaultBatchSize is the number of texts sent per backend call.
	DefaultBatchSize = 32
)

// Encoder turns text into unit-length vectors.
// Truncation and normalisation happen here rather than in the backend, so
// single and batch calls agree and every backend behaves the same.
type Encoder struct {
	backend   driven.EmbeddingService
	maxChars  int
	batchSize int
}

// NewEncoder creates an encoder over an embedding backend.
// Non-positive maxChars or batchSize use the defaults.
func NewEncoder(backend driven.EmbeddingService, maxChars, batchSize int) *Encoder {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Encoder{backend: backend, maxChars: maxChars, batchSize: batchSize}
}

// Available reports whether a backend is configured.
func (e *Encoder) Available() bool {
	return e != nil && e.backend != nil
}

// Dimensions returns the vector size, or 0 without a backend.
func (e *Encoder) Dimensions() int {
	if !e.Available() {
		return 0
	}
	return e.backend.Dimensions()
}

// ModelName returns the backend model identifier.
func (e *Encoder) ModelName() string {
	if !e.Available() {
		return ""
	}
	return e.backend.ModelName()
}

// Encode embeds one text. Empty text yields a zero vector.
func (e *Encoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if !e.Available() {
		return nil, domain.ErrEmbeddingUnavailable
	}

	text = e.truncate(text)
	if text == "" {
		return make([]float32, e.backend.Dimensions()), nil
	}

	vec, err := e.backend.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if err := e.checkDimensions(vec); err != nil {
		return nil, err
	}
	return normalize(vec), nil
}

// EncodeBatch embeds texts in chunks of the batch size. The result has one
// vector per input, in input order.
func (e *Encoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if !e.Available() {
		return nil, domain.ErrEmbeddingUnavailable
	}

	out := make([][]float32, len(texts))
	var pending []int
	var inputs []string
	for i, t := range texts {
		t = e.truncate(t)
		if t == "" {
			out[i] = make([]float32, e.backend.Dimensions())
			continue
		}
		pending = append(pending, i)
		inputs = append(inputs, t)
	}

	for start := 0; start < len(inputs); start += e.batchSize {
		end := min(start+e.batchSize, len(inputs))

		vecs, err := e.backend.EmbedBatch(ctx, inputs[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: backend returned %d vectors for %d texts",
				domain.ErrEmbeddingUnavailable, len(vecs), end-start)
		}
		for j, vec := range vecs {
			if err := e.checkDimensions(vec); err != nil {
				return nil, err
			}
			out[pending[start+j]] = normalize(vec)
		}
	}
	return out, nil
}

func (e *Encoder) truncate(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= e.maxChars {
		return text
	}
	return string([]rune(text)[:e.maxChars])
}

func (e *Encoder) checkDimensions(vec []float32) error {
	if want := e.backend.Dimensions(); len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vec), want)
	}
	return nil
}

// normalize returns a unit-length copy of vec. A zero vector stays zero.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	out := make([]float32, len(vec))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

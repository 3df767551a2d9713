// Package ollama provides an embedding service adapter using Ollama through
// langchaingo.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
	"github.com/custodia-labs/lexharvest/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768 // nomic-embed-text default
	DefaultBatchSize  = 32
)

// pingText is embedded by Ping to check reachability and vector size.
const pingText = "ping"

// Config holds configuration for the Ollama embedding service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model to use (default: nomic-embed-text).
	Model string

	// Timeout bounds each request (default: 30s).
	Timeout time.Duration

	// Dimensions is the embedding vector size (model-dependent).
	Dimensions int

	// BatchSize is the number of texts sent per round trip (default: 32).
	BatchSize int
}

// EmbeddingService generates embeddings using Ollama.
type EmbeddingService struct {
	embedder   embeddings.Embedder
	model      string
	dimensions int
	timeout    time.Duration
}

// NewEmbeddingService creates a new Ollama embedding service.
// No request is made until the first Embed or Ping.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	cfg = withDefaults(cfg)

	llm, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: creating client: %w", err)
	}

	// Newlines separate holding paragraphs and are kept.
	embedder, err := embeddings.NewEmbedder(llm,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: creating embedder: %w", err)
	}

	logger.Debug("ollama embedder: model=%s url=%s dims=%d", cfg.Model, cfg.BaseURL, cfg.Dimensions)
	return newWithEmbedder(embedder, cfg), nil
}

func newWithEmbedder(embedder embeddings.Embedder, cfg Config) *EmbeddingService {
	cfg = withDefaults(cfg)
	return &EmbeddingService{
		embedder:   embedder,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return cfg
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, wrapError(err)
	}
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts. The embedder splits the
// input into batches of the configured size.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vecs, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: ollama returned %d vectors for %d texts",
			domain.ErrEmbeddingUnavailable, len(vecs), len(texts))
	}
	return vecs, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping embeds a sample text and checks the model's vector size against the
// configured dimensions.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	vec, err := s.Embed(ctx, pingText)
	if err != nil {
		return err
	}
	if len(vec) != s.dimensions {
		return fmt.Errorf("%w: model %s produces %d dimensions, configured %d",
			domain.ErrEmbeddingUnavailable, s.model, len(vec), s.dimensions)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

// wrapError marks backend failures as embedding unavailability while keeping
// cancellation visible to callers.
func wrapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: ollama: %w", domain.ErrEmbeddingUnavailable, err)
}

package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

type openaiMockEmbedder struct {
	dims int
	err  error
}

func (m *openaiMockEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return make([]float32, m.dims), nil
}

func (m *openaiMockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, m.dims)
	}
	return out, nil
}

func TestNewEmbeddingService_RequiresKey(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.Error(t, err)
}

func TestWithDefaults_ModelDimensions(t *testing.T) {
	assert.Equal(t, 1536, withDefaults(Config{}).Dimensions)
	assert.Equal(t, 3072, withDefaults(Config{Model: "text-embedding-3-large"}).Dimensions)
	assert.Equal(t, 1536, withDefaults(Config{Model: "custom"}).Dimensions)
	assert.Equal(t, 256, withDefaults(Config{Dimensions: 256}).Dimensions)
}

func TestEmbeddingService(t *testing.T) {
	svc := newWithEmbedder(&openaiMockEmbedder{dims: 1536}, Config{})

	vec, err := svc.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, vec, 1536)

	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	assert.NoError(t, svc.Ping(context.Background()))
	assert.Equal(t, DefaultModel, svc.ModelName())
}

func TestEmbeddingService_Errors(t *testing.T) {
	svc := newWithEmbedder(&openaiMockEmbedder{err: errors.New("401 invalid key")}, Config{})
	_, err := svc.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	svc = newWithEmbedder(&openaiMockEmbedder{dims: 8}, Config{})
	assert.ErrorIs(t, svc.Ping(context.Background()), domain.ErrEmbeddingUnavailable)
}

package ollama

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

type ollamaMockEmbedder struct {
	dims    int
	err     error
	queries []string
	docs    [][]string
	short   bool
}

func (m *ollamaMockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	m.queries = append(m.queries, text)
	if m.err != nil {
		return nil, m.err
	}
	return make([]float32, m.dims), nil
}

func (m *ollamaMockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	m.docs = append(m.docs, texts)
	if m.err != nil {
		return nil, m.err
	}
	n := len(texts)
	if m.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, m.dims)
		out[i][0] = float32(i)
	}
	return out, nil
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc, err := NewEmbeddingService(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, DefaultDimensions, svc.Dimensions())
	assert.Equal(t, DefaultTimeout, svc.timeout)
	assert.NoError(t, svc.Close())
}

func TestEmbeddingService_Embed(t *testing.T) {
	mock := &ollamaMockEmbedder{dims: 4}
	svc := newWithEmbedder(mock, Config{Model: "bge-m3", Dimensions: 4})

	vec, err := svc.Embed(context.Background(), "불법행위\n손해배상")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, []string{"불법행위\n손해배상"}, mock.queries)
	assert.Equal(t, "bge-m3", svc.ModelName())
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	mock := &ollamaMockEmbedder{dims: 3}
	svc := newWithEmbedder(mock, Config{Dimensions: 3})

	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(2), vecs[2][0])

	vecs, err = svc.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Len(t, mock.docs, 1)
}

func TestEmbeddingService_EmbedBatchCountMismatch(t *testing.T) {
	svc := newWithEmbedder(&ollamaMockEmbedder{dims: 3, short: true}, Config{Dimensions: 3})

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbeddingService_Errors(t *testing.T) {
	backendErr := errors.New("connection refused")
	svc := newWithEmbedder(&ollamaMockEmbedder{err: backendErr}, Config{})

	_, err := svc.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, backendErr)

	svc = newWithEmbedder(&ollamaMockEmbedder{err: context.Canceled}, Config{})
	_, err = svc.EmbedBatch(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbeddingService_Ping(t *testing.T) {
	mock := &ollamaMockEmbedder{dims: 768}
	svc := newWithEmbedder(mock, Config{})
	require.NoError(t, svc.Ping(context.Background()))
	assert.Equal(t, []string{pingText}, mock.queries)

	svc = newWithEmbedder(&ollamaMockEmbedder{dims: 1024}, Config{Dimensions: 768})
	err := svc.Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "1024")
}

package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder is a controllable embeddings.Embedder for exercising the
// batching and failure-propagation contracts without a network call.
type fakeEmbedder struct {
	calls     [][]string
	failAfter int // fail on the call whose index equals failAfter (0-based), -1 never
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, texts)
	if f.failAfter >= 0 && idx == f.failAfter {
		return nil, errors.New("provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func newTestClient(t *testing.T, impl *fakeEmbedder) *Client {
	t.Helper()
	return &Client{provider: ProviderLocal, model: "test", dimension: 1, batchSize: MaxBatch, impl: impl}
}

func TestEmbedManyBatching(t *testing.T) {
	impl := &fakeEmbedder{failAfter: -1}
	c := newTestClient(t, impl)

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = "x"
	}
	vectors, err := c.EmbedMany(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 250)
	// 250 texts at MaxBatch=100 means 3 sequential provider calls.
	assert.Len(t, impl.calls, 3)
	assert.Len(t, impl.calls[0], 100)
	assert.Len(t, impl.calls[1], 100)
	assert.Len(t, impl.calls[2], 50)
}

func TestEmbedManyFailsWholeCallOnBatchError(t *testing.T) {
	impl := &fakeEmbedder{failAfter: 1}
	c := newTestClient(t, impl)

	texts := make([]string, 150)
	for i := range texts {
		texts[i] = "y"
	}
	vectors, err := c.EmbedMany(context.Background(), texts)
	require.Error(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedManyEmptyInput(t *testing.T) {
	c := newTestClient(t, &fakeEmbedder{failAfter: -1})
	vectors, err := c.EmbedMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedManyPreservesOrder(t *testing.T) {
	impl := &fakeEmbedder{failAfter: -1}
	c := newTestClient(t, impl)
	texts := []string{"a", "bb", "ccc"}
	vectors, err := c.EmbedMany(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0])
	}
}

func TestLocalClientDeterministic(t *testing.T) {
	lc := newLocalClient(8)
	v1, err := lc.CreateEmbedding(context.Background(), []string{"hello"})
	require.NoError(t, err)
	v2, err := lc.CreateEmbedding(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1[0], 8)
}

package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragdocs/docuqa/internal/store"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedOne(_ context.Context, _ string) ([]float32, error) {
	return f.vector, f.err
}

func seedStore(t *testing.T, st *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.CreateDocument(ctx, &store.Document{ID: "doc-1", Filename: "a.txt", FileHash: "h1"}))
	require.NoError(t, st.CreateChunksBatch(ctx, "doc-1", []store.NewChunk{
		{Index: 0, Text: "the quick brown fox", Embedding: []float32{1, 0, 0}},
		{Index: 1, Text: "jumps over the lazy dog", Embedding: []float32{0.9, 0.1, 0}},
		{Index: 2, Text: "an unrelated sentence about cats", Embedding: []float32{0, 0, 1}},
	}))
}

func TestSemanticRanksBySimilarity(t *testing.T) {
	st := store.NewMemoryStore()
	seedStore(t, st)
	svc := NewService(&fakeEmbedder{vector: []float32{1, 0, 0}}, st, nil)

	results, err := svc.Semantic(context.Background(), "fox", 2, Filter{}, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Chunk.ChunkIndex)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
}

func TestLexicalScoreSaturatesAtFive(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.CreateDocument(ctx, &store.Document{ID: "doc-1", FileHash: "h1"}))
	require.NoError(t, st.CreateChunksBatch(ctx, "doc-1", []store.NewChunk{
		{Index: 0, Text: "fox fox fox fox fox fox"},
	}))
	svc := NewService(&fakeEmbedder{}, st, nil)

	results, err := svc.Lexical(ctx, "fox", 5, Filter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1.0, results[0].Lexical)
}

func TestHybridFusesScoresInDescendingOrder(t *testing.T) {
	st := store.NewMemoryStore()
	seedStore(t, st)
	svc := NewService(&fakeEmbedder{vector: []float32{1, 0, 0}}, st, nil)

	results, err := svc.Hybrid(context.Background(), "fox", 3, Filter{}, DefaultHybridWeights())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Combined, results[i].Combined)
	}
}

func TestHybridRejectsInvalidWeights(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(&fakeEmbedder{vector: []float32{1, 0, 0}}, st, nil)
	_, err := svc.Hybrid(context.Background(), "q", 3, Filter{}, HybridWeights{Semantic: 0, Lexical: 0})
	require.Error(t, err)
}

func TestWithContextFetchesNeighbors(t *testing.T) {
	st := store.NewMemoryStore()
	seedStore(t, st)
	svc := NewService(&fakeEmbedder{vector: []float32{0.9, 0.1, 0}}, st, nil)

	results, err := svc.Semantic(context.Background(), "dog", 1, Filter{}, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)

	withCtx, err := svc.WithContext(context.Background(), results)
	require.NoError(t, err)
	require.Len(t, withCtx, 1)
	if withCtx[0].Result.Chunk.ChunkIndex == 1 {
		require.NotNil(t, withCtx[0].Previous)
		require.NotNil(t, withCtx[0].Next)
		assert.Equal(t, 0, withCtx[0].Previous.ChunkIndex)
		assert.Equal(t, 2, withCtx[0].Next.ChunkIndex)
	}
}

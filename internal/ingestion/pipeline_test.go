package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragdocs/docuqa/internal/chunk"
	"github.com/ragdocs/docuqa/internal/store"
)

type fakeEmbedder struct {
	vectors [][]float32
	err     error
	calls   int
	failFor int // fail this many calls before succeeding, -1 never fail
}

func (f *fakeEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failFor > 0 {
		f.failFor--
		return nil, errors.New("transient provider error")
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func newTestPipeline(t *testing.T, st store.Store, emb Embedder) *Pipeline {
	t.Helper()
	p, err := NewPipeline(st, emb, chunk.Settings{Size: 50, Overlap: 10}, RetryPolicy{Attempts: 2, Backoff: 0, Max: 0})
	require.NoError(t, err)
	return p
}

func TestProcessDocumentHappyPath(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.CreateDocument(ctx, &store.Document{ID: "doc-1", FileType: "txt", FileHash: "h1"}))
	p := newTestPipeline(t, st, &fakeEmbedder{failFor: -1})

	err := p.ProcessDocument(ctx, "doc-1", []byte("hello world, this is some document text to chunk."))
	require.NoError(t, err)

	doc, err := st.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, doc.ProcessingStatus)
	assert.Greater(t, doc.ChunkCount, 0)

	chunks, err := st.GetChunksByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, chunks, doc.ChunkCount)
}

func TestProcessDocumentFailsOnNoContent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.CreateDocument(ctx, &store.Document{ID: "doc-1", FileType: "txt", FileHash: "h1"}))
	p := newTestPipeline(t, st, &fakeEmbedder{failFor: -1})

	err := p.ProcessDocument(ctx, "doc-1", []byte("   "))
	require.NoError(t, err)

	doc, err := st.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, doc.ProcessingStatus)
	assert.Contains(t, doc.ErrorMessage, "no_content")
}

func TestProcessDocumentFailsOnParseError(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.CreateDocument(ctx, &store.Document{ID: "doc-1", FileType: "unsupported", FileHash: "h1"}))
	p := newTestPipeline(t, st, &fakeEmbedder{failFor: -1})

	err := p.ProcessDocument(ctx, "doc-1", []byte("hello"))
	require.NoError(t, err)

	doc, err := st.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, doc.ProcessingStatus)
	assert.Contains(t, doc.ErrorMessage, "parse_error")
}

func TestProcessDocumentRetriesEmbedThenSucceeds(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.CreateDocument(ctx, &store.Document{ID: "doc-1", FileType: "txt", FileHash: "h1"}))
	emb := &fakeEmbedder{failFor: 1}
	p := newTestPipeline(t, st, emb)

	err := p.ProcessDocument(ctx, "doc-1", []byte("hello world, retrying embeds."))
	require.NoError(t, err)
	assert.Equal(t, 2, emb.calls)

	doc, err := st.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, doc.ProcessingStatus)
}

func TestProcessDocumentRejectsAlreadyCompleted(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.CreateDocument(ctx, &store.Document{ID: "doc-1", FileType: "txt", FileHash: "h1"}))
	require.NoError(t, st.UpdateDocumentStatus(ctx, "doc-1", store.StatusProcessing, store.StatusUpdate{}))
	require.NoError(t, st.UpdateDocumentStatus(ctx, "doc-1", store.StatusCompleted, store.StatusUpdate{}))

	p := newTestPipeline(t, st, &fakeEmbedder{failFor: -1})
	err := p.ProcessDocument(ctx, "doc-1", []byte("irrelevant"))
	require.NoError(t, err)

	doc, err := st.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, doc.ProcessingStatus)
}

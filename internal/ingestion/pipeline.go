// Package ingestion drives a Document from pending through parsing,
// chunking, embedding, and indexing to a terminal completed/failed status.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/ragdocs/docuqa/internal/apperr"
	"github.com/ragdocs/docuqa/internal/chunk"
	"github.com/ragdocs/docuqa/internal/parser"
	"github.com/ragdocs/docuqa/internal/store"
)

// Embedder is the subset of internal/embedder.Client the pipeline needs.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// RetryPolicy controls the doubling-backoff-with-cap scheme applied to the
// embed and persist steps.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
	Max      time.Duration
}

// DefaultRetryPolicy returns the baseline retry/backoff settings.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 200 * time.Millisecond, Max: 2 * time.Second}
}

func (r RetryPolicy) backoffDuration(attempt int) time.Duration {
	if r.Backoff <= 0 {
		return 0
	}
	delay := r.Backoff
	for i := 0; i < attempt; i++ {
		if r.Max > 0 && delay >= r.Max {
			return r.Max
		}
		delay *= 2
	}
	if r.Max > 0 && delay > r.Max {
		return r.Max
	}
	return delay
}

// Pipeline turns one claimed Document into completed or failed.
type Pipeline struct {
	store    store.Store
	embedder Embedder
	chunker  *chunk.Processor
	retry    RetryPolicy
}

// NewPipeline builds a Pipeline. chunkSettings configures C1 for every
// document this Pipeline processes.
func NewPipeline(st store.Store, emb Embedder, chunkSettings chunk.Settings, retry RetryPolicy) (*Pipeline, error) {
	processor, err := chunk.NewProcessor(chunkSettings)
	if err != nil {
		return nil, err
	}
	return &Pipeline{store: st, embedder: emb, chunker: processor, retry: retry}, nil
}

// ProcessDocument claims documentID and carries it through parse, chunk,
// embed, and persist. A rejected claim (already processing or completed) is
// not an error — it means another worker owns the document, or it is
// already done.
func (p *Pipeline) ProcessDocument(ctx context.Context, documentID string, rawContent []byte) error {
	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if claimErr := p.store.UpdateDocumentStatus(ctx, documentID, store.StatusProcessing, store.StatusUpdate{}); claimErr != nil {
		if apperr.Is(claimErr, apperr.KindInvalidTransition) {
			return nil
		}
		return claimErr
	}

	parsed, parseErr := parser.Parse(doc.FileType, rawContent)
	if parseErr != nil {
		return p.fail(ctx, documentID, fmt.Sprintf("parse_error: %v", parseErr))
	}

	chunks, chunkErr := p.chunker.Process(chunk.Document{ID: documentID, Text: parsed.Text})
	if chunkErr != nil {
		return p.fail(ctx, documentID, fmt.Sprintf("chunk_error: %v", chunkErr))
	}
	if len(chunks) == 0 {
		return p.fail(ctx, documentID, "no_content")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, embedErr := p.embedWithRetry(ctx, texts)
	if embedErr != nil {
		return p.fail(ctx, documentID, fmt.Sprintf("embed_error: %v", embedErr))
	}
	if len(vectors) != len(chunks) {
		return p.fail(ctx, documentID, fmt.Sprintf(
			"embed_error: embedder returned %d vectors for %d chunks", len(vectors), len(chunks),
		))
	}

	newChunks := make([]store.NewChunk, len(chunks))
	for i, c := range chunks {
		newChunks[i] = store.NewChunk{Index: c.Index, Text: c.Text, Embedding: vectors[i]}
	}
	if persistErr := p.persistWithRetry(ctx, documentID, newChunks); persistErr != nil {
		return p.fail(ctx, documentID, fmt.Sprintf("persist_error: %v", persistErr))
	}

	wordCount := countWords(parsed.Text)
	updateErr := p.store.UpdateDocumentStatus(ctx, documentID, store.StatusCompleted, store.StatusUpdate{
		CharacterCount: len(parsed.Text),
		WordCount:      wordCount,
		PageCount:      parsed.PageCount,
		ChunkCount:     len(chunks),
	})
	if updateErr != nil {
		return p.fail(ctx, documentID, fmt.Sprintf("persist_error: %v", updateErr))
	}
	return nil
}

// fail records the failure status and attempts to remove any
// partially-written chunks; the delete is idempotent and its own error does
// not mask the original failure reason.
func (p *Pipeline) fail(ctx context.Context, documentID, reason string) error {
	_ = p.store.DeleteChunksByDocument(ctx, documentID)
	if updErr := p.store.UpdateDocumentStatus(ctx, documentID, store.StatusFailed, store.StatusUpdate{ErrorMessage: reason}); updErr != nil {
		return fmt.Errorf("ingestion: record failure for %s (%s): %w", documentID, reason, updErr)
	}
	return nil
}

func (p *Pipeline) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	var err error
	for attempt := 0; attempt < p.retry.Attempts; attempt++ {
		if attempt > 0 {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			time.Sleep(p.retry.backoffDuration(attempt))
		}
		out, err = p.embedder.EmbedMany(ctx, texts)
		if err == nil {
			return out, nil
		}
	}
	return nil, err
}

func (p *Pipeline) persistWithRetry(ctx context.Context, documentID string, chunks []store.NewChunk) error {
	var err error
	for attempt := 0; attempt < p.retry.Attempts; attempt++ {
		if attempt > 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(p.retry.backoffDuration(attempt))
		}
		err = p.store.CreateChunksBatch(ctx, documentID, chunks)
		if err == nil {
			return nil
		}
	}
	return err
}

func countWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if isSpace {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}

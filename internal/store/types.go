// Package store persists Documents and Chunks and serves vector- and
// substring-based retrieval over them.
package store

import (
	"context"
	"time"
)

// Status is a Document's position in the pending -> processing ->
// {completed, failed} DAG.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Document is an ingested file.
type Document struct {
	ID               string     `db:"document_id"`
	Filename         string     `db:"filename"`
	FileType         string     `db:"file_type"`
	FileSize         int64      `db:"file_size"`
	FileHash         string     `db:"file_hash"`
	FilePath         string     `db:"file_path"`
	CharacterCount   int        `db:"character_count"`
	WordCount        int        `db:"word_count"`
	PageCount        int        `db:"page_count"`
	ChunkCount       int        `db:"chunk_count"`
	ProcessingStatus Status     `db:"processing_status"`
	ErrorMessage     string     `db:"error_message"`
	UploadedAt       time.Time  `db:"uploaded_at"`
	ProcessedAt      *time.Time `db:"processed_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// Chunk is a passage of a Document.
type Chunk struct {
	ID         string    `db:"chunk_id"`
	DocumentID string    `db:"document_id"`
	ChunkIndex int       `db:"chunk_index"`
	Text       string    `db:"chunk_text"`
	ChunkSize  int       `db:"chunk_size"`
	Embedding  []float32 `db:"-"`
	CreatedAt  time.Time `db:"created_at"`
}

// NewChunk is a single chunk to be persisted as part of a batch.
type NewChunk struct {
	Index     int
	Text      string
	Embedding []float32
}

// VectorMatch is a chunk ranked by cosine similarity.
type VectorMatch struct {
	Chunk      Chunk
	Similarity float64
}

// SubstringMatch is a chunk ranked by substring occurrence.
type SubstringMatch struct {
	Chunk           Chunk
	OccurrenceCount int
}

// CompletionStats summarizes the corpus for /search/stats and /rag/health.
type CompletionStats struct {
	TotalDocuments       int
	TotalChunks          int
	ChunksWithEmbeddings int
}

// ListFilter narrows list_documents / count_documents by status.
type ListFilter struct {
	Status *Status
}

// Store is the durable persistence and retrieval contract for Documents and
// Chunks. Two implementations exist behind this interface: postgres (pgvector
// + HNSW) and memory (flat linear scan), so callers and tests never depend
// on a concrete index flavor.
type Store interface {
	// CreateDocument inserts doc. If a Document with the same FileHash
	// already exists, it returns apperr.DuplicateContent carrying the
	// existing identifier and does not insert a new row.
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	GetDocumentByHash(ctx context.Context, hash string) (*Document, error)
	ListDocuments(ctx context.Context, offset, limit int, filter ListFilter) ([]Document, int, error)
	CountDocuments(ctx context.Context, filter ListFilter) (int, error)

	// UpdateDocumentStatus is guarded by the pending -> processing ->
	// {completed, failed} DAG; illegal transitions return
	// apperr.InvalidTransition.
	UpdateDocumentStatus(ctx context.Context, id string, newStatus Status, fields StatusUpdate) error
	DeleteDocument(ctx context.Context, id string) error

	// CreateChunksBatch inserts all chunks for a document atomically:
	// either every row appears or none does.
	CreateChunksBatch(ctx context.Context, documentID string, chunks []NewChunk) error
	GetChunksByDocument(ctx context.Context, documentID string) ([]Chunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID string) error

	SearchVector(ctx context.Context, query []float32, k int, filterDocumentID string, minSimilarity float64) ([]VectorMatch, error)
	SearchSubstring(ctx context.Context, queryText string, k int, filterDocumentID string) ([]SubstringMatch, error)

	Stats(ctx context.Context) (CompletionStats, error)

	Close(ctx context.Context) error
}

// StatusUpdate carries the fields written alongside a status transition.
// Zero values are treated as "no change" except for ErrorMessage, which is
// always set verbatim (empty clears it).
type StatusUpdate struct {
	ErrorMessage   string
	CharacterCount int
	WordCount      int
	PageCount      int
	ChunkCount     int
}

// ValidTransition reports whether from -> to is an allowed status change.
func ValidTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	case StatusFailed:
		return to == StatusProcessing
	default:
		return false
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/ragdocs/docuqa/internal/apperr"
)

const (
	documentsTable = "documents"
	chunksTable    = "document_chunks"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// PGVectorStore persists Documents and Chunks in Postgres, with chunk
// embeddings indexed by the pgvector extension's HNSW index.
type PGVectorStore struct {
	pool      *pgxpool.Pool
	dimension int
}

// PostgresConfig configures a PGVectorStore.
type PostgresConfig struct {
	DSN       string
	Dimension int
}

// NewPostgresStore connects to Postgres and ensures the schema and HNSW
// index exist. m=16 and ef_construction=64 trade build time for recall
// quality appropriate to a document corpus this size.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PGVectorStore, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	s := &PGVectorStore{pool: pool, dimension: cfg.Dimension}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGVectorStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			document_id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			file_type TEXT NOT NULL,
			file_size BIGINT NOT NULL,
			file_hash TEXT NOT NULL UNIQUE,
			file_path TEXT NOT NULL,
			character_count INTEGER NOT NULL DEFAULT 0,
			word_count INTEGER NOT NULL DEFAULT 0,
			page_count INTEGER NOT NULL DEFAULT 0,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			processing_status TEXT NOT NULL DEFAULT 'pending',
			error_message TEXT NOT NULL DEFAULT '',
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			processed_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, documentsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_documents_status ON %s (processing_status)`, documentsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			chunk_id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES %s(document_id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			chunk_text TEXT NOT NULL,
			chunk_size INTEGER NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (document_id, chunk_index)
		)`, chunksTable, documentsTable, s.dimension),
		fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding ON %s
			 USING hnsw (embedding vector_cosine_ops) WITH (m = 16, ef_construction = 64)`,
			chunksTable,
		),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PGVectorStore) CreateDocument(ctx context.Context, doc *Document) error {
	query, args, err := psql.Insert(documentsTable).
		Columns(
			"document_id", "filename", "file_type", "file_size", "file_hash", "file_path",
			"character_count", "word_count", "page_count", "chunk_count", "processing_status",
		).
		Values(
			doc.ID, doc.Filename, doc.FileType, doc.FileSize, doc.FileHash, doc.FilePath,
			doc.CharacterCount, doc.WordCount, doc.PageCount, doc.ChunkCount, StatusPending,
		).
		Suffix("ON CONFLICT (file_hash) DO NOTHING RETURNING uploaded_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("store: build insert document: %w", err)
	}
	row := s.pool.QueryRow(ctx, query, args...)
	if err := row.Scan(&doc.UploadedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			existing, getErr := s.GetDocumentByHash(ctx, doc.FileHash)
			if getErr != nil {
				return fmt.Errorf("store: resolve duplicate document: %w", getErr)
			}
			return apperr.DuplicateContent(existing.ID)
		}
		return apperr.Store("insert document", err)
	}
	doc.ProcessingStatus = StatusPending
	return nil
}

func (s *PGVectorStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	query, args, err := psql.Select("*").From(documentsTable).Where(squirrel.Eq{"document_id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select document: %w", err)
	}
	var doc Document
	if err := pgxscan.Get(ctx, s.pool, &doc, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperr.NotFound("document not found")
		}
		return nil, apperr.Store("get document", err)
	}
	return &doc, nil
}

func (s *PGVectorStore) GetDocumentByHash(ctx context.Context, hash string) (*Document, error) {
	query, args, err := psql.Select("*").From(documentsTable).Where(squirrel.Eq{"file_hash": hash}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select document by hash: %w", err)
	}
	var doc Document
	if err := pgxscan.Get(ctx, s.pool, &doc, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperr.NotFound("document not found")
		}
		return nil, apperr.Store("get document by hash", err)
	}
	return &doc, nil
}

func (s *PGVectorStore) ListDocuments(ctx context.Context, offset, limit int, filter ListFilter) ([]Document, int, error) {
	builder := psql.Select("*").From(documentsTable).OrderBy("uploaded_at DESC")
	countBuilder := psql.Select("COUNT(*)").From(documentsTable)
	if filter.Status != nil {
		builder = builder.Where(squirrel.Eq{"processing_status": *filter.Status})
		countBuilder = countBuilder.Where(squirrel.Eq{"processing_status": *filter.Status})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("store: build list documents: %w", err)
	}
	var docs []Document
	if err := pgxscan.Select(ctx, s.pool, &docs, query, args...); err != nil {
		return nil, 0, apperr.Store("list documents", err)
	}
	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("store: build count documents: %w", err)
	}
	var total int
	if err := pgxscan.Get(ctx, s.pool, &total, countQuery, countArgs...); err != nil {
		return nil, 0, apperr.Store("count documents", err)
	}
	return docs, total, nil
}

func (s *PGVectorStore) CountDocuments(ctx context.Context, filter ListFilter) (int, error) {
	builder := psql.Select("COUNT(*)").From(documentsTable)
	if filter.Status != nil {
		builder = builder.Where(squirrel.Eq{"processing_status": *filter.Status})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("store: build count documents: %w", err)
	}
	var total int
	if err := pgxscan.Get(ctx, s.pool, &total, query, args...); err != nil {
		return 0, apperr.Store("count documents", err)
	}
	return total, nil
}

func (s *PGVectorStore) UpdateDocumentStatus(ctx context.Context, id string, newStatus Status, fields StatusUpdate) error {
	current, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if !ValidTransition(current.ProcessingStatus, newStatus) {
		return apperr.InvalidTransition(string(current.ProcessingStatus), string(newStatus))
	}
	builder := psql.Update(documentsTable).
		Set("processing_status", newStatus).
		Set("error_message", fields.ErrorMessage).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"document_id": id, "processing_status": current.ProcessingStatus})
	if fields.CharacterCount != 0 {
		builder = builder.Set("character_count", fields.CharacterCount)
	}
	if fields.WordCount != 0 {
		builder = builder.Set("word_count", fields.WordCount)
	}
	if fields.PageCount != 0 {
		builder = builder.Set("page_count", fields.PageCount)
	}
	if fields.ChunkCount != 0 {
		builder = builder.Set("chunk_count", fields.ChunkCount)
	}
	if newStatus == StatusCompleted || newStatus == StatusFailed {
		builder = builder.Set("processed_at", squirrel.Expr("now()"))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("store: build update document status: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return apperr.Store("update document status", err)
	}
	if tag.RowsAffected() == 0 {
		// Another writer changed the status after it was read above.
		return apperr.InvalidTransition(string(current.ProcessingStatus), string(newStatus))
	}
	return nil
}

func (s *PGVectorStore) DeleteDocument(ctx context.Context, id string) error {
	query, args, err := psql.Delete(documentsTable).Where(squirrel.Eq{"document_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("store: build delete document: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return apperr.Store("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("document not found")
	}
	return nil
}

// CreateChunksBatch inserts all chunks within a single transaction so a
// partially-ingested document never becomes visible to readers.
func (s *PGVectorStore) CreateChunksBatch(ctx context.Context, documentID string, chunks []NewChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Store("begin chunk batch", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	for _, nc := range chunks {
		query, args, err := psql.Insert(chunksTable).
			Columns("chunk_id", "document_id", "chunk_index", "chunk_text", "chunk_size", "embedding").
			Values(
				chunkID(documentID, nc.Index), documentID, nc.Index, nc.Text, len(nc.Text),
				pgvector.NewVector(nc.Embedding),
			).
			Suffix("ON CONFLICT (document_id, chunk_index) DO UPDATE SET chunk_text = EXCLUDED.chunk_text, chunk_size = EXCLUDED.chunk_size, embedding = EXCLUDED.embedding").
			ToSql()
		if err != nil {
			return fmt.Errorf("store: build insert chunk: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return apperr.Store("insert chunk", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Store("commit chunk batch", err)
	}
	return nil
}

func (s *PGVectorStore) GetChunksByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	query, args, err := psql.Select("chunk_id", "document_id", "chunk_index", "chunk_text", "chunk_size", "created_at").
		From(chunksTable).
		Where(squirrel.Eq{"document_id": documentID}).
		OrderBy("chunk_index ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select chunks: %w", err)
	}
	var chunks []Chunk
	if err := pgxscan.Select(ctx, s.pool, &chunks, query, args...); err != nil {
		return nil, apperr.Store("list chunks", err)
	}
	return chunks, nil
}

func (s *PGVectorStore) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	query, args, err := psql.Delete(chunksTable).Where(squirrel.Eq{"document_id": documentID}).ToSql()
	if err != nil {
		return fmt.Errorf("store: build delete chunks: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return apperr.Store("delete chunks", err)
	}
	return nil
}

// SearchVector ranks chunks by cosine similarity using the <=> operator,
// which pgvector's HNSW index accelerates. The query vector is bound once
// via $1 and referenced three times (select, filter, order by); squirrel's
// `?` rewriter would bind it positionally per occurrence, so the statement
// is built by hand instead.
func (s *PGVectorStore) SearchVector(
	ctx context.Context,
	query []float32,
	k int,
	filterDocumentID string,
	minSimilarity float64,
) ([]VectorMatch, error) {
	vec := pgvector.NewVector(query)
	args := []interface{}{vec, minSimilarity}
	where := "embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $2"
	if filterDocumentID != "" {
		args = append(args, filterDocumentID)
		where += fmt.Sprintf(" AND document_id = $%d", len(args))
	}
	args = append(args, k)
	sqlStr := fmt.Sprintf(
		`SELECT chunk_id, document_id, chunk_index, chunk_text, chunk_size, created_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM %s
		 WHERE %s
		 ORDER BY embedding <=> $1 ASC
		 LIMIT $%d`,
		chunksTable, where, len(args),
	)
	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, apperr.Store("vector search", err)
	}
	defer rows.Close()
	var matches []VectorMatch
	for rows.Next() {
		var c Chunk
		var sim float64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.ChunkSize, &c.CreatedAt, &sim); err != nil {
			return nil, apperr.Store("scan vector match", err)
		}
		matches = append(matches, VectorMatch{Chunk: c, Similarity: sim})
	}
	return matches, rows.Err()
}

func (s *PGVectorStore) SearchSubstring(ctx context.Context, queryText string, k int, filterDocumentID string) ([]SubstringMatch, error) {
	builder := psql.Select("chunk_id", "document_id", "chunk_index", "chunk_text", "chunk_size", "created_at").
		From(chunksTable).
		Where(squirrel.Expr("chunk_text ILIKE ?", "%"+queryText+"%")).
		Limit(uint64(k * 4))
	if filterDocumentID != "" {
		builder = builder.Where(squirrel.Eq{"document_id": filterDocumentID})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build substring search: %w", err)
	}
	var chunks []Chunk
	if err := pgxscan.Select(ctx, s.pool, &chunks, query, args...); err != nil {
		return nil, apperr.Store("substring search", err)
	}
	matches := make([]SubstringMatch, 0, len(chunks))
	for _, c := range chunks {
		matches = append(matches, SubstringMatch{Chunk: c, OccurrenceCount: countOccurrences(c.Text, queryText)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].OccurrenceCount != matches[j].OccurrenceCount {
			return matches[i].OccurrenceCount > matches[j].OccurrenceCount
		}
		return lessChunkOrder(matches[i].Chunk, matches[j].Chunk)
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *PGVectorStore) Stats(ctx context.Context) (CompletionStats, error) {
	var stats CompletionStats
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", documentsTable))
	if err := row.Scan(&stats.TotalDocuments); err != nil {
		return stats, apperr.Store("count documents for stats", err)
	}
	row = s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*), COUNT(embedding) FROM %s", chunksTable))
	if err := row.Scan(&stats.TotalChunks, &stats.ChunksWithEmbeddings); err != nil {
		return stats, apperr.Store("count chunks for stats", err)
	}
	return stats, nil
}

func (s *PGVectorStore) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}

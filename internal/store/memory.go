package store

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ragdocs/docuqa/internal/apperr"
)

// MemoryStore is a dependency-free flat linear-scan Store, used by tests and
// as a fallback when no Postgres DSN is configured. Vector search scores
// every chunk by cosine similarity rather than consulting an ANN index, so
// results are exact but O(n) in the number of chunks.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
	byHash    map[string]string
	chunks    map[string][]Chunk // documentID -> chunks, ordered by ChunkIndex
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]*Document),
		byHash:    make(map[string]string),
		chunks:    make(map[string][]Chunk),
	}
}

func (m *MemoryStore) CreateDocument(_ context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existingID, ok := m.byHash[doc.FileHash]; ok {
		return apperr.DuplicateContent(existingID)
	}
	cp := *doc
	if cp.ProcessingStatus == "" {
		cp.ProcessingStatus = StatusPending
	}
	if cp.UploadedAt.IsZero() {
		cp.UploadedAt = time.Now().UTC()
	}
	cp.UpdatedAt = cp.UploadedAt
	m.documents[cp.ID] = &cp
	m.byHash[cp.FileHash] = cp.ID
	return nil
}

func (m *MemoryStore) GetDocument(_ context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, apperr.NotFound("document not found")
	}
	cp := *doc
	return &cp, nil
}

func (m *MemoryStore) GetDocumentByHash(_ context.Context, hash string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byHash[hash]
	if !ok {
		return nil, apperr.NotFound("document not found")
	}
	cp := *m.documents[id]
	return &cp, nil
}

func (m *MemoryStore) ListDocuments(_ context.Context, offset, limit int, filter ListFilter) ([]Document, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]Document, 0, len(m.documents))
	for _, doc := range m.documents {
		if filter.Status != nil && doc.ProcessingStatus != *filter.Status {
			continue
		}
		matched = append(matched, *doc)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UploadedAt.After(matched[j].UploadedAt)
	})
	total := len(matched)
	if offset >= total {
		return []Document{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *MemoryStore) CountDocuments(_ context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if filter.Status == nil {
		return len(m.documents), nil
	}
	count := 0
	for _, doc := range m.documents {
		if doc.ProcessingStatus == *filter.Status {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) UpdateDocumentStatus(_ context.Context, id string, newStatus Status, fields StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return apperr.NotFound("document not found")
	}
	if !ValidTransition(doc.ProcessingStatus, newStatus) {
		return apperr.InvalidTransition(string(doc.ProcessingStatus), string(newStatus))
	}
	doc.ProcessingStatus = newStatus
	doc.ErrorMessage = fields.ErrorMessage
	if fields.CharacterCount != 0 {
		doc.CharacterCount = fields.CharacterCount
	}
	if fields.WordCount != 0 {
		doc.WordCount = fields.WordCount
	}
	if fields.PageCount != 0 {
		doc.PageCount = fields.PageCount
	}
	if fields.ChunkCount != 0 {
		doc.ChunkCount = fields.ChunkCount
	}
	now := time.Now().UTC()
	doc.UpdatedAt = now
	if newStatus == StatusCompleted || newStatus == StatusFailed {
		doc.ProcessedAt = &now
	}
	return nil
}

func (m *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return apperr.NotFound("document not found")
	}
	delete(m.documents, id)
	delete(m.byHash, doc.FileHash)
	delete(m.chunks, id)
	return nil
}

func (m *MemoryStore) CreateChunksBatch(_ context.Context, documentID string, chunks []NewChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[documentID]; !ok {
		return apperr.NotFound("document not found")
	}
	out := make([]Chunk, len(chunks))
	now := time.Now().UTC()
	for i, nc := range chunks {
		out[i] = Chunk{
			ID:         chunkID(documentID, nc.Index),
			DocumentID: documentID,
			ChunkIndex: nc.Index,
			Text:       nc.Text,
			ChunkSize:  len(nc.Text),
			Embedding:  append([]float32(nil), nc.Embedding...),
			CreatedAt:  now,
		}
	}
	m.chunks[documentID] = out
	return nil
}

func (m *MemoryStore) GetChunksByDocument(_ context.Context, documentID string) ([]Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunks, ok := m.chunks[documentID]
	if !ok {
		return []Chunk{}, nil
	}
	cp := make([]Chunk, len(chunks))
	copy(cp, chunks)
	return cp, nil
}

func (m *MemoryStore) DeleteChunksByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, documentID)
	return nil
}

func (m *MemoryStore) SearchVector(
	_ context.Context,
	query []float32,
	k int,
	filterDocumentID string,
	minSimilarity float64,
) ([]VectorMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	candidates := make([]VectorMatch, 0, k*2)
	for docID, chunks := range m.chunks {
		if filterDocumentID != "" && docID != filterDocumentID {
			continue
		}
		for _, c := range chunks {
			if len(c.Embedding) == 0 {
				continue
			}
			sim := cosineSimilarity(query, c.Embedding)
			if sim < minSimilarity {
				continue
			}
			candidates = append(candidates, VectorMatch{Chunk: c, Similarity: sim})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return lessChunkOrder(candidates[i].Chunk, candidates[j].Chunk)
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func (m *MemoryStore) SearchSubstring(_ context.Context, queryText string, k int, filterDocumentID string) ([]SubstringMatch, error) {
	needle := strings.ToLower(strings.TrimSpace(queryText))
	m.mu.RLock()
	defer m.mu.RUnlock()
	candidates := make([]SubstringMatch, 0, k*2)
	if needle == "" {
		return candidates, nil
	}
	for docID, chunks := range m.chunks {
		if filterDocumentID != "" && docID != filterDocumentID {
			continue
		}
		for _, c := range chunks {
			count := strings.Count(strings.ToLower(c.Text), needle)
			if count == 0 {
				continue
			}
			candidates = append(candidates, SubstringMatch{Chunk: c, OccurrenceCount: count})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].OccurrenceCount != candidates[j].OccurrenceCount {
			return candidates[i].OccurrenceCount > candidates[j].OccurrenceCount
		}
		return lessChunkOrder(candidates[i].Chunk, candidates[j].Chunk)
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func (m *MemoryStore) Stats(_ context.Context) (CompletionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := CompletionStats{TotalDocuments: len(m.documents)}
	for _, chunks := range m.chunks {
		stats.TotalChunks += len(chunks)
		for _, c := range chunks {
			if len(c.Embedding) > 0 {
				stats.ChunksWithEmbeddings++
			}
		}
	}
	return stats, nil
}

func (m *MemoryStore) Close(context.Context) error { return nil }

func lessChunkOrder(a, b Chunk) bool {
	if a.DocumentID != b.DocumentID {
		return a.DocumentID < b.DocumentID
	}
	return a.ChunkIndex < b.ChunkIndex
}

func chunkID(documentID string, index int) string {
	return documentID + ":" + strconv.Itoa(index)
}

func countOccurrences(text, needle string) int {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return 0
	}
	return strings.Count(strings.ToLower(text), needle)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

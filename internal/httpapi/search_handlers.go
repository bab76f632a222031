package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ragdocs/docuqa/internal/apperr"
	"github.com/ragdocs/docuqa/internal/search"
)

func (s *Server) handleSearchSemantic(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		respondProblem(c, http.StatusBadRequest, "validation_error", "query is required")
		return
	}
	topK := queryInt(c, "top_k", 5)
	minSim := queryFloat(c, "min_similarity", 0)
	filter := search.Filter{DocumentID: c.Query("document_id")}

	results, err := s.search.Semantic(c.Request.Context(), query, topK, filter, minSim)
	if err != nil {
		respondError(c, err, http.StatusServiceUnavailable)
		return
	}
	ctx := c.Request.Context()
	out := make([]gin.H, 0, len(results))
	for _, r := range results {
		out = append(out, gin.H{
			"chunk_id":         r.Chunk.ID,
			"document_id":      r.Chunk.DocumentID,
			"document_name":    s.filenameOf(ctx, r.Chunk.DocumentID),
			"chunk_index":      r.Chunk.ChunkIndex,
			"text":             r.Chunk.Text,
			"similarity_score": r.Similarity,
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (s *Server) handleSearchKeyword(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		respondProblem(c, http.StatusBadRequest, "validation_error", "query is required")
		return
	}
	topK := queryInt(c, "top_k", 5)
	filter := search.Filter{DocumentID: c.Query("document_id")}

	results, err := s.search.Lexical(c.Request.Context(), query, topK, filter)
	if err != nil {
		respondError(c, err, http.StatusServiceUnavailable)
		return
	}
	ctx := c.Request.Context()
	out := make([]gin.H, 0, len(results))
	for _, r := range results {
		out = append(out, gin.H{
			"chunk_id":        r.Chunk.ID,
			"document_id":     r.Chunk.DocumentID,
			"document_name":   s.filenameOf(ctx, r.Chunk.DocumentID),
			"chunk_index":     r.Chunk.ChunkIndex,
			"text":            r.Chunk.Text,
			"relevance_score": r.Lexical,
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (s *Server) handleSearchHybrid(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		respondProblem(c, http.StatusBadRequest, "validation_error", "query is required")
		return
	}
	topK := queryInt(c, "top_k", 5)
	weights := search.HybridWeights{
		Semantic: queryFloat(c, "semantic_weight", search.DefaultHybridWeights().Semantic),
		Lexical:  queryFloat(c, "keyword_weight", search.DefaultHybridWeights().Lexical),
	}
	filter := search.Filter{DocumentID: c.Query("document_id")}

	results, err := s.search.Hybrid(c.Request.Context(), query, topK, filter, weights)
	if err != nil {
		status := http.StatusServiceUnavailable
		if apperr.Is(err, apperr.KindValidation) {
			status = http.StatusBadRequest
		}
		respondError(c, err, status)
		return
	}
	ctx := c.Request.Context()
	out := make([]gin.H, 0, len(results))
	for _, r := range results {
		out = append(out, gin.H{
			"chunk_id":       r.Chunk.ID,
			"document_id":    r.Chunk.DocumentID,
			"document_name":  s.filenameOf(ctx, r.Chunk.DocumentID),
			"chunk_index":    r.Chunk.ChunkIndex,
			"text":           r.Chunk.Text,
			"combined_score": r.Combined,
			"semantic_score": r.Similarity,
			"keyword_score":  r.Lexical,
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": out, "weights": weights})
}

func (s *Server) handleSearchStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, 0)
		return
	}
	pct := 0.0
	if stats.TotalChunks > 0 {
		pct = 100 * float64(stats.ChunksWithEmbeddings) / float64(stats.TotalChunks)
	}
	c.JSON(http.StatusOK, gin.H{
		"total_documents":        stats.TotalDocuments,
		"total_chunks":           stats.TotalChunks,
		"chunks_with_embeddings": stats.ChunksWithEmbeddings,
		"searchable_percentage":  pct,
	})
}

// filenameOf resolves a chunk's document ID to its display filename for
// the documented document_name response field. An unresolvable ID (e.g. a
// document deleted between retrieval and render) falls back to the ID
// itself rather than failing the whole response.
func (s *Server) filenameOf(ctx context.Context, documentID string) string {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return documentID
	}
	return doc.Filename
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func queryFloat(c *gin.Context, key string, fallback float64) float64 {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

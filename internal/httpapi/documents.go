package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ragdocs/docuqa/internal/store"
)

func (s *Server) handleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondProblem(c, http.StatusBadRequest, "validation_error", "missing multipart field \"file\"")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		respondProblem(c, http.StatusBadRequest, "validation_error", "could not read uploaded file")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		respondProblem(c, http.StatusBadRequest, "validation_error", "could not read uploaded file")
		return
	}

	result, err := s.upload.Upload(c.Request.Context(), fileHeader.Filename, content)
	if err != nil {
		respondError(c, err, 0)
		return
	}

	status := http.StatusCreated
	if result.Deduped {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"document_id":    result.DocumentID,
		"filename":       result.Filename,
		"size":           result.Size,
		"hash":           result.Hash,
		"chunks_created": 0,
		"metadata":       gin.H{"deduped": result.Deduped},
	})
}

func (s *Server) handleListDocuments(c *gin.Context) {
	offset, limit := parsePagination(c)
	filter := store.ListFilter{}
	if raw := c.Query("status"); raw != "" {
		st := store.Status(raw)
		filter.Status = &st
	}

	docs, total, err := s.store.ListDocuments(c.Request.Context(), offset, limit, filter)
	if err != nil {
		respondError(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "total_count": total})
}

func (s *Server) handleGetDocument(c *gin.Context) {
	doc, err := s.store.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"metadata":    doc,
		"status":      doc.ProcessingStatus,
		"chunk_count": doc.ChunkCount,
	})
}

func (s *Server) handleGetChunks(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.GetDocument(c.Request.Context(), id); err != nil {
		respondError(c, err, 0)
		return
	}
	chunks, err := s.store.GetChunksByDocument(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, 0)
		return
	}
	out := make([]gin.H, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, gin.H{
			"chunk_id":    ch.ID,
			"chunk_index": ch.ChunkIndex,
			"text":        ch.Text,
			"has_vector":  len(ch.Embedding) > 0,
		})
	}
	c.JSON(http.StatusOK, gin.H{"chunks": out})
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeleteDocument(c.Request.Context(), id); err != nil {
		respondError(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

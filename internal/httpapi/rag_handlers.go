package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ragdocs/docuqa/internal/apperr"
	"github.com/ragdocs/docuqa/internal/chatclient"
	"github.com/ragdocs/docuqa/internal/rag"
)

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Query               string     `json:"query"`
	ConversationHistory []chatTurn `json:"conversation_history"`
	DocumentID          string     `json:"document_id"`
	TopK                int        `json:"top_k"`
	Temperature         float64    `json:"temperature"`
	MaxTokens           int        `json:"max_tokens"`
}

func (s *Server) handleRAGChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondProblem(c, http.StatusBadRequest, "validation_error", "malformed request body")
		return
	}
	if req.Query == "" {
		respondProblem(c, http.StatusBadRequest, "validation_error", "query is required")
		return
	}

	opts := rag.DefaultOptions()
	opts.DocumentID = req.DocumentID
	if req.TopK > 0 {
		opts.TopK = req.TopK
	}
	if req.Temperature > 0 {
		opts.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		opts.MaxTokens = req.MaxTokens
	}
	for _, t := range req.ConversationHistory {
		opts.ConversationHistory = append(opts.ConversationHistory, rag.Turn{Role: chatclient.Role(t.Role), Content: t.Content})
	}

	resp, err := s.rag.Answer(c.Request.Context(), req.Query, opts)
	if err != nil {
		status := http.StatusBadGateway
		if apperr.Is(err, apperr.KindValidation) {
			status = http.StatusBadRequest
		}
		respondError(c, err, status)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"answer":       resp.Answer,
		"sources":      resp.Sources,
		"context_used": resp.ContextUsed,
		"model":        resp.Model,
		"tokens_used":  resp.TokensUsed,
	})
}

func (s *Server) handleRAGHealth(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, 0)
		return
	}
	status := "healthy"
	if stats.TotalChunks == 0 {
		status = "empty"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "statistics": stats})
}

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ragdocs/docuqa/internal/apperr"
	"github.com/ragdocs/docuqa/internal/logger"
)

// Problem is a trimmed RFC 7807 error envelope.
type Problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

func respondProblem(c *gin.Context, status int, code, detail string) {
	log := logger.FromContext(c.Request.Context())
	fields := []any{"status", status, "code", code, "path", c.Request.URL.Path}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
	} else {
		log.Warn("request failed", fields...)
	}
	c.JSON(status, Problem{Title: http.StatusText(status), Status: status, Detail: detail, Code: code})
	c.Abort()
}

// statusForError maps a component error kind to the HTTP status used by
// non-chat endpoints (validation/not-found/store).
func statusForError(err error) (int, string) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, "internal_error"
	}
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, "validation_error"
	case apperr.KindNotFound:
		return http.StatusNotFound, "not_found"
	case apperr.KindDuplicateContent:
		return http.StatusOK, "duplicate_content"
	case apperr.KindProvider:
		return http.StatusServiceUnavailable, "provider_error"
	default:
		return http.StatusInternalServerError, "store_error"
	}
}

// respondError renders err as a problem document. providerStatus lets each
// caller override the status used for provider errors (503 for search,
// 502 for chat) while every other error kind keeps its fixed status.
func respondError(c *gin.Context, err error, providerStatus int) {
	status, code := statusForError(err)
	if code == "provider_error" && providerStatus != 0 {
		status = providerStatus
	}
	respondProblem(c, status, code, err.Error())
}

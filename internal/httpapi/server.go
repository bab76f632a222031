// Package httpapi exposes the service's HTTP surface with gin, translating
// component errors to RFC-7807-flavored problem responses at the edge.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	charmlog "github.com/charmbracelet/log"

	"github.com/ragdocs/docuqa/internal/metrics"
	"github.com/ragdocs/docuqa/internal/rag"
	"github.com/ragdocs/docuqa/internal/search"
	"github.com/ragdocs/docuqa/internal/store"
	"github.com/ragdocs/docuqa/internal/upload"
)

// Server is the composition root for the HTTP surface: every handler
// resolves its collaborators from here, never from a package-level
// singleton.
type Server struct {
	store   store.Store
	search  *search.Service
	rag     *rag.Orchestrator
	upload  *upload.Coordinator
	metrics *metrics.Service
	log     *charmlog.Logger
}

// NewServer wires a Server from already-constructed collaborators.
func NewServer(
	st store.Store,
	searchSvc *search.Service,
	orchestrator *rag.Orchestrator,
	uploadCoordinator *upload.Coordinator,
	metricsSvc *metrics.Service,
	log *charmlog.Logger,
) *Server {
	return &Server{store: st, search: searchSvc, rag: orchestrator, upload: uploadCoordinator, metrics: metricsSvc, log: log}
}

// Router builds the gin engine implementing the documented HTTP surface.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	documents := r.Group("/documents")
	{
		documents.POST("/upload", s.handleUpload)
		documents.GET("/", s.handleListDocuments)
		documents.GET("/:id", s.handleGetDocument)
		documents.GET("/:id/chunks", s.handleGetChunks)
		documents.DELETE("/:id", s.handleDeleteDocument)
	}

	searchGroup := r.Group("/search")
	{
		searchGroup.GET("/semantic", s.handleSearchSemantic)
		searchGroup.GET("/keyword", s.handleSearchKeyword)
		searchGroup.GET("/hybrid", s.handleSearchHybrid)
		searchGroup.GET("/stats", s.handleSearchStats)
	}

	ragGroup := r.Group("/rag")
	{
		ragGroup.POST("/chat", s.handleRAGChat)
		ragGroup.GET("/health", s.handleRAGHealth)
	}

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

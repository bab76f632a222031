// Command server is the composition root: it loads configuration, wires
// every collaborator, and serves the HTTP surface until an interrupt
// signal requests a graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/ragdocs/docuqa/internal/chatclient"
	"github.com/ragdocs/docuqa/internal/chunk"
	"github.com/ragdocs/docuqa/internal/config"
	"github.com/ragdocs/docuqa/internal/embedder"
	"github.com/ragdocs/docuqa/internal/httpapi"
	"github.com/ragdocs/docuqa/internal/ingestion"
	"github.com/ragdocs/docuqa/internal/logger"
	"github.com/ragdocs/docuqa/internal/metrics"
	"github.com/ragdocs/docuqa/internal/rag"
	"github.com/ragdocs/docuqa/internal/search"
	"github.com/ragdocs/docuqa/internal/store"
	"github.com/ragdocs/docuqa/internal/store/migrations"
	"github.com/ragdocs/docuqa/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:      logger.Level(cfg.Log.Level),
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
		TimeFormat: "15:04:05",
	})

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *charmlog.Logger) error {
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	emb, err := embedder.New(embedder.Config{
		Provider:  embedder.Provider(cfg.Embed.Provider),
		Model:     cfg.Embed.Model,
		APIKey:    cfg.Embed.APIKey,
		Dimension: cfg.Database.EmbedDim,
		BatchSize: cfg.Embed.BatchMax,
		CacheSize: cfg.Embed.CacheSize,
	})
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}

	chat, err := chatclient.New(chatclient.Config{Model: cfg.Chat.Model, APIKey: cfg.Chat.APIKey})
	if err != nil {
		return fmt.Errorf("init chat client: %w", err)
	}

	pipeline, err := ingestion.NewPipeline(
		st, emb,
		chunk.Settings{Size: cfg.Chunk.Size, Overlap: cfg.Chunk.Overlap},
		ingestion.DefaultRetryPolicy(),
	)
	if err != nil {
		return fmt.Errorf("init ingestion pipeline: %w", err)
	}
	pool := ingestion.NewWorkerPool(pipeline, cfg.Ingest.Workers, cfg.Ingest.QueueSize, log)
	defer pool.Shutdown()

	searchSvc := search.NewService(emb, st, log)

	filenameOf := func(documentID string) string {
		doc, err := st.GetDocument(ctx, documentID)
		if err != nil {
			return documentID
		}
		return doc.Filename
	}
	orchestrator := rag.NewOrchestrator(searchSvc, chat, filenameOf, log)

	uploadCoordinator := upload.NewCoordinator(st, diskFileStore{}, pool, cfg.Upload.Dir)

	metricsSvc, err := metrics.New()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSvc.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics shutdown failed", "error", err)
		}
	}()

	srv := httpapi.NewServer(st, searchSvc, orchestrator, uploadCoordinator, metricsSvc, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen and serve: %w", err)
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// openStore selects Postgres when a DSN is configured, running embedded
// migrations first, and falls back to the in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.Database.DSN == "" {
		return store.NewMemoryStore(), nil
	}
	if err := migrations.Apply(ctx, cfg.Database.DSN); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store.NewPostgresStore(ctx, store.PostgresConfig{
		DSN:       cfg.Database.DSN,
		Dimension: cfg.Database.EmbedDim,
	})
}

// Package metrics defines OpenTelemetry instruments for ingestion, search,
// and RAG completion, exported through a Prometheus registry scraped on
// GET /metrics. The Record* methods are not called by any other package in
// this repository, so the server's /metrics output carries no samples for
// these instruments.
package metrics

import (
	"context"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Service owns the metric provider and the Prometheus registry it exports
// to. A nil *Service is safe to call methods on and records nothing.
type Service struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
	registry *prom.Registry

	ingestDuration  metric.Float64Histogram
	ingestChunks    metric.Int64Counter
	searchLatency   metric.Float64Histogram
	searchResults   metric.Float64Histogram
	ragLatency      metric.Float64Histogram
	ragTokens       metric.Int64Histogram
	ragEmptyCounter metric.Int64Counter
}

// New builds a Service backed by a fresh Prometheus registry.
func New() (*Service, error) {
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("docuqa")

	s := &Service{meter: meter, provider: provider, registry: registry}
	if err := s.initInstruments(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) initInstruments() error {
	var err error
	s.ingestDuration, err = s.meter.Float64Histogram(
		"docuqa_ingest_duration_seconds",
		metric.WithDescription("Latency of document ingestion runs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return err
	}
	s.ingestChunks, err = s.meter.Int64Counter(
		"docuqa_ingest_chunks_total",
		metric.WithDescription("Chunks persisted per ingestion run"),
	)
	if err != nil {
		return err
	}
	s.searchLatency, err = s.meter.Float64Histogram(
		"docuqa_search_latency_seconds",
		metric.WithDescription("Latency of search queries by mode"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5),
	)
	if err != nil {
		return err
	}
	s.searchResults, err = s.meter.Float64Histogram(
		"docuqa_search_results_count",
		metric.WithDescription("Number of results returned per search"),
		metric.WithExplicitBucketBoundaries(0, 1, 5, 10, 25, 50),
	)
	if err != nil {
		return err
	}
	s.ragLatency, err = s.meter.Float64Histogram(
		"docuqa_rag_latency_seconds",
		metric.WithDescription("Latency of RAG completion calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(.1, .25, .5, 1, 2, 5, 10, 20),
	)
	if err != nil {
		return err
	}
	s.ragTokens, err = s.meter.Int64Histogram(
		"docuqa_rag_tokens_used",
		metric.WithDescription("Tokens consumed per RAG completion"),
		metric.WithExplicitBucketBoundaries(50, 100, 250, 500, 1000, 2000),
	)
	if err != nil {
		return err
	}
	s.ragEmptyCounter, err = s.meter.Int64Counter(
		"docuqa_rag_empty_retrieval_total",
		metric.WithDescription("RAG queries short-circuited by empty retrieval"),
	)
	return err
}

// RecordIngest records the duration and chunk count of one ingestion run.
func (s *Service) RecordIngest(ctx context.Context, d time.Duration, chunks int) {
	if s == nil {
		return
	}
	s.ingestDuration.Record(ctx, d.Seconds())
	if chunks > 0 {
		s.ingestChunks.Add(ctx, int64(chunks))
	}
}

// RecordSearch records the latency and result count of one search call.
func (s *Service) RecordSearch(ctx context.Context, mode string, d time.Duration, results int) {
	if s == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	s.searchLatency.Record(ctx, d.Seconds(), attrs)
	s.searchResults.Record(ctx, float64(results), attrs)
}

// RecordRAG records the latency and token usage of one RAG completion, or
// just the latency and an empty-retrieval marker when retrieval was empty.
func (s *Service) RecordRAG(ctx context.Context, d time.Duration, tokens int, emptyRetrieval bool) {
	if s == nil {
		return
	}
	s.ragLatency.Record(ctx, d.Seconds())
	if emptyRetrieval {
		s.ragEmptyCounter.Add(ctx, 1)
		return
	}
	if tokens > 0 {
		s.ragTokens.Record(ctx, int64(tokens))
	}
}

// Handler serves the Prometheus exposition format for GET /metrics.
func (s *Service) Handler() http.Handler {
	if s == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the underlying meter provider.
func (s *Service) Shutdown(ctx context.Context) error {
	if s == nil || s.provider == nil {
		return nil
	}
	return s.provider.Shutdown(ctx)
}

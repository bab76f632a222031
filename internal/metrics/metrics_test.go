package metrics

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIngestAndScrape(t *testing.T) {
	svc, err := New()
	require.NoError(t, err)

	svc.RecordIngest(context.Background(), 2*time.Second, 3)
	svc.RecordSearch(context.Background(), "hybrid", 10*time.Millisecond, 5)
	svc.RecordRAG(context.Background(), 500*time.Millisecond, 120, false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	svc.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "docuqa_ingest_chunks_total")
	assert.Contains(t, rec.Body.String(), "docuqa_search_latency_seconds")
	assert.Contains(t, rec.Body.String(), "docuqa_rag_tokens_used")
}

func TestNilServiceRecordsNothing(t *testing.T) {
	var svc *Service
	assert.NotPanics(t, func() {
		svc.RecordIngest(context.Background(), time.Second, 1)
		svc.RecordSearch(context.Background(), "semantic", time.Millisecond, 1)
		svc.RecordRAG(context.Background(), time.Second, 10, true)
		_ = svc.Shutdown(context.Background())
	})
}

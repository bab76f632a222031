package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragdocs/docuqa/internal/chatclient"
	"github.com/ragdocs/docuqa/internal/logger"
	"github.com/ragdocs/docuqa/internal/metrics"
	"github.com/ragdocs/docuqa/internal/rag"
	"github.com/ragdocs/docuqa/internal/search"
	"github.com/ragdocs/docuqa/internal/store"
	"github.com/ragdocs/docuqa/internal/upload"
)

type noopFileStore struct{}

func (noopFileStore) Save(context.Context, string, []byte) error { return nil }

type noopScheduler struct{}

func (noopScheduler) Enqueue(context.Context, string, []byte) bool { return true }

type emptySearcher struct{}

func (emptySearcher) Hybrid(context.Context, string, int, search.Filter, search.HybridWeights) ([]search.Result, error) {
	return nil, nil
}

type noopCompleter struct{}

func (noopCompleter) Complete(context.Context, []chatclient.Message, float64, int) (chatclient.Completion, error) {
	return chatclient.Completion{}, nil
}

func newTestServer() (*Server, store.Store) {
	st := store.NewMemoryStore()
	metricsSvc, _ := metrics.New()
	searchSvc := search.NewService(nil, st, nil)
	orchestrator := rag.NewOrchestrator(emptySearcher{}, noopCompleter{}, nil, nil)
	uploadCoordinator := upload.NewCoordinator(st, noopFileStore{}, noopScheduler{}, "/tmp/uploads")
	return NewServer(st, searchSvc, orchestrator, uploadCoordinator, metricsSvc, logger.New(logger.DefaultConfig())), st
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHealthzReturnsOK(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadThenGetDocument(t *testing.T) {
	s, _ := newTestServer()
	body, contentType := multipartUpload(t, "notes.txt", []byte("hello world"))

	req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var uploadResp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploadResp))
	docID, _ := uploadResp["document_id"].(string)
	require.NotEmpty(t, docID)

	getReq := httptest.NewRequest(http.MethodGet, "/documents/"+docID, nil)
	getRec := httptest.NewRecorder()
	s.Router().ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)
}

func TestGetUnknownDocumentReturns404(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/documents/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchSemanticRejectsEmptyQuery(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/search/semantic", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRAGChatShortCircuitsOnEmptyRetrieval(t *testing.T) {
	s, _ := newTestServer()
	payload := bytes.NewBufferString(`{"query":"what is it"}`)
	req := httptest.NewRequest(http.MethodPost, "/rag/chat", payload)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(0), resp["context_used"])
}

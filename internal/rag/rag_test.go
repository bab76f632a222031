package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragdocs/docuqa/internal/chatclient"
	"github.com/ragdocs/docuqa/internal/search"
	"github.com/ragdocs/docuqa/internal/store"
)

type fakeSearcher struct {
	results []search.Result
	err     error
}

func (f *fakeSearcher) Hybrid(_ context.Context, _ string, _ int, _ search.Filter, _ search.HybridWeights) ([]search.Result, error) {
	return f.results, f.err
}

type fakeCompleter struct {
	completion chatclient.Completion
	err        error
}

func (f *fakeCompleter) Complete(_ context.Context, _ []chatclient.Message, _ float64, _ int) (chatclient.Completion, error) {
	return f.completion, f.err
}

func TestEvaluateQualityScoresComponents(t *testing.T) {
	sources := []Source{
		{RelevanceScore: 0.9}, {RelevanceScore: 0.8}, {RelevanceScore: 0.7},
	}
	score := EvaluateQuality("According to Source 1, the answer is 42.", sources)
	assert.InDelta(t, 1.0, score, 0.001)
}

func TestEvaluateQualityZeroWithNoSources(t *testing.T) {
	score := EvaluateQuality("I don't know.", nil)
	assert.Equal(t, 0.0, score)
}

func TestAssembleContextStopsAtMaxChars(t *testing.T) {
	longText := strings.Repeat("x", MaxContextChars)
	r1 := resultFor("doc-1", 0, longText)
	r2 := resultFor("doc-1", 1, "short tail that should not fit")
	ctxText, included := assembleContext([]search.Result{r1, r2}, nil)
	assert.Equal(t, 1, included)
	assert.LessOrEqual(t, len(ctxText), MaxContextChars+100)
}

func TestExtractSourcesCapsAtMaxSources(t *testing.T) {
	var results []search.Result
	for i := 0; i < MaxSources+5; i++ {
		results = append(results, resultFor("doc-1", i, "text"))
	}
	sources := extractSources(results, nil)
	assert.Len(t, sources, MaxSources)
}

func TestExtractSourcesTruncatesPreview(t *testing.T) {
	results := []search.Result{resultFor("doc-1", 0, strings.Repeat("a", 500))}
	sources := extractSources(results, nil)
	require.Len(t, sources, 1)
	assert.Len(t, sources[0].TextPreview, 203)
}

func resultFor(docID string, idx int, text string) search.Result {
	return search.Result{Chunk: store.Chunk{DocumentID: docID, ChunkIndex: idx, Text: text}}
}

func TestAnswerShortCircuitsOnEmptyRetrieval(t *testing.T) {
	orch := NewOrchestrator(&fakeSearcher{results: nil}, &fakeCompleter{}, nil, nil)
	resp, err := orch.Answer(context.Background(), "what is it", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, noDocumentsAnswer, resp.Answer)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, "N/A", resp.Model)
	assert.Equal(t, 0, resp.ContextUsed)
}

func TestAnswerAssemblesContextAndCites(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{
		resultFor("doc-1", 0, "Paris is the capital of France."),
	}}
	completer := &fakeCompleter{completion: chatclient.Completion{
		Text: "According to Source 1, Paris is the capital of France.", TokensUsed: 12, ModelTag: "test-model",
	}}
	orch := NewOrchestrator(searcher, completer, func(id string) string { return "geography.txt" }, nil)

	resp, err := orch.Answer(context.Background(), "what is the capital of France", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ContextUsed)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "geography.txt", resp.Sources[0].DocumentFilename)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, 12, resp.TokensUsed)
}

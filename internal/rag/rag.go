// Package rag turns a query plus optional prior turns into a grounded
// answer with citations, by retrieving chunks, assembling bounded context,
// and invoking a chat completion under a strict anti-hallucination prompt.
package rag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ragdocs/docuqa/internal/chatclient"
	"github.com/ragdocs/docuqa/internal/search"
)

const (
	// MaxContextChars bounds the total size of assembled context passed to
	// the chat completion.
	MaxContextChars = 6000
	// MaxSources bounds how many retrieved chunks are surfaced as citations.
	MaxSources = 10
	// DefaultTopK is the number of chunks retrieved per query absent an
	// explicit override.
	DefaultTopK = 8

	noDocumentsAnswer = "I don't have any documents to answer your question. Please upload some first."
)

const systemPromptTemplate = `You are a helpful AI assistant that answers questions based STRICTLY on provided document context.

CRITICAL RULES - DO NOT VIOLATE:
1. Answer ONLY using information from the CONTEXT below - do not use your general knowledge.
2. If the CONTEXT doesn't contain the answer, respond: "I don't have enough information in the available documents to answer that question."
3. Always cite your sources using the format "Source N" when referring to retrieved material.
4. If asked to summarize multiple documents, identify each source separately.
5. Do not fabricate document names, content, or information that isn't in the CONTEXT.
6. If the CONTEXT is empty or insufficient, say so - never fabricate an answer.

CONTEXT FROM UPLOADED DOCUMENTS:
%s

Remember: if it's not in the CONTEXT above, you cannot answer it. Be honest about limitations.`

// Turn is one prior conversation message, passed through unchanged; this
// orchestrator never summarizes or truncates history, that policy belongs
// to the caller.
type Turn struct {
	Role    chatclient.Role
	Content string
}

// Source is one citation surfaced alongside the answer.
type Source struct {
	Index            int
	DocumentID       string
	DocumentFilename string
	ChunkIndex       int
	RelevanceScore   float64
	TextPreview      string
}

// Response is the result of a single grounded chat call.
type Response struct {
	Answer      string
	Sources     []Source
	ContextUsed int
	Model       string
	TokensUsed  int
}

// FilenameLookup resolves a document ID to its display filename for the
// `[Source i: <filename>]` context header.
type FilenameLookup func(documentID string) string

// Searcher is the subset of internal/search.Service the orchestrator needs.
type Searcher interface {
	Hybrid(ctx context.Context, q string, k int, filter search.Filter, weights search.HybridWeights) ([]search.Result, error)
}

// Completer is the subset of internal/chatclient.Client the orchestrator
// needs.
type Completer interface {
	Complete(ctx context.Context, messages []chatclient.Message, temperature float64, maxTokens int) (chatclient.Completion, error)
}

// Orchestrator retrieves, assembles context, and invokes the chat provider.
type Orchestrator struct {
	search     Searcher
	chat       Completer
	filenameOf FilenameLookup
	log        *log.Logger
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(searchSvc Searcher, chat Completer, filenameOf FilenameLookup, logger *log.Logger) *Orchestrator {
	return &Orchestrator{search: searchSvc, chat: chat, filenameOf: filenameOf, log: logger}
}

// Options configures a single Answer call.
type Options struct {
	TopK                int
	DocumentID          string
	ConversationHistory []Turn
	Temperature         float64
	MaxTokens           int
}

// DefaultOptions returns spec defaults: top_k=8, temperature=0.7, max_tokens=500.
func DefaultOptions() Options {
	return Options{TopK: DefaultTopK, Temperature: 0.7, MaxTokens: 500}
}

// Answer retrieves context for query, assembles a grounded prompt, and
// returns the completion with citations. An empty retrieval short-circuits
// before any completion call.
func (o *Orchestrator) Answer(ctx context.Context, query string, opts Options) (Response, error) {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	results, err := o.search.Hybrid(ctx, query, opts.TopK, search.Filter{DocumentID: opts.DocumentID}, search.DefaultHybridWeights())
	if err != nil {
		return Response{}, err
	}
	if len(results) == 0 {
		if o.log != nil {
			o.log.Warn("no documents found for rag query", "query_length", len(query))
		}
		return Response{Answer: noDocumentsAnswer, Sources: nil, ContextUsed: 0, Model: "N/A", TokensUsed: 0}, nil
	}

	contextText, included := assembleContext(results, o.filenameOf)
	systemPrompt := fmt.Sprintf(systemPromptTemplate, contextText)

	messages := make([]chatclient.Message, 0, len(opts.ConversationHistory)+2)
	messages = append(messages, chatclient.Message{Role: chatclient.RoleSystem, Content: systemPrompt})
	for _, turn := range opts.ConversationHistory {
		messages = append(messages, chatclient.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, chatclient.Message{Role: chatclient.RoleUser, Content: query})

	completion, err := o.chat.Complete(ctx, messages, opts.Temperature, opts.MaxTokens)
	if err != nil {
		return Response{}, err
	}

	sources := extractSources(results[:included], o.filenameOf)
	return Response{
		Answer:      completion.Text,
		Sources:     sources,
		ContextUsed: included,
		Model:       completion.ModelTag,
		TokensUsed:  completion.TokensUsed,
	}, nil
}

// assembleContext walks results in rank order, formatting each as
// "[Source i: <filename>]\n<text>\n", stopping before a chunk would push
// the assembled text past MaxContextChars. It returns the joined context
// and the count of chunks actually included.
func assembleContext(results []search.Result, filenameOf FilenameLookup) (string, int) {
	var sb strings.Builder
	included := 0
	for i, r := range results {
		name := "Unknown"
		if filenameOf != nil {
			if n := filenameOf(r.Chunk.DocumentID); n != "" {
				name = n
			}
		}
		block := fmt.Sprintf("[Source %d: %s]\n%s\n", i+1, name, r.Chunk.Text)
		candidate := block
		if sb.Len() > 0 {
			candidate = "\n" + block
		}
		if sb.Len()+len(candidate) > MaxContextChars {
			break
		}
		sb.WriteString(candidate)
		included++
	}
	return sb.String(), included
}

func extractSources(results []search.Result, filenameOf FilenameLookup) []Source {
	sources := make([]Source, 0, len(results))
	for i, r := range results {
		if i >= MaxSources {
			break
		}
		name := "Unknown"
		if filenameOf != nil {
			if n := filenameOf(r.Chunk.DocumentID); n != "" {
				name = n
			}
		}
		preview := r.Chunk.Text
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		relevance := r.Combined
		if relevance == 0 {
			relevance = r.Similarity
		}
		sources = append(sources, Source{
			Index:            i + 1,
			DocumentID:       r.Chunk.DocumentID,
			DocumentFilename: name,
			ChunkIndex:       r.Chunk.ChunkIndex,
			RelevanceScore:   relevance,
			TextPreview:      preview,
		})
	}
	return sources
}

// EvaluateQuality is a diagnostic-only heuristic (it never gates or alters
// the returned answer): 0.3 for having any sources, 0.2 for having at least
// three, 0.3 for average relevance above 0.5, 0.2 for an explicit "Source N"
// citation in the answer text.
func EvaluateQuality(answer string, sources []Source) float64 {
	var score float64
	if len(sources) > 0 {
		score += 0.3
	}
	if len(sources) >= 3 {
		score += 0.2
	}
	if averageRelevance(sources) > 0.5 {
		score += 0.3
	}
	if containsSourceReference(answer) {
		score += 0.2
	}
	return score
}

func averageRelevance(sources []Source) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sources {
		sum += s.RelevanceScore
	}
	return sum / float64(len(sources))
}

var sourceReferencePattern = regexp.MustCompile(`(?i)\bsource \d+`)

func containsSourceReference(answer string) bool {
	return sourceReferencePattern.MatchString(answer)
}

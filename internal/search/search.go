// Package search ranks chunks for a query under semantic, lexical, and
// hybrid modes, and assembles windowed context around a ranked chunk.
package search

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ragdocs/docuqa/internal/apperr"
	"github.com/ragdocs/docuqa/internal/store"
)

// Embedder is the subset of internal/embedder.Client the search service
// needs.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Result is one ranked chunk, carrying whichever component scores
// contributed to it. Missing components are left at zero.
type Result struct {
	Chunk      store.Chunk
	Similarity float64
	Lexical    float64
	Combined   float64
}

// Filter narrows a search to one document, or matches every document when
// empty.
type Filter struct {
	DocumentID string
}

// HybridWeights controls the semantic/lexical fusion in Hybrid. Defaults to
// 0.7/0.3, matching spec's wS/wK defaults.
type HybridWeights struct {
	Semantic float64
	Lexical  float64
}

// DefaultHybridWeights returns the default semantic/lexical fusion weights.
func DefaultHybridWeights() HybridWeights {
	return HybridWeights{Semantic: 0.7, Lexical: 0.3}
}

const candidateMultiplier = 4
const maxCandidates = 40

// Service ranks chunks for a query.
type Service struct {
	embedder Embedder
	store    store.Store
	log      *log.Logger
}

// NewService builds a Service.
func NewService(emb Embedder, st store.Store, logger *log.Logger) *Service {
	return &Service{embedder: emb, store: st, log: logger}
}

// Semantic embeds q and ranks chunks by cosine similarity.
func (s *Service) Semantic(ctx context.Context, q string, k int, filter Filter, minSim float64) ([]Result, error) {
	start := time.Now()
	vector, err := s.embedder.EmbedOne(ctx, q)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.SearchVector(ctx, vector, k, filter.DocumentID, minSim)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{Chunk: m.Chunk, Similarity: m.Similarity, Combined: m.Similarity}
	}
	s.logQuery("semantic", q, len(results), time.Since(start))
	return results, nil
}

// Lexical ranks chunks by case-insensitive substring occurrence frequency,
// scored min(1.0, 0.2*count).
func (s *Service) Lexical(ctx context.Context, q string, k int, filter Filter) ([]Result, error) {
	start := time.Now()
	matches, err := s.store.SearchSubstring(ctx, q, k, filter.DocumentID)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(matches))
	for i, m := range matches {
		score := lexicalScore(m.OccurrenceCount)
		results[i] = Result{Chunk: m.Chunk, Lexical: score, Combined: score}
	}
	s.logQuery("lexical", q, len(results), time.Since(start))
	return results, nil
}

func lexicalScore(count int) float64 {
	score := 0.2 * float64(count)
	if score > 1.0 {
		return 1.0
	}
	return score
}

// Hybrid runs semantic and lexical search over an expanded candidate set,
// fuses scores as wS*similarity + wK*lexical (missing components treated
// as 0), and returns the top k with deterministic tie-breaking.
func (s *Service) Hybrid(ctx context.Context, q string, k int, filter Filter, weights HybridWeights) ([]Result, error) {
	if weights.Semantic < 0 || weights.Lexical < 0 || weights.Semantic+weights.Lexical <= 0 {
		return nil, apperr.Validation("hybrid search weights must be non-negative and sum to more than zero")
	}
	start := time.Now()
	candidateK := k * candidateMultiplier
	if candidateK > maxCandidates {
		candidateK = maxCandidates
	}
	if candidateK < k {
		candidateK = k
	}

	vector, err := s.embedder.EmbedOne(ctx, q)
	if err != nil {
		return nil, err
	}
	semanticMatches, err := s.store.SearchVector(ctx, vector, candidateK, filter.DocumentID, 0)
	if err != nil {
		return nil, err
	}
	lexicalMatches, err := s.store.SearchSubstring(ctx, q, candidateK, filter.DocumentID)
	if err != nil {
		return nil, err
	}

	combined := make(map[string]*Result)
	order := make([]string, 0, len(semanticMatches)+len(lexicalMatches))
	for _, m := range semanticMatches {
		key := chunkKey(m.Chunk)
		combined[key] = &Result{Chunk: m.Chunk, Similarity: m.Similarity}
		order = append(order, key)
	}
	for _, m := range lexicalMatches {
		key := chunkKey(m.Chunk)
		score := lexicalScore(m.OccurrenceCount)
		if existing, ok := combined[key]; ok {
			existing.Lexical = score
		} else {
			combined[key] = &Result{Chunk: m.Chunk, Lexical: score}
			order = append(order, key)
		}
	}

	results := make([]Result, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, key := range order {
		if seen[key] {
			continue
		}
		seen[key] = true
		r := combined[key]
		r.Combined = weights.Semantic*r.Similarity + weights.Lexical*r.Lexical
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Combined != results[j].Combined {
			return results[i].Combined > results[j].Combined
		}
		return lessChunkOrder(results[i].Chunk, results[j].Chunk)
	})
	if len(results) > k {
		results = results[:k]
	}
	s.logQuery("hybrid", q, len(results), time.Since(start))
	return results, nil
}

// WithContext fetches the immediate predecessor and successor chunk (by
// chunk_index, within the same document) for every result, for
// presentation only; it does not affect ranking.
func (s *Service) WithContext(ctx context.Context, results []Result) ([]ContextResult, error) {
	out := make([]ContextResult, len(results))
	documentChunks := make(map[string][]store.Chunk)
	for i, r := range results {
		chunks, ok := documentChunks[r.Chunk.DocumentID]
		if !ok {
			var err error
			chunks, err = s.store.GetChunksByDocument(ctx, r.Chunk.DocumentID)
			if err != nil {
				return nil, err
			}
			documentChunks[r.Chunk.DocumentID] = chunks
		}
		prev, next := neighbors(chunks, r.Chunk.ChunkIndex)
		out[i] = ContextResult{Result: r, Previous: prev, Next: next}
	}
	return out, nil
}

// ContextResult is a ranked Result plus its optional neighboring chunks.
type ContextResult struct {
	Result
	Previous *store.Chunk
	Next     *store.Chunk
}

func neighbors(chunks []store.Chunk, index int) (prev, next *store.Chunk) {
	for i, c := range chunks {
		if c.ChunkIndex == index-1 {
			cp := chunks[i]
			prev = &cp
		}
		if c.ChunkIndex == index+1 {
			cp := chunks[i]
			next = &cp
		}
	}
	return prev, next
}

func chunkKey(c store.Chunk) string {
	return c.DocumentID + ":" + c.ID
}

func lessChunkOrder(a, b store.Chunk) bool {
	if a.DocumentID != b.DocumentID {
		return a.DocumentID < b.DocumentID
	}
	return a.ChunkIndex < b.ChunkIndex
}

func (s *Service) logQuery(mode, query string, results int, elapsed time.Duration) {
	if s.log == nil {
		return
	}
	s.log.Debug("search executed", "mode", mode, "query_length", len(query), "results", results, "duration", elapsed)
}

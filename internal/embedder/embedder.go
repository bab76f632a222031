// Package embedder wraps an external embedding provider behind a small,
// batching-aware interface, with an optional read-through cache.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/ragdocs/docuqa/internal/apperr"
)

// MaxBatch is the provider batch-size ceiling enforced by EmbedMany,
// independent of any caller-configured batch size.
const MaxBatch = 100

// Provider names a supported embedding backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderLocal  Provider = "local"
)

// Config configures a Client.
type Config struct {
	Provider  Provider
	Model     string
	APIKey    string
	Dimension int
	BatchSize int
	CacheSize int // 0 disables the cache
}

// Client produces fixed-dimension embeddings for single strings or batches.
type Client struct {
	provider  Provider
	model     string
	dimension int
	batchSize int
	impl      embeddings.Embedder

	cacheMu sync.Mutex
	cache   *lru.Cache[string, []float32]
}

// New builds a provider-backed Client.
func New(cfg Config) (*Client, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > MaxBatch {
		batchSize = MaxBatch
	}
	impl, err := buildProviderEmbedder(cfg, embeddings.WithBatchSize(batchSize), embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}
	c := &Client{
		provider:  cfg.Provider,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: batchSize,
		impl:      impl,
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("embedder: init cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(string(cfg.Provider)) == "" {
		return errors.New("embedder: provider is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return errors.New("embedder: model is required")
	}
	if cfg.Dimension <= 0 {
		return errors.New("embedder: dimension must be greater than zero")
	}
	return nil
}

// Dimension returns the configured vector dimension.
func (c *Client) Dimension() int { return c.dimension }

// EmbedOne embeds a single string.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if cache := c.getCache(); cache != nil {
		if v, ok := c.lookupCache(cache, text); ok {
			return v, nil
		}
	}
	vector, err := c.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, apperr.Provider("embed query", err)
	}
	c.storeCache(text, vector)
	return cloneVector(vector), nil
}

// EmbedMany embeds texts in provider batches of at most MaxBatch, in order.
// A failure on any batch fails the whole call with no partial result.
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	pending := make([]int, 0, len(texts))
	cache := c.getCache()
	for i, t := range texts {
		if cache != nil {
			if v, ok := c.lookupCache(cache, t); ok {
				results[i] = v
				continue
			}
		}
		pending = append(pending, i)
	}
	for start := 0; start < len(pending); start += MaxBatch {
		end := start + MaxBatch
		if end > len(pending) {
			end = len(pending)
		}
		batchIdx := pending[start:end]
		batchTexts := make([]string, len(batchIdx))
		for i, idx := range batchIdx {
			batchTexts[i] = texts[idx]
		}
		vectors, err := c.impl.EmbedDocuments(ctx, batchTexts)
		if err != nil {
			return nil, apperr.Provider("embed documents batch", err)
		}
		if len(vectors) != len(batchTexts) {
			return nil, apperr.Provider(
				fmt.Sprintf("provider returned %d vectors for %d texts", len(vectors), len(batchTexts)), nil)
		}
		for i, idx := range batchIdx {
			results[idx] = cloneVector(vectors[i])
			c.storeCache(batchTexts[i], vectors[i])
		}
	}
	return results, nil
}

func (c *Client) getCache() *lru.Cache[string, []float32] {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	return c.cache
}

func (c *Client) lookupCache(cache *lru.Cache[string, []float32], text string) ([]float32, bool) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if c.cache != cache {
		return nil, false
	}
	v, ok := cache.Get(cacheKey(text))
	if !ok {
		return nil, false
	}
	return cloneVector(v), true
}

func (c *Client) storeCache(text string, vector []float32) {
	if len(vector) == 0 {
		return
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if c.cache != nil {
		c.cache.Add(cacheKey(text), cloneVector(vector))
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(src []float32) []float32 {
	if len(src) == 0 {
		return nil
	}
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}

func buildProviderEmbedder(cfg Config, opts ...embeddings.Option) (embeddings.Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		openaiOpts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
		if cfg.APIKey != "" {
			openaiOpts = append(openaiOpts, openai.WithToken(cfg.APIKey))
		}
		client, err := openai.New(openaiOpts...)
		if err != nil {
			return nil, fmt.Errorf("embedder: init openai client: %w", err)
		}
		return embeddings.NewEmbedder(client, opts...)
	case ProviderLocal:
		return embeddings.NewEmbedder(newLocalClient(cfg.Dimension), opts...)
	default:
		return nil, fmt.Errorf("embedder: provider %q is not supported", cfg.Provider)
	}
}

package embedder

import (
	"context"
	"crypto/sha256"
	"math"
)

// localClient is a dependency-free EmbedderClient used by Provider "local".
// It has no notion of semantics; it exists so this repository can run
// end-to-end (ingest, search, chat) without a live provider credential.
// Vectors are deterministic hashes of the input text projected onto the
// configured dimension and L2-normalized, so cosine similarity is stable
// across runs but carries no semantic meaning.
type localClient struct {
	dimension int
}

func newLocalClient(dimension int) *localClient {
	return &localClient{dimension: dimension}
}

// CreateEmbedding implements embeddings.EmbedderClient.
func (l *localClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, l.dimension)
	}
	return out, nil
}

func hashVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := sha256.Sum256([]byte(text))
	for i := 0; i < dim; i++ {
		b := seed[i%len(seed)]
		// spread the byte across [-1, 1] and vary by position so distinct
		// dimensions are not identical for short hash inputs.
		shifted := byte(int(b) + i*31)
		vec[i] = float32(shifted)/127.5 - 1
	}
	normalize(vec)
	return vec
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}

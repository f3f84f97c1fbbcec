// Package embeddings maps text to fixed-length vectors.
//
// Every Embedder returned by this package is safe for concurrent use: providers
// hold only read-only state after construction, and identical input yields
// identical output. Callers share one instance instead of loading a model per
// request.
package embeddings

import (
	"context"
	"fmt"
	"math"

	"github.com/fabfab/rag-explorer/config"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Provider  string
	Model     string
	Dimension int

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewEmbedder(cfg config.Config) (Embedder, error) {
	opts := Options{
		Provider:      cfg.Embeddings.Provider,
		Model:         cfg.Embeddings.Model,
		Dimension:     cfg.Embeddings.Dimension,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderHash, "":
		return NewHashEmbedder(opts.Dimension), nil
	case config.ProviderOllama:
		return NewOllamaEmbedder(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIEmbedder(opts), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", opts.Provider)
	}
}

// Dimension reports the vector length e produces. Embedders that only learn
// their length from the provider's response report fallback.
func Dimension(e Embedder, fallback int) int {
	if d, ok := e.(interface{ Dimension() int }); ok {
		return d.Dimension()
	}
	return fallback
}

const similarityEpsilon = 1e-8

// Similarity returns the cosine similarity of a and b in [-1, 1]. A small
// epsilon in the denominator keeps zero-norm vectors at 0 instead of NaN.
// Vectors of different length compare over their common prefix.
func Similarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	sim := dot / (math.Sqrt(normA)*math.Sqrt(normB) + similarityEpsilon)
	return math.Max(-1, math.Min(1, sim))
}

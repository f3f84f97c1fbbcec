// Package chunking splits raw text into ordered chunks using one of four
// competing strategies and reports comparable statistics for each.
package chunking

import (
	"context"
	"fmt"
	"log"
	"math"
	"unicode/utf8"

	"github.com/fabfab/rag-explorer/domain"
	"github.com/fabfab/rag-explorer/embeddings"
)

// CharsPerToken approximates how many characters make up one token.
const CharsPerToken = 4

const (
	DefaultChunkTokens         = 500
	DefaultMaxSentences        = 5
	DefaultSimilarityThreshold = 0.35
	DefaultMinChunkSentences   = 2
)

// Params tunes the strategies. Non-positive counts and a nil threshold fall
// back to the defaults; a threshold of 0 is a valid setting.
type Params struct {
	ChunkTokens         int
	MaxSentences        int
	SimilarityThreshold *float64
	MinChunkSentences   int
}

func DefaultParams() Params {
	return Params{
		ChunkTokens:         DefaultChunkTokens,
		MaxSentences:        DefaultMaxSentences,
		SimilarityThreshold: Threshold(DefaultSimilarityThreshold),
		MinChunkSentences:   DefaultMinChunkSentences,
	}
}

// Threshold returns a pointer to v for Params.SimilarityThreshold.
func Threshold(v float64) *float64 {
	return &v
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.ChunkTokens <= 0 {
		p.ChunkTokens = d.ChunkTokens
	}
	if p.MaxSentences <= 0 {
		p.MaxSentences = d.MaxSentences
	}
	if p.SimilarityThreshold == nil {
		p.SimilarityThreshold = d.SimilarityThreshold
	}
	if p.MinChunkSentences <= 0 {
		p.MinChunkSentences = d.MinChunkSentences
	}
	return p
}

// Summary holds the statistics used to compare strategies side by side.
type Summary struct {
	ChunkCount int     `json:"chunk_count"`
	AvgTokens  float64 `json:"avg_tokens"`
}

// Analysis is the outcome of one strategy over a document.
type Analysis struct {
	Strategy domain.Strategy `json:"strategy"`
	Meta     StrategyMeta    `json:"meta"`
	Summary
	Chunks []domain.Chunk `json:"chunks"`
}

// Segmenter runs the strategies. Only the semantic strategy uses the embedder.
type Segmenter struct {
	embedder embeddings.Embedder
	logger   *log.Logger
}

func NewSegmenter(embedder embeddings.Embedder, logger *log.Logger) *Segmenter {
	if logger == nil {
		logger = log.Default()
	}
	return &Segmenter{embedder: embedder, logger: logger}
}

// Segment splits text with the given strategy. The result is deterministic for
// fixed input, params and embedder.
func (s *Segmenter) Segment(ctx context.Context, text string, strategy domain.Strategy, params Params) ([]domain.Chunk, error) {
	params = params.withDefaults()

	switch strategy {
	case domain.StrategyFixedSize:
		return FixedSize(text, params.ChunkTokens), nil
	case domain.StrategySentenceBased:
		return SentenceBased(text, params.MaxSentences), nil
	case domain.StrategySemantic:
		if s.embedder == nil {
			return nil, fmt.Errorf("semantic chunking: embedder is not configured")
		}
		return Semantic(ctx, s.embedder, text, *params.SimilarityThreshold, params.MinChunkSentences)
	case domain.StrategyDocumentStructure:
		return DocumentStructure(text), nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q: %w", strategy, domain.ErrInvalidInput)
	}
}

// RunAll runs every strategy over the same text independently, in canonical
// order.
func (s *Segmenter) RunAll(ctx context.Context, text string, params Params) ([]Analysis, error) {
	results := make([]Analysis, 0, len(domain.Strategies))
	for _, strategy := range domain.Strategies {
		chunks, err := s.Segment(ctx, text, strategy, params)
		if err != nil {
			return nil, fmt.Errorf("run %s strategy: %w", strategy, err)
		}
		s.logger.Printf("chunking %s produced %d chunks", strategy, len(chunks))
		results = append(results, Analysis{
			Strategy: strategy,
			Meta:     MetaFor(strategy),
			Summary:  Summarize(chunks),
			Chunks:   chunks,
		})
	}
	return results, nil
}

// Summarize computes the chunk count and the mean token estimate rounded to one
// decimal.
func Summarize(chunks []domain.Chunk) Summary {
	if len(chunks) == 0 {
		return Summary{}
	}
	total := 0
	for _, c := range chunks {
		total += c.TokenEstimate
	}
	return Summary{
		ChunkCount: len(chunks),
		AvgTokens:  round(float64(total)/float64(len(chunks)), 1),
	}
}

// EstimateTokens applies the four-characters-per-token heuristic, never
// returning less than one.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text) / CharsPerToken
	if n < 1 {
		return 1
	}
	return n
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

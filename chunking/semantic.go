package chunking

import (
	"context"
	"fmt"

	"github.com/fabfab/rag-explorer/domain"
	"github.com/fabfab/rag-explorer/embeddings"
)

// Semantic embeds every sentence and opens a new chunk where the similarity of
// two adjacent sentences drops below threshold, provided the current chunk
// already holds minSentences sentences.
func Semantic(ctx context.Context, embedder embeddings.Embedder, text string, threshold float64, minSentences int) ([]domain.Chunk, error) {
	if minSentences < 1 {
		minSentences = 1
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return []domain.Chunk{}, nil
	}

	if len(sentences) <= minSentences {
		t := joinSentences(sentences)
		return []domain.Chunk{{
			ID:            0,
			Text:          t,
			TokenEstimate: EstimateTokens(t),
			StartOffset:   sentences[0].start,
			EndOffset:     sentences[len(sentences)-1].end,
			Strategy:      domain.StrategySemantic,
			Metadata: map[string]any{
				"sentence_count":       len(sentences),
				"avg_intra_similarity": 1.0,
				"similarity_threshold": threshold,
			},
		}}, nil
	}

	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.text
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed sentences: %w", err)
	}
	if len(vectors) != len(sentences) {
		return nil, fmt.Errorf("embed sentences: got %d vectors for %d sentences", len(vectors), len(sentences))
	}

	chunks := make([]domain.Chunk, 0, len(sentences)/minSentences+1)
	flush := func(group []sentence, sims []float64) {
		avg := 1.0
		if len(sims) > 0 {
			total := 0.0
			for _, s := range sims {
				total += s
			}
			avg = round(total/float64(len(sims)), 3)
		}
		t := joinSentences(group)
		chunks = append(chunks, domain.Chunk{
			ID:            len(chunks),
			Text:          t,
			TokenEstimate: EstimateTokens(t),
			StartOffset:   group[0].start,
			EndOffset:     group[len(group)-1].end,
			Strategy:      domain.StrategySemantic,
			Metadata: map[string]any{
				"sentence_count":       len(group),
				"avg_intra_similarity": avg,
				"similarity_threshold": threshold,
			},
		})
	}

	groupStart := 0
	var sims []float64
	for i := 1; i < len(sentences); i++ {
		sim := embeddings.Similarity(vectors[i-1], vectors[i])
		if sim < threshold && i-groupStart >= minSentences {
			flush(sentences[groupStart:i], sims)
			groupStart = i
			sims = nil
			continue
		}
		sims = append(sims, sim)
	}
	flush(sentences[groupStart:], sims)
	return chunks, nil
}

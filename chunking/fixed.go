package chunking

import "github.com/fabfab/rag-explorer/domain"

// FixedSize partitions text into contiguous windows of chunkTokens*4 runes.
// Windows ignore word and sentence boundaries and do not overlap; the last one
// may be shorter.
func FixedSize(text string, chunkTokens int) []domain.Chunk {
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}
	runes := []rune(text)
	window := chunkTokens * CharsPerToken

	chunks := make([]domain.Chunk, 0, (len(runes)+window-1)/window)
	for start := 0; start < len(runes); start += window {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}
		t := string(runes[start:end])
		chunks = append(chunks, domain.Chunk{
			ID:            len(chunks),
			Text:          t,
			TokenEstimate: EstimateTokens(t),
			StartOffset:   start,
			EndOffset:     end,
			Strategy:      domain.StrategyFixedSize,
			Metadata:      map[string]any{"chunk_size_target": chunkTokens},
		})
	}
	return chunks
}

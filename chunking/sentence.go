package chunking

import (
	"strings"
	"unicode"

	"github.com/fabfab/rag-explorer/domain"
)

type sentence struct {
	text       string
	start, end int
}

// splitSentences breaks text after every '.', '!' or '?' that is followed by
// whitespace. Offsets are rune positions of the trimmed sentence in text.
func splitSentences(text string) []sentence {
	runes := []rune(text)
	n := len(runes)

	var out []sentence
	emit := func(start, end int) {
		for end > start && unicode.IsSpace(runes[end-1]) {
			end--
		}
		if end > start {
			out = append(out, sentence{text: string(runes[start:end]), start: start, end: end})
		}
	}

	i := 0
	for i < n && unicode.IsSpace(runes[i]) {
		i++
	}
	start := i
	for ; i < n; i++ {
		switch runes[i] {
		case '.', '!', '?':
		default:
			continue
		}
		if i+1 >= n || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		emit(start, i+1)
		i++
		for i < n && unicode.IsSpace(runes[i]) {
			i++
		}
		start = i
		i--
	}
	if start < n {
		emit(start, n)
	}
	return out
}

func joinSentences(group []sentence) string {
	parts := make([]string, len(group))
	for i, s := range group {
		parts[i] = s.text
	}
	return strings.Join(parts, " ")
}

// SentenceBased groups maxSentences consecutive sentences per chunk, joined by
// a single space. Offsets span from the first sentence's start to the last
// sentence's end.
func SentenceBased(text string, maxSentences int) []domain.Chunk {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	sentences := splitSentences(text)

	chunks := make([]domain.Chunk, 0, (len(sentences)+maxSentences-1)/maxSentences)
	for i := 0; i < len(sentences); i += maxSentences {
		end := i + maxSentences
		if end > len(sentences) {
			end = len(sentences)
		}
		group := sentences[i:end]
		t := joinSentences(group)
		chunks = append(chunks, domain.Chunk{
			ID:            len(chunks),
			Text:          t,
			TokenEstimate: EstimateTokens(t),
			StartOffset:   group[0].start,
			EndOffset:     group[len(group)-1].end,
			Strategy:      domain.StrategySentenceBased,
			Metadata:      map[string]any{"sentence_count": len(group)},
		})
	}
	return chunks
}

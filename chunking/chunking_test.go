package chunking

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/rag-explorer/domain"
	"github.com/fabfab/rag-explorer/embeddings"
)

const petsAndMarkets = "Cats are mammals. Dogs are mammals too. The stock market fell sharply today."

// topicEmbedder puts sentences starting with 'A' on one axis and everything
// else on the other.
type topicEmbedder struct {
	calls int
}

var _ embeddings.Embedder = (*topicEmbedder)(nil)

func (e *topicEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.HasPrefix(t, "A") {
			out[i] = []float32{1, 0}
		} else {
			out[i] = []float32{0, 1}
		}
	}
	return out, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedder must not be called")
}

func nonSpaceRunes(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func TestFixedSizeWindowCount(t *testing.T) {
	text := strings.Repeat("abcdefghij", 450) // 4500 runes

	chunks := FixedSize(text, 500)
	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 2000, chunks[0].EndOffset)
	assert.Equal(t, 2000, chunks[1].StartOffset)
	assert.Equal(t, 4500, chunks[2].EndOffset)
	assert.Len(t, chunks[2].Text, 500)
	assert.Equal(t, 500, chunks[0].TokenEstimate)
	assert.Equal(t, 500, chunks[0].Metadata["chunk_size_target"])

	for i, c := range chunks {
		assert.Equal(t, i, c.ID)
		assert.Equal(t, domain.StrategyFixedSize, c.Strategy)
	}
}

func TestFixedSizeCountsRunes(t *testing.T) {
	text := strings.Repeat("é", 10)
	chunks := FixedSize(text, 1)
	require.Len(t, chunks, 3)
	assert.Equal(t, "éééé", chunks[0].Text)
	assert.Equal(t, 8, chunks[2].StartOffset)
	assert.Equal(t, 10, chunks[2].EndOffset)
}

func TestFixedSizeEmpty(t *testing.T) {
	assert.Empty(t, FixedSize("", 500))
}

func TestSentenceBasedGroups(t *testing.T) {
	chunks := SentenceBased(petsAndMarkets, 2)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Cats are mammals. Dogs are mammals too.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 39, chunks[0].EndOffset)
	assert.Equal(t, 2, chunks[0].Metadata["sentence_count"])

	assert.Equal(t, "The stock market fell sharply today.", chunks[1].Text)
	assert.Equal(t, 40, chunks[1].StartOffset)
	assert.Equal(t, 76, chunks[1].EndOffset)
	assert.Equal(t, 1, chunks[1].Metadata["sentence_count"])
}

func TestSentenceBasedRepeatedSentencesKeepOffsets(t *testing.T) {
	text := "Yes. No. Yes."
	chunks := SentenceBased(text, 1)
	require.Len(t, chunks, 3)

	for _, c := range chunks {
		assert.Equal(t, c.Text, string([]rune(text)[c.StartOffset:c.EndOffset]))
	}
	assert.Equal(t, 9, chunks[2].StartOffset)
}

func TestSentenceBasedCollapsesWhitespace(t *testing.T) {
	chunks := SentenceBased("  One!\n\n  Two?   Three", 5)
	require.Len(t, chunks, 1)
	assert.Equal(t, "One! Two? Three", chunks[0].Text)
	assert.Equal(t, 2, chunks[0].StartOffset)
	assert.Equal(t, 22, chunks[0].EndOffset)
}

func TestSentenceSplitKeepsAbbreviationsWithoutSpace(t *testing.T) {
	sentences := splitSentences("Version 1.2 shipped. Done")
	require.Len(t, sentences, 2)
	assert.Equal(t, "Version 1.2 shipped.", sentences[0].text)
	assert.Equal(t, "Done", sentences[1].text)
}

func TestSemanticSplitsOnTopicChange(t *testing.T) {
	text := "Apples grow. Apples are red. Apples fall. Boats float. Boats sink."
	emb := &topicEmbedder{}

	chunks, err := Semantic(context.Background(), emb, text, 0.35, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, emb.calls)

	assert.Equal(t, "Apples grow. Apples are red. Apples fall.", chunks[0].Text)
	assert.Equal(t, 3, chunks[0].Metadata["sentence_count"])
	assert.Equal(t, 1.0, chunks[0].Metadata["avg_intra_similarity"])
	assert.Equal(t, "Boats float. Boats sink.", chunks[1].Text)
	assert.Equal(t, 0.35, chunks[1].Metadata["similarity_threshold"])
}

func TestSegmentKeepsZeroSimilarityThreshold(t *testing.T) {
	text := "Apples grow. Apples are red. Boats float. Boats sink."
	seg := NewSegmenter(&topicEmbedder{}, log.New(io.Discard, "", 0))

	chunks, err := seg.Segment(context.Background(), text, domain.StrategySemantic, Params{SimilarityThreshold: Threshold(0)})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0.0, chunks[0].Metadata["similarity_threshold"])

	chunks, err = seg.Segment(context.Background(), text, domain.StrategySemantic, Params{})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, DefaultSimilarityThreshold, chunks[0].Metadata["similarity_threshold"])
}

func TestSemanticHonoursMinimumSentences(t *testing.T) {
	text := "Apples. Boats. Apples. Boats."

	chunks, err := Semantic(context.Background(), &topicEmbedder{}, text, 0.35, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.Equal(t, 2, c.Metadata["sentence_count"])
		assert.Equal(t, 0.0, c.Metadata["avg_intra_similarity"])
	}
}

func TestSemanticShortDocumentSkipsEmbedder(t *testing.T) {
	chunks, err := Semantic(context.Background(), failingEmbedder{}, "Only one. And two.", 0.35, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Only one. And two.", chunks[0].Text)
}

func TestSemanticEmpty(t *testing.T) {
	chunks, err := Semantic(context.Background(), failingEmbedder{}, "   ", 0.35, 2)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSemanticPropagatesEmbedderError(t *testing.T) {
	_, err := Semantic(context.Background(), failingEmbedder{}, "One. Two. Three. Four.", 0.35, 2)
	assert.Error(t, err)
}

func TestDocumentStructureMarkdown(t *testing.T) {
	text := "Intro text.\n# Setup\nInstall it.\n# Usage\nRun it.\n"

	chunks := DocumentStructure(text)
	require.Len(t, chunks, 3)

	assert.Equal(t, "Introduction\nIntro text.", chunks[0].Text)
	assert.Equal(t, "Introduction", chunks[0].Metadata["heading"])
	assert.Equal(t, "# Setup\nInstall it.", chunks[1].Text)
	assert.Equal(t, 12, chunks[1].StartOffset)
	assert.Equal(t, 32, chunks[1].EndOffset)
	assert.Equal(t, "# Usage", chunks[2].Metadata["heading"])
	assert.Equal(t, 2, chunks[2].Metadata["section_index"])
	assert.Equal(t, len(text), chunks[2].EndOffset)
}

func TestDocumentStructureAllCapsHeadings(t *testing.T) {
	text := "OVERVIEW:\nSome text.\nDETAILS\nMore text."

	chunks := DocumentStructure(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, "OVERVIEW:", chunks[0].Metadata["heading"])
	assert.Equal(t, "OVERVIEW:\nSome text.", chunks[0].Text)
	assert.Equal(t, "DETAILS\nMore text.", chunks[1].Text)
}

func TestRunAllEmptyTextReportsEmptyChunkLists(t *testing.T) {
	seg := NewSegmenter(failingEmbedder{}, log.New(io.Discard, "", 0))

	results, err := seg.RunAll(context.Background(), "", DefaultParams())
	require.NoError(t, err)
	for _, r := range results {
		require.NotNil(t, r.Chunks, r.Strategy)
		data, err := json.Marshal(r)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"chunks":[]`, r.Strategy)
	}
}

func TestDocumentStructureKeepsEmptySections(t *testing.T) {
	chunks := DocumentStructure("# Title\n## Part\nBody.")
	require.Len(t, chunks, 2)
	assert.Equal(t, "# Title", chunks[0].Text)
	assert.Equal(t, "## Part\nBody.", chunks[1].Text)
}

func TestDocumentStructureParagraphFallback(t *testing.T) {
	text := "first para.\n\n  second para."

	chunks := DocumentStructure(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Paragraph 1", chunks[0].Metadata["heading"])
	assert.Equal(t, "first para.", chunks[0].Text)
	assert.Equal(t, "Paragraph 2", chunks[1].Metadata["heading"])
	assert.Equal(t, "second para.", chunks[1].Text)
	assert.Equal(t, 15, chunks[1].StartOffset)
	assert.Equal(t, 27, chunks[1].EndOffset)
}

func TestDocumentStructureEmpty(t *testing.T) {
	assert.Empty(t, DocumentStructure(""))
}

func TestStrategiesCoverTheSource(t *testing.T) {
	text := "# Notes\nCats are mammals. Dogs are mammals too.\n\nSTOCKS\nThe stock market fell sharply today. It may recover."
	seg := NewSegmenter(embeddings.NewHashEmbedder(64), log.New(io.Discard, "", 0))

	for _, strategy := range domain.Strategies {
		chunks, err := seg.Segment(context.Background(), text, strategy, Params{ChunkTokens: 4, MaxSentences: 2})
		require.NoError(t, err, strategy)
		require.NotEmpty(t, chunks, strategy)

		var joined strings.Builder
		for i, c := range chunks {
			assert.Equal(t, i, c.ID, strategy)
			assert.GreaterOrEqual(t, c.TokenEstimate, 1, strategy)
			assert.LessOrEqual(t, c.StartOffset, c.EndOffset, strategy)
			joined.WriteString(c.Text)
		}
		assert.GreaterOrEqual(t, nonSpaceRunes(joined.String()), nonSpaceRunes(text), strategy)
	}
}

func TestSegmentIsDeterministic(t *testing.T) {
	seg := NewSegmenter(embeddings.NewHashEmbedder(128), nil)
	first, err := seg.Segment(context.Background(), petsAndMarkets, domain.StrategySemantic, Params{MinChunkSentences: 1})
	require.NoError(t, err)
	second, err := seg.Segment(context.Background(), petsAndMarkets, domain.StrategySemantic, Params{MinChunkSentences: 1})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSegmentUnknownStrategy(t *testing.T) {
	seg := NewSegmenter(nil, nil)
	_, err := seg.Segment(context.Background(), "text", domain.Strategy("recursive"), Params{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRunAllCanonicalOrder(t *testing.T) {
	seg := NewSegmenter(&topicEmbedder{}, log.New(io.Discard, "", 0))

	results, err := seg.RunAll(context.Background(), petsAndMarkets, DefaultParams())
	require.NoError(t, err)
	require.Len(t, results, len(domain.Strategies))

	for i, r := range results {
		assert.Equal(t, domain.Strategies[i], r.Strategy)
		assert.NotEmpty(t, r.Meta.Name)
		assert.Equal(t, len(r.Chunks), r.ChunkCount)
	}
	assert.Equal(t, "Fixed-Size Chunking", results[0].Meta.Name)
	assert.Equal(t, 1, results[0].ChunkCount)
	assert.Equal(t, 19.0, results[0].AvgTokens)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
	s := Summarize([]domain.Chunk{{TokenEstimate: 1}, {TokenEstimate: 2}, {TokenEstimate: 2}})
	assert.Equal(t, 3, s.ChunkCount)
	assert.Equal(t, 1.7, s.AvgTokens)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcdefgh"))
}

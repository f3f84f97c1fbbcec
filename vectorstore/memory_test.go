package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/rag-explorer/domain"
)

func records(texts []string, vectors ...[]float32) []Record {
	out := make([]Record, len(vectors))
	for i, v := range vectors {
		out[i] = Record{ChunkID: i, Text: texts[i], Vector: v, Metadata: map[string]string{"n": fmt.Sprint(i)}}
	}
	return out
}

func TestMemoryQueryMissingAndEmpty(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	_, err := idx.Query(ctx, "nope", []float32{1}, 3)
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)

	require.NoError(t, idx.Upsert(ctx, "empty", nil))
	_, err = idx.Query(ctx, "empty", []float32{1}, 3)
	assert.ErrorIs(t, err, domain.ErrCollectionEmpty)
}

func TestMemoryQueryOrdersAndBreaksTies(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, "docs", records(
		[]string{"first", "other", "twin"},
		[]float32{1, 0}, []float32{0, 1}, []float32{1, 0},
	)))

	got, err := idx.Query(ctx, "docs", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []int{0, 2, 1}, []int{got[0].ChunkID, got[1].ChunkID, got[2].ChunkID})
	assert.Equal(t, 1.0, got[0].SimilarityScore)
	assert.Equal(t, 0.0, got[2].SimilarityScore)
	for _, c := range got {
		assert.Equal(t, "docs", c.SourceCollection)
	}
}

func TestMemoryQueryClampsNegativeSimilarity(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, "docs", records([]string{"opposite"}, []float32{-1, 0})))

	got, err := idx.Query(ctx, "docs", []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got[0].SimilarityScore)
}

func TestMemoryQueryRoundsToFourDecimals(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, "docs", records([]string{"tilted"}, []float32{1, 1})))

	got, err := idx.Query(ctx, "docs", []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.7071, got[0].SimilarityScore)
}

// roundedTieRecords holds two chunks whose raw similarity to [1,0,0] differs
// but rounds to the same 0.7071; the lower id must win a cut at k=1.
func roundedTieRecords() []Record {
	return records(
		[]string{"slightly further", "slightly closer"},
		[]float32{1, 1.0001, 0}, []float32{1, 1, 0},
	)
}

func TestMemoryQueryCutsRoundedTiesByChunkID(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, "docs", roundedTieRecords()))

	got, err := idx.Query(ctx, "docs", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].ChunkID)
	assert.Equal(t, 0.7071, got[0].SimilarityScore)
}

func TestMemoryQueryValidatesInput(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, "docs", records([]string{"a"}, []float32{1})))

	_, err := idx.Query(ctx, "docs", nil, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = idx.Query(ctx, "docs", []float32{1}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMemoryUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, "docs", records([]string{"a", "b", "c"}, []float32{1}, []float32{1}, []float32{1})))
	require.NoError(t, idx.Upsert(ctx, "docs", records([]string{"z"}, []float32{1})))

	n, err := idx.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := idx.Query(ctx, "docs", []float32{1}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "z", got[0].Text)
}

func TestMemoryUpsertRejectsSparseIDs(t *testing.T) {
	idx := NewMemoryIndex()
	err := idx.Upsert(context.Background(), "docs", []Record{{ChunkID: 1, Vector: []float32{1}}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = idx.Upsert(context.Background(), "docs", []Record{
		{ChunkID: 0, Vector: []float32{1}},
		{ChunkID: 1, Vector: []float32{1, 2}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = idx.Count(context.Background(), "docs")
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestMemoryUpsertCopiesInput(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	in := records([]string{"a"}, []float32{1, 0})
	require.NoError(t, idx.Upsert(ctx, "docs", in))

	in[0].Vector[0] = -1
	in[0].Metadata["n"] = "changed"

	got, err := idx.Query(ctx, "docs", []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got[0].SimilarityScore)
	assert.Equal(t, "0", got[0].Metadata["n"])
}

func TestMemoryReadersNeverSeeMixedSnapshots(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	small := records([]string{"old", "old", "old"}, []float32{1}, []float32{1}, []float32{1})
	large := records([]string{"new", "new", "new", "new", "new"}, []float32{1}, []float32{1}, []float32{1}, []float32{1}, []float32{1})
	require.NoError(t, idx.Upsert(ctx, "docs", small))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			next := small
			if i%2 == 0 {
				next = large
			}
			if err := idx.Upsert(ctx, "docs", next); err != nil {
				t.Errorf("upsert: %v", err)
				return
			}
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, err := idx.Query(ctx, "docs", []float32{1}, 10)
				if err != nil {
					t.Errorf("query: %v", err)
					return
				}
				want := map[string]int{"old": 3, "new": 5}[got[0].Text]
				if len(got) != want {
					t.Errorf("snapshot of %q has %d records", got[0].Text, len(got))
					return
				}
				for _, c := range got {
					if c.Text != got[0].Text {
						t.Errorf("mixed snapshot: %q and %q", got[0].Text, c.Text)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestMemoryListAndDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, "rag_b", records([]string{"x"}, []float32{1})))
	require.NoError(t, idx.Upsert(ctx, "rag_a", records([]string{"x", "y"}, []float32{1}, []float32{1})))

	cols, err := idx.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Collection{{Name: "rag_a", Chunks: 2}, {Name: "rag_b", Chunks: 1}}, cols)

	require.NoError(t, idx.Delete(ctx, "rag_a"))
	assert.ErrorIs(t, idx.Delete(ctx, "rag_a"), domain.ErrCollectionNotFound)

	_, err = idx.Query(ctx, "rag_a", []float32{1}, 1)
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestRecordsFromChunks(t *testing.T) {
	chunks := []domain.Chunk{
		{ID: 0, Text: "a", Strategy: domain.StrategySemantic, Metadata: map[string]any{"sentence_count": 2, "avg_intra_similarity": 0.5}},
	}

	got, err := RecordsFromChunks(chunks, [][]float32{{1, 2}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].Metadata["sentence_count"])
	assert.Equal(t, "0.5", got[0].Metadata["avg_intra_similarity"])
	assert.Equal(t, "semantic", got[0].Metadata["strategy"])

	_, err = RecordsFromChunks(chunks, nil)
	assert.Error(t, err)
}

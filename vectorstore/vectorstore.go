// Package vectorstore keeps named collections of embedded chunks and answers
// nearest-neighbour queries over one collection at a time.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/fabfab/rag-explorer/domain"
)

// Record is one embedded chunk as stored in a collection.
type Record struct {
	ChunkID  int
	Text     string
	Vector   []float32
	Metadata map[string]string
}

// Collection summarises a stored collection.
type Collection struct {
	Name   string `json:"name"`
	Chunks int    `json:"chunks"`
}

// Index is implemented by every collection backend.
//
// Upsert replaces everything stored under name; no reader observes a mix of
// old and new records. Query returns up to k records by descending similarity,
// ties broken by lower chunk id, and fails with domain.ErrCollectionNotFound or
// domain.ErrCollectionEmpty instead of an empty success.
type Index interface {
	Upsert(ctx context.Context, name string, records []Record) error
	Query(ctx context.Context, name string, vector []float32, k int) ([]domain.RetrievedChunk, error)
	List(ctx context.Context) ([]Collection, error)
	Count(ctx context.Context, name string) (int, error)
	Delete(ctx context.Context, name string) error
}

// RecordsFromChunks pairs chunks with their vectors. Metadata values are
// flattened to strings.
func RecordsFromChunks(chunks []domain.Chunk, vectors [][]float32) ([]Record, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
	}
	records := make([]Record, len(chunks))
	for i, c := range chunks {
		meta := make(map[string]string, len(c.Metadata)+2)
		for k, v := range c.Metadata {
			meta[k] = fmt.Sprint(v)
		}
		meta["strategy"] = string(c.Strategy)
		meta["token_count"] = strconv.Itoa(c.TokenEstimate)
		records[i] = Record{ChunkID: c.ID, Text: c.Text, Vector: vectors[i], Metadata: meta}
	}
	return records, nil
}

func validate(name string, records []Record) error {
	if name == "" {
		return fmt.Errorf("collection name is empty: %w", domain.ErrInvalidInput)
	}
	dim := -1
	for i, r := range records {
		if r.ChunkID != i {
			return fmt.Errorf("chunk ids must be dense and ordered, got %d at position %d: %w", r.ChunkID, i, domain.ErrInvalidInput)
		}
		if len(r.Vector) == 0 {
			return fmt.Errorf("chunk %d has no vector: %w", i, domain.ErrInvalidInput)
		}
		if dim >= 0 && len(r.Vector) != dim {
			return fmt.Errorf("chunk %d has dimension %d, want %d: %w", i, len(r.Vector), dim, domain.ErrInvalidInput)
		}
		dim = len(r.Vector)
	}
	return nil
}

func validateQuery(name string, vector []float32, k int) error {
	switch {
	case name == "":
		return fmt.Errorf("collection name is empty: %w", domain.ErrInvalidInput)
	case len(vector) == 0:
		return fmt.Errorf("query vector is empty: %w", domain.ErrInvalidInput)
	case k <= 0:
		return fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidInput)
	}
	return nil
}

// score maps a cosine similarity onto [0,1] with four decimals.
func score(cosine float64) float64 {
	if math.IsNaN(cosine) || cosine < 0 {
		return 0
	}
	if cosine > 1 {
		cosine = 1
	}
	return math.Round(cosine*10000) / 10000
}

func sortResults(results []domain.RetrievedChunk) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].SimilarityScore != results[j].SimilarityScore {
			return results[i].SimilarityScore > results[j].SimilarityScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}

// Package retrieval merges similarity results across collections and scores
// how well they support an answer.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/fabfab/rag-explorer/domain"
	"github.com/fabfab/rag-explorer/embeddings"
	"github.com/fabfab/rag-explorer/vectorstore"
)

// Result holds the merged chunks and the collections that could not be
// queried.
type Result struct {
	Chunks   []domain.RetrievedChunk
	Failures []*domain.PartialRetrievalError
}

// Retriever embeds a question once and queries each named collection with it.
type Retriever struct {
	index    vectorstore.Index
	embedder embeddings.Embedder
	logger   *log.Logger
}

func NewRetriever(index vectorstore.Index, embedder embeddings.Embedder, logger *log.Logger) *Retriever {
	if logger == nil {
		logger = log.Default()
	}
	return &Retriever{index: index, embedder: embedder, logger: logger}
}

// Retrieve returns the global top k chunks across collections. A collection
// that fails is logged and recorded in Result.Failures; the call fails with
// domain.ErrNoResults only when nothing was retrieved at all.
func (r *Retriever) Retrieve(ctx context.Context, question string, collections []string, k int) (Result, error) {
	names := Normalize(collections)
	switch {
	case strings.TrimSpace(question) == "":
		return Result{}, fmt.Errorf("question is empty: %w", domain.ErrInvalidInput)
	case len(names) == 0:
		return Result{}, fmt.Errorf("no collection named: %w", domain.ErrInvalidInput)
	case k <= 0:
		return Result{}, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidInput)
	}

	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return Result{}, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) != 1 {
		return Result{}, fmt.Errorf("embed question: got %d vectors", len(vectors))
	}

	var result Result
	for _, name := range names {
		chunks, err := r.index.Query(ctx, name, vectors[0], k)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			r.logger.Printf("could not retrieve from %s: %v", name, err)
			result.Failures = append(result.Failures, &domain.PartialRetrievalError{Collection: name, Err: err})
			continue
		}
		for i := range chunks {
			chunks[i].SourceCollection = name
		}
		result.Chunks = append(result.Chunks, chunks...)
	}

	if len(result.Chunks) == 0 {
		errs := []error{domain.ErrNoResults}
		for _, f := range result.Failures {
			errs = append(errs, f)
		}
		return result, errors.Join(errs...)
	}

	sort.SliceStable(result.Chunks, func(i, j int) bool {
		return result.Chunks[i].SimilarityScore > result.Chunks[j].SimilarityScore
	})
	if len(result.Chunks) > k {
		result.Chunks = result.Chunks[:k]
	}
	return result, nil
}

// Normalize trims collection names, drops blanks and keeps the first
// occurrence of each.
func Normalize(collections []string) []string {
	seen := make(map[string]struct{}, len(collections))
	out := make([]string, 0, len(collections))
	for _, c := range collections {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// SplitCollections accepts a comma separated list of collection names.
func SplitCollections(list string) []string {
	return Normalize(strings.Split(list, ","))
}

// Package domain holds the types shared by the chunking, indexing and answering
// packages together with the error taxonomy every surface reports.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates empty, oversized or malformed input. It is
	// returned before any work is done.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotConfigured indicates the answer generator has no credential.
	ErrNotConfigured = errors.New("answer generator not configured")

	// ErrNoResults indicates that no chunk was retrieved from any collection.
	ErrNoResults = errors.New("no results")

	// ErrCollectionNotFound indicates the named collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionEmpty indicates the named collection holds no chunks.
	ErrCollectionEmpty = errors.New("collection empty")
)

// PartialRetrievalError records one collection that could not be queried while
// others may still have produced results.
type PartialRetrievalError struct {
	Collection string
	Err        error
}

func (e *PartialRetrievalError) Error() string {
	return fmt.Sprintf("retrieve from %s: %v", e.Collection, e.Err)
}

func (e *PartialRetrievalError) Unwrap() error { return e.Err }

// GenerationError records the failure of a single prompting strategy.
type GenerationError struct {
	Strategy string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s answer: %v", e.Strategy, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Error kinds reported by Kind.
const (
	KindInputError              = "input_error"
	KindNotConfigured           = "not_configured"
	KindNotFound                = "not_found"
	KindEmpty                   = "empty"
	KindNoResults               = "no_results"
	KindPartialRetrievalFailure = "partial_retrieval_failure"
	KindGenerationFailure       = "generation_failure"
	KindInternal                = "internal"
)

// Kind classifies err into one of the taxonomy kinds. The most specific kind
// wins: a NoResults error that joins partial failures is still NoResults.
func Kind(err error) string {
	var (
		partial *PartialRetrievalError
		gen     *GenerationError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInputError
	case errors.Is(err, ErrNotConfigured):
		return KindNotConfigured
	case errors.Is(err, ErrNoResults):
		return KindNoResults
	case errors.As(err, &gen):
		return KindGenerationFailure
	case errors.As(err, &partial):
		return KindPartialRetrievalFailure
	case errors.Is(err, ErrCollectionNotFound):
		return KindNotFound
	case errors.Is(err, ErrCollectionEmpty):
		return KindEmpty
	default:
		return KindInternal
	}
}

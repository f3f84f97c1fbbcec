package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	partial := &PartialRetrievalError{Collection: "rag_cats", Err: ErrCollectionNotFound}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid input", ErrInvalidInput, KindInputError},
		{"wrapped invalid input", fmt.Errorf("question is empty: %w", ErrInvalidInput), KindInputError},
		{"not configured", fmt.Errorf("groq: %w", ErrNotConfigured), KindNotConfigured},
		{"not found", fmt.Errorf("query rag_x: %w", ErrCollectionNotFound), KindNotFound},
		{"empty", fmt.Errorf("query rag_x: %w", ErrCollectionEmpty), KindEmpty},
		{"no results", ErrNoResults, KindNoResults},
		{"no results joined with partial failures", errors.Join(ErrNoResults, partial), KindNoResults},
		{"partial failure wins over its cause", partial, KindPartialRetrievalFailure},
		{"generation failure", &GenerationError{Strategy: "concise", Err: errors.New("rate limited")}, KindGenerationFailure},
		{"wrapped generation failure", fmt.Errorf("answer: %w", &GenerationError{Strategy: "detailed", Err: ErrCollectionEmpty}), KindGenerationFailure},
		{"anything else", errors.New("disk full"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestTypedErrorsUnwrap(t *testing.T) {
	err := &PartialRetrievalError{Collection: "rag_cats", Err: ErrCollectionEmpty}
	assert.ErrorIs(t, err, ErrCollectionEmpty)
	assert.Equal(t, "retrieve from rag_cats: collection empty", err.Error())

	gen := &GenerationError{Strategy: "concise", Err: errors.New("timeout")}
	assert.Equal(t, "generate concise answer: timeout", gen.Error())
}

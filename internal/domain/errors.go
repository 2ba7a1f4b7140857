package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch signals disagreeing vector shapes in a scoring call.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyRepresentation signals a zero-token representation.
	ErrEmptyRepresentation = errors.New("empty representation")
	// ErrModelUnavailable signals an unreachable embedding model.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrEmbeddingFailed signals an embedding provider failure.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrSpecParse signals a malformed evaluation specification.
	ErrSpecParse = errors.New("invalid evaluation spec")
	// ErrUnknownModel signals a model id with no configured provider.
	ErrUnknownModel = errors.New("unknown model")
)

// DimensionError wraps ErrDimensionMismatch with the two observed lengths.
type DimensionError struct {
	Query     int
	Candidate int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: query %d vs candidate %d", ErrDimensionMismatch.Error(), e.Query, e.Candidate)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionError creates a dimension mismatch error carrying both lengths.
func NewDimensionError(query, candidate int) error {
	return &DimensionError{Query: query, Candidate: candidate}
}

package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected failure conditions
var (
	// ErrNotFound is returned when a requested document doesn't exist
	ErrNotFound = errors.New("document not found")
	// ErrStoreClosed is returned when operating on a closed store
	ErrStoreClosed = errors.New("store is closed")
	// ErrEmptyContent is returned when a document has no content
	ErrEmptyContent = errors.New("content cannot be empty")
	// ErrDimensionMismatch is returned when an embedding's length differs
	// from the collection's configured vector dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmptyQuery is returned when a search has neither text nor embedding
	ErrEmptyQuery = errors.New("empty query")
	// ErrUnsupportedMode is returned for an unknown search mode
	ErrUnsupportedMode = errors.New("unsupported search mode")
	// ErrInvalidFilter is returned for a malformed metadata filter
	ErrInvalidFilter = errors.New("invalid metadata filter")
)

// ValidationError reports malformed input. It is always raised before any
// write is attempted.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %v", e.Err)
	}
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps a cause with the offending field name.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

// QueryError reports a malformed search request (bad mode, bad filter).
// It is raised before query execution.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("query: %v", e.Err)
	}
	return fmt.Sprintf("query: %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// StorageError wraps a backing-engine failure with operation context.
// Storage errors are fatal for the call and propagate unchanged; the store
// performs no automatic retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("storage: %v", e.Err)
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage wraps err in a *StorageError unless it is nil or already a
// validation, query, or not-found condition.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	var qe *QueryError
	if errors.As(err, &ve) || errors.As(err, &qe) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

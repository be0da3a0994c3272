package curator

import (
	"errors"
	"fmt"
)

// Common errors returned by the curator engine.
var (
	// ErrNotFound is returned when a seed is not found.
	ErrNotFound = errors.New("seed not found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrNoClassifier is returned when a check runs without a configured classifier.
	ErrNoClassifier = errors.New("classifier not configured")

	// ErrEmptyIDSet is returned when a deactivation request names no seeds.
	ErrEmptyIDSet = errors.New("seed id set is empty")

	// ErrInvalidRating is returned when feedback carries an unknown rating.
	ErrInvalidRating = errors.New("rating must be like or dislike")

	// ErrEmptyResponse is returned when a seed has no response text.
	ErrEmptyResponse = errors.New("response cannot be empty")
)

// ValidationError is returned when input or configuration fails a precondition.
// It is always produced before any I/O. Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string

	// Err is an optional sentinel the failure corresponds to.
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// QueryError is returned when the knowledge or log store cannot be read or written.
// Extractable via errors.As(). Supports Unwrap().
type QueryError struct {
	Operation string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query: %s: %v", e.Operation, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// TransportError is returned when a classifier cannot be reached or answers
// with a non-success status. Extractable via errors.As(). Supports Unwrap().
type TransportError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport: %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("transport: %s failed (status %d): %v", e.Operation, e.StatusCode, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError is returned when a classifier payload is not valid JSON.
type ParseError struct {
	Operation string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse: %s: %v", e.Operation, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func queryErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{Operation: op, Err: err}
}

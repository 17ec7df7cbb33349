package models

import (
	"errors"
	"fmt"
)

var (
	// ErrIO is returned when a file or network read fails.
	ErrIO = errors.New("io error")
	// ErrFormat is returned for malformed input records or stored values.
	ErrFormat = errors.New("format error")
	// ErrEncoding is returned when a book lacks the fields an encoder needs.
	ErrEncoding = errors.New("encoding error")
	// ErrNotFound is returned when a key or index is absent from the store.
	ErrNotFound = errors.New("not found")
	// ErrStoreConnection is returned when the store cannot be reached. It is fatal.
	ErrStoreConnection = errors.New("store connection error")
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
	// ErrDimensionMismatch matches any *DimensionMismatchError via errors.Is.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// DimensionMismatchError indicates a vector length that disagrees with the index.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is reports true for ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// CheckDimensions returns a *DimensionMismatchError when actual != expected.
func CheckDimensions(expected, actual int) error {
	if expected != actual {
		return &DimensionMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

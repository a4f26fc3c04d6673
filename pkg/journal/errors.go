package journal

import (
	"errors"
	"fmt"
)

// ErrStorageFailure is matched by every *StorageError.
var ErrStorageFailure = errors.New("journal storage failure")

// ErrClosed is returned by a storage backend used after Close.
var ErrClosed = errors.New("journal storage closed")

// StorageError represents a failed storage operation.
type StorageError struct {
	// Backend is the storage backend name (e.g. "sqlite", "memory").
	Backend string

	// Operation is the operation that failed (e.g. "store", "query").
	Operation string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("journal storage error (%s.%s): %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrStorageFailure) true for any StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

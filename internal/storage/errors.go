// Package storage provides event-history and alert persistence
// backends for the detection engine.
package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable indicates the backing store cannot be
	// reached. Rules treat this as "no evidence found".
	ErrStoreUnavailable = errors.New("storage: store unavailable")

	// ErrNotFound indicates the requested record was not found.
	ErrNotFound = errors.New("storage: not found")

	// ErrInvalidTransition indicates a disallowed alert status change.
	ErrInvalidTransition = errors.New("storage: invalid status transition")
)

// StorageError wraps storage errors with operation context.
type StorageError struct {
	Op    string // Operation that failed (e.g., "Insert", "QueryWindow")
	Table string // Table or key involved, if applicable
	Err   error  // Underlying error
}

// Error returns the error message.
func (e *StorageError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("storage.%s(%s): %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("storage.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapUnavailable wraps an error as a store-unavailable error.
func WrapUnavailable(op, table string, err error) error {
	return &StorageError{
		Op:    op,
		Table: table,
		Err:   fmt.Errorf("%w: %v", ErrStoreUnavailable, err),
	}
}

// IsUnavailable checks if the error is a store-unavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsNotFound checks if the error is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

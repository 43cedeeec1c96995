// Package errors provides custom error types for the quote-sync packages.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to branch on failure type.
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindNotFound   Kind = "NOT_FOUND"
	KindStorage    Kind = "STORAGE"
	KindNetwork    Kind = "NETWORK"
	KindConflict   Kind = "CONFLICT"
	KindInternal   Kind = "INTERNAL"
)

// Operation represents the type of operation during which an error occurred.
type Operation string

const (
	OpCacheSet   Operation = "cache_set"
	OpCacheGet   Operation = "cache_get"
	OpFetch      Operation = "fetch"
	OpReconcile  Operation = "reconcile"
	OpRollback   Operation = "rollback"
	OpStore      Operation = "store"
	OpLoad       Operation = "load"
	OpListLineage Operation = "list_lineage"
	OpParse      Operation = "parse"
	OpTransport  Operation = "transport"
	OpClose      Operation = "close"
)

// SyncError represents an error that occurred during a sync or lineage operation.
type SyncError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "cache", "transport")
	Component string

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Kind classifies the failure
	Kind Kind

	// Metadata for additional context
	Metadata map[string]interface{}
}

func (e *SyncError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Kind != "" {
		msg += fmt.Sprintf(" [%s]", e.Kind)
	}

	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation-related SyncError.
// Validation failures are surfaced immediately; nothing is mutated.
func NewValidationError(op Operation, cause error) *SyncError {
	return &SyncError{
		Kind:      KindValidation,
		Op:        op,
		Err:       cause,
		Retryable: false,
	}
}

// NewNotFoundError creates a new not-found SyncError.
func NewNotFoundError(op Operation, cause error) *SyncError {
	return &SyncError{
		Kind:      KindNotFound,
		Op:        op,
		Err:       cause,
		Retryable: false,
	}
}

// NewStorageError creates a new storage-related SyncError.
func NewStorageError(op Operation, cause error) *SyncError {
	return &SyncError{
		Kind:      KindStorage,
		Op:        op,
		Component: "store",
		Err:       cause,
		Retryable: true,
	}
}

// NewNetworkError creates a new network-related SyncError.
func NewNetworkError(op Operation, cause error) *SyncError {
	return &SyncError{
		Kind:      KindNetwork,
		Op:        op,
		Component: "transport",
		Err:       cause,
		Retryable: true,
	}
}

// NewConflictError creates a new conflict-related SyncError.
func NewConflictError(op Operation, cause error) *SyncError {
	return &SyncError{
		Kind:      KindConflict,
		Op:        op,
		Component: "sync",
		Err:       cause,
		Retryable: false,
	}
}

// NewInternalError creates a new internal SyncError.
func NewInternalError(op Operation, cause error) *SyncError {
	return &SyncError{
		Kind:      KindInternal,
		Op:        op,
		Err:       cause,
		Retryable: false,
	}
}

// New creates a new SyncError.
func New(op Operation, err error) *SyncError {
	return &SyncError{
		Op:  op,
		Err: err,
	}
}

// NewWithComponent creates a new SyncError with component information.
func NewWithComponent(op Operation, component string, err error) *SyncError {
	return &SyncError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// IsRetryable checks if an error is a retryable SyncError.
func IsRetryable(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Retryable
	}
	return false
}

// IsKind reports whether err is a SyncError of the given kind.
func IsKind(err error, kind Kind) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Kind == kind
	}
	return false
}

// IsNotFound reports whether err is a not-found SyncError.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsValidation reports whether err is a validation SyncError.
func IsValidation(err error) bool { return IsKind(err, KindValidation) }

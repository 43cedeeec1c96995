package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncErrorMessage(t *testing.T) {
	err := NewStorageError(OpStore, fmt.Errorf("disk full"))
	assert.Contains(t, err.Error(), "store operation failed in store component")
	assert.Contains(t, err.Error(), "[STORAGE]")
	assert.Contains(t, err.Error(), "disk full")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewNetworkError(OpFetch, cause)
	require.ErrorIs(t, err, cause)
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError(OpRollback, errors.New("missing"))))
	assert.False(t, IsNotFound(NewStorageError(OpStore, errors.New("x"))))
	assert.True(t, IsValidation(NewValidationError(OpParse, errors.New("bad number"))))
	assert.False(t, IsValidation(errors.New("plain")))
}

func TestKindPredicatesThroughWrapping(t *testing.T) {
	inner := NewNotFoundError(OpRollback, errors.New("version not found"))
	wrapped := fmt.Errorf("handler: %w", inner)
	assert.True(t, IsNotFound(wrapped))
}

func TestRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewStorageError(OpStore, errors.New("busy"))))
	assert.True(t, IsRetryable(NewNetworkError(OpFetch, errors.New("timeout"))))
	assert.False(t, IsRetryable(NewValidationError(OpParse, errors.New("bad"))))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestWrapOpComponentNil(t *testing.T) {
	assert.NoError(t, WrapOpComponent(nil, OpStore, "store"))
	assert.NoError(t, WrapOpComponentKind(nil, OpStore, "store", KindStorage))
}

func TestWrapOpComponentKind(t *testing.T) {
	err := WrapOpComponentKind(errors.New("boom"), OpRollback, "storage/sqlite", KindStorage)
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, OpRollback, syncErr.Op)
	assert.Equal(t, "storage/sqlite", syncErr.Component)
	assert.Equal(t, KindStorage, syncErr.Kind)
}

package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageErrorWrapsCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := NewStorageError(cause, ErrStoreDeleteFailed, "Failed to delete chunks").
		WithFileName("_0.cfs").
		WithKey("index/_0.cfs/chunks/00000001").
		WithChunk(1)

	wrapped := fmt.Errorf("mark for deletion: %w", err)

	se, ok := AsStorageError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrStoreDeleteFailed, se.Code())
	assert.Equal(t, "_0.cfs", se.FileName())
	assert.Equal(t, 1, se.Chunk())
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, err.Error(), "connection reset")
	assert.True(t, HasCode(wrapped, ErrStoreDeleteFailed))
	assert.False(t, HasCode(wrapped, ErrFileNotFound))
}

func TestStorageErrorDefaultsToNoChunk(t *testing.T) {
	err := NewStorageError(nil, ErrFileNotFound, "File not found")
	assert.Equal(t, -1, err.Chunk())
	assert.Equal(t, "File not found", err.Error())
}

func TestLockErrorDetails(t *testing.T) {
	err := NewLockError(nil, ErrLockAccountingViolation, "release without acquire").
		WithFileName("segments_2").
		WithOperation("release").
		WithRefCount(0).
		WithDetail("strategy", "counting")

	le, ok := AsLockError(err)
	require.True(t, ok)
	assert.Equal(t, "segments_2", le.FileName())
	assert.Equal(t, "release", le.Operation())
	assert.Equal(t, int64(0), le.RefCount())
	assert.Equal(t, "counting", le.Details()["strategy"])

	_, ok = AsStorageError(err)
	assert.False(t, ok)
}

func TestFieldRangeError(t *testing.T) {
	err := NewFieldRangeError("chunkSize", 12, 1024, 64)
	assert.Equal(t, ErrValidationOutOfRange, err.Code())
	assert.Equal(t, "chunkSize", err.Field())
	assert.Equal(t, 12, err.Provided())
	assert.True(t, HasCode(err, ErrValidationOutOfRange))
}

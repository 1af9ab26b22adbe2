package errors

// StorageError is a specialized error type for chunk store operations.
type StorageError struct {
	*baseError
	chunk    int
	key      string
	fileName string
}

// NewStorageError creates a new storage-specific error with the provided context.
func NewStorageError(err error, code ErrorCode, msg string) *StorageError {
	return &StorageError{baseError: NewBaseError(err, code, msg), chunk: -1}
}

// WithMessage updates the error message.
func (se *StorageError) WithMessage(msg string) *StorageError {
	se.baseError.WithMessage(msg)
	return se
}

// WithCode sets the error code.
func (se *StorageError) WithCode(code ErrorCode) *StorageError {
	se.baseError.WithCode(code)
	return se
}

// WithDetail adds contextual information.
func (se *StorageError) WithDetail(key string, value any) *StorageError {
	se.baseError.WithDetail(key, value)
	return se
}

// WithChunk sets which chunk of the file was involved in the error.
func (se *StorageError) WithChunk(index int) *StorageError {
	se.chunk = index
	return se
}

// WithKey records the bucket key being accessed when the error occurred.
func (se *StorageError) WithKey(key string) *StorageError {
	se.key = key
	return se
}

// WithFileName captures which logical file was being processed.
func (se *StorageError) WithFileName(fileName string) *StorageError {
	se.fileName = fileName
	return se
}

// Chunk returns the chunk index involved, or -1 when the error is not chunk specific.
func (se *StorageError) Chunk() int {
	return se.chunk
}

// Key returns the bucket key that was being accessed.
func (se *StorageError) Key() string {
	return se.key
}

// FileName returns the name of the logical file that was being processed.
func (se *StorageError) FileName() string {
	return se.fileName
}

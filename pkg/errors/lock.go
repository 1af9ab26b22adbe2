package errors

// LockError reports a misuse of the read-lock contract, such as releasing a
// lock that was never acquired.
type LockError struct {
	*baseError
	fileName  string
	operation string
	refCount  int64
}

// NewLockError creates a new lock-specific error.
func NewLockError(err error, code ErrorCode, msg string) *LockError {
	return &LockError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage updates the error message.
func (le *LockError) WithMessage(msg string) *LockError {
	le.baseError.WithMessage(msg)
	return le
}

// WithCode sets the error code.
func (le *LockError) WithCode(code ErrorCode) *LockError {
	le.baseError.WithCode(code)
	return le
}

// WithDetail adds contextual information.
func (le *LockError) WithDetail(key string, value any) *LockError {
	le.baseError.WithDetail(key, value)
	return le
}

// WithFileName records the file whose lock accounting broke.
func (le *LockError) WithFileName(fileName string) *LockError {
	le.fileName = fileName
	return le
}

// WithOperation records which lock operation was running.
func (le *LockError) WithOperation(operation string) *LockError {
	le.operation = operation
	return le
}

// WithRefCount captures the reference count observed at failure time.
func (le *LockError) WithRefCount(refCount int64) *LockError {
	le.refCount = refCount
	return le
}

func (le *LockError) FileName() string {
	return le.fileName
}

func (le *LockError) Operation() string {
	return le.operation
}

func (le *LockError) RefCount() int64 {
	return le.refCount
}

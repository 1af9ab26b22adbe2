package errors

import "fmt"

// baseError carries the fields shared by every typed error in chunkfs.
type baseError struct {
	cause   error          // The underlying failure, if any.
	message string         // Human readable message.
	code    ErrorCode      // Category used for programmatic handling.
	details map[string]any // Extra context (bucket key, attempt, counts).
}

// NewBaseError creates a baseError wrapping err.
func NewBaseError(err error, code ErrorCode, msg string) *baseError {
	return &baseError{cause: err, code: code, message: msg}
}

// WithMessage updates the error message.
func (be *baseError) WithMessage(msg string) *baseError {
	be.message = msg
	return be
}

// WithCode sets the error code.
func (be *baseError) WithCode(code ErrorCode) *baseError {
	be.code = code
	return be
}

// WithDetail adds contextual information.
func (be *baseError) WithDetail(key string, value any) *baseError {
	if be.details == nil {
		be.details = make(map[string]any)
	}
	be.details[key] = value
	return be
}

// Error returns the message, followed by the cause when there is one.
func (b *baseError) Error() string {
	if b.cause == nil {
		return b.message
	}
	return fmt.Sprintf("%s: %v", b.message, b.cause)
}

// Unwrap returns the underlying error.
func (b *baseError) Unwrap() error {
	return b.cause
}

// Code returns the error code.
func (b *baseError) Code() ErrorCode {
	return b.code
}

// Details returns the additional context stored with this error.
func (b *baseError) Details() map[string]any {
	return b.details
}

package errors

import (
	stdErrors "errors"
)

func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stdErrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func AsStorageError(err error) (*StorageError, bool) {
	var se *StorageError
	if stdErrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func AsLockError(err error) (*LockError, bool) {
	var le *LockError
	if stdErrors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// HasCode reports whether any typed error in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	if se, ok := AsStorageError(err); ok && se.Code() == code {
		return true
	}
	if le, ok := AsLockError(err); ok && le.Code() == code {
		return true
	}
	if ve, ok := AsValidationError(err); ok && ve.Code() == code {
		return true
	}
	return false
}

package errors

import "fmt"

type ValidationError struct {
	*baseError
	field    string
	provided any
	expected any
}

func NewValidationError(err error, code ErrorCode, msg string) *ValidationError {
	return &ValidationError{baseError: NewBaseError(err, code, msg)}
}

// NewRequiredFieldError reports a missing or empty field.
func NewRequiredFieldError(field string) *ValidationError {
	return NewValidationError(nil, ErrValidationRequired, fmt.Sprintf("%s is required", field)).WithField(field)
}

// NewFieldRangeError reports a field whose value falls outside [min, max].
func NewFieldRangeError(field string, provided, min, max any) *ValidationError {
	return NewValidationError(
		nil, ErrValidationOutOfRange,
		fmt.Sprintf("%s must be between %v and %v, got %v", field, min, max, provided),
	).
		WithField(field).
		WithProvided(provided).
		WithExpected(fmt.Sprintf("%v..%v", min, max))
}

func (ve *ValidationError) WithMessage(msg string) *ValidationError {
	ve.baseError.WithMessage(msg)
	return ve
}

func (ve *ValidationError) WithCode(code ErrorCode) *ValidationError {
	ve.baseError.WithCode(code)
	return ve
}

func (ve *ValidationError) WithDetail(key string, value any) *ValidationError {
	ve.baseError.WithDetail(key, value)
	return ve
}

func (ve *ValidationError) WithField(field string) *ValidationError {
	ve.field = field
	return ve
}

func (ve *ValidationError) WithProvided(value any) *ValidationError {
	ve.provided = value
	return ve
}

func (ve *ValidationError) WithExpected(value any) *ValidationError {
	ve.expected = value
	return ve
}

func (ve *ValidationError) Field() string {
	return ve.field
}

func (ve *ValidationError) Provided() any {
	return ve.provided
}

func (ve *ValidationError) Expected() any {
	return ve.expected
}

package subproto

import "fmt"

// ValidationError describes a rejected parameter set. Its message is part of
// the external contract: callers (wallets) may pattern-match on it, so the
// strings below must not change.
type ValidationError struct {
	msg string
}

// A compile time check to ensure ValidationError implements the error
// interface.
var _ error = (*ValidationError)(nil)

// Error returns the user-facing reason verbatim.
func (e *ValidationError) Error() string {
	return e.msg
}

// NewValidationError creates a validation error with the given user-facing
// message.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ErrMissingParam is the failure for a required parameter that was not
// supplied at all.
func ErrMissingParam(field string) *ValidationError {
	return NewValidationError("Missing required parameter: %q", field)
}

// ErrIntegerExpected is the failure for a parameter that must parse as an
// integer but did not.
func ErrIntegerExpected(field string) *ValidationError {
	return NewValidationError("Invalid parameter (%q): Integer expected",
		field)
}

// ErrGreaterThanZero is the failure for an integer parameter that must be
// strictly positive.
func ErrGreaterThanZero(field string) *ValidationError {
	return NewValidationError("%q must be greater than zero", field)
}

// ErrGreaterThanOrEqualZero is the failure for an integer parameter that must
// be non-negative.
func ErrGreaterThanOrEqualZero(field string) *ValidationError {
	return NewValidationError(
		"%q must be greater than or equal to zero", field,
	)
}

// ErrFieldOrdering is the cross-field failure for a parameter that must be
// greater than or equal to another.
func ErrFieldOrdering(greater, lesser string) *ValidationError {
	return NewValidationError(
		"%q must be greater than or equal to %q", greater, lesser,
	)
}

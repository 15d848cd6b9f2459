package utils

import (
	"errors"
	"fmt"
)

// ValidationError represents an error occurring during data validation.
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
//
// Parameters:
//   - message: The validation error message.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
//
// Parameters:
//   - format: The format string.
//   - args: Arguments for the format string.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DataIntegrityMessage is the user-facing text for a DataIntegrityError.
const DataIntegrityMessage = "historical data inconsistency — cannot rebuild learning summary"

// DataIntegrityError reports stored history that contradicts itself, such as
// a graded prediction whose analysis no longer exists.
type DataIntegrityError struct {
	Detail string
}

// Error returns the user-facing message followed by the detail.
func (e *DataIntegrityError) Error() string {
	if e.Detail == "" {
		return DataIntegrityMessage
	}
	return DataIntegrityMessage + ": " + e.Detail
}

// NewDataIntegrityErrorf creates a DataIntegrityError with a formatted detail.
func NewDataIntegrityErrorf(format string, args ...interface{}) error {
	return &DataIntegrityError{
		Detail: fmt.Sprintf(format, args...),
	}
}

// IsDataIntegrityError reports whether err wraps a DataIntegrityError.
func IsDataIntegrityError(err error) bool {
	var de *DataIntegrityError
	return errors.As(err, &de)
}

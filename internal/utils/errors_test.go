package utils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Message: "test error message",
	}

	assert.Equal(t, "test error message", err.Error())
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("validation failed")

	assert.Error(t, err)
	assert.Equal(t, "validation failed", err.Error())

	validationErr, ok := err.(*ValidationError)
	assert.True(t, ok)
	assert.Equal(t, "validation failed", validationErr.Message)
}

func TestNewValidationErrorf(t *testing.T) {
	err := NewValidationErrorf("confidence %v out of range for article %d", 120.0, 7)

	assert.Error(t, err)
	assert.Equal(t, "confidence 120 out of range for article 7", err.Error())
}

func TestIsValidationError_Wrapped(t *testing.T) {
	err := fmt.Errorf("scoring article 3: %w", NewValidationError("bad sentiment"))

	assert.True(t, IsValidationError(err))
	assert.False(t, IsValidationError(fmt.Errorf("timeout")))
	assert.False(t, IsValidationError(nil))
}

func TestDataIntegrityError(t *testing.T) {
	err := NewDataIntegrityErrorf("no analysis for %s", "2025-01-02")

	assert.Equal(t, DataIntegrityMessage+": no analysis for 2025-01-02", err.Error())
	assert.True(t, IsDataIntegrityError(fmt.Errorf("rebuild: %w", err)))
	assert.False(t, IsDataIntegrityError(NewValidationError("x")))

	bare := &DataIntegrityError{}
	assert.Equal(t, DataIntegrityMessage, bare.Error())
}

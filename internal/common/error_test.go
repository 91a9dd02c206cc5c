package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartialDeletionError(t *testing.T) {
	err := fmt.Errorf("clear all: %w", &PartialDeletionError{Deleted: 5, Remaining: 2})

	assert.True(t, errors.Is(err, ErrPartialDeletion))
	assert.False(t, errors.Is(err, ErrStorageFailure))
	assert.Contains(t, err.Error(), "2 remaining")

	n, ok := Remaining(err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), n)

	_, ok = Remaining(errors.New("other"))
	assert.False(t, ok)
}

func TestFieldError_IsValidation(t *testing.T) {
	err := &FieldError{Field: "phone", Reason: "invalid format"}
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "phone: invalid format", err.Error())
}

func TestInvalidPin_IsValidation(t *testing.T) {
	assert.True(t, errors.Is(ErrInvalidPin, ErrValidation))
	assert.False(t, errors.Is(ErrDuplicatePin, ErrValidation))
}

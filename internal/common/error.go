// Package common defines sentinel errors shared by the storage, registry and
// presentation layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks rejected user input (name, phone, PIN).
	ErrValidation = errors.New("validation error")

	// ErrInvalidPin is a malformed session PIN (not exactly four digits).
	ErrInvalidPin = fmt.Errorf("%w: pin must be exactly 4 digits", ErrValidation)

	// ErrDuplicatePin is raised when a PIN is already in use, whether caught
	// by the in-memory mirror or by the store's unique constraint.
	ErrDuplicatePin = errors.New("pin already in use")

	// ErrInvalidSession means the PIN is unknown, inactive or expired.
	ErrInvalidSession = errors.New("invalid or expired session")

	// ErrRemoteUnavailable means the remote store could not be reached.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrPartialDeletion is matched by *PartialDeletionError.
	ErrPartialDeletion = errors.New("partial deletion")

	// ErrStorageFailure means the local store rejected a read or write
	// (quota exceeded, I/O error, corrupt slot).
	ErrStorageFailure = errors.New("local storage failure")

	// ErrBusy is returned while a submission is already in flight.
	ErrBusy = errors.New("submission in progress")
)

// PartialDeletionError reports a bulk delete that left rows behind after
// every retry.
type PartialDeletionError struct {
	Deleted   int64
	Remaining int64
}

func (e *PartialDeletionError) Error() string {
	return fmt.Sprintf("partial deletion: %d deleted, %d remaining", e.Deleted, e.Remaining)
}

func (e *PartialDeletionError) Is(target error) bool {
	return target == ErrPartialDeletion
}

// FieldError is a validation failure tied to one input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}

// Remaining extracts the remaining-row count from a partial deletion error.
func Remaining(err error) (int64, bool) {
	var pd *PartialDeletionError
	if errors.As(err, &pd) {
		return pd.Remaining, true
	}
	return 0, false
}

// Package errors holds the sentinel categories shared by repositories and
// services. Callers classify with errors.Is against these values.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied indicates the caller may not perform the operation
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidInput indicates rejected input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates the operation clashes with stored state
	ErrConflict = errors.New("conflict")
)

// NotFoundError names the missing resource
func NotFoundError(resource string) error {
	return fmt.Errorf("%s %w", resource, ErrNotFound)
}

// ConflictError describes the clash
func ConflictError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrConflict)
}

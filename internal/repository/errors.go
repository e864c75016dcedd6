package repository

import (
	"errors"

	apperrors "github.com/fundopatronos/carreiras-api/pkg/errors"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = apperrors.NotFoundError("record")

	// ErrStatusMismatch is returned when a conditional status update finds a
	// different status than expected
	ErrStatusMismatch = errors.New("status precondition failed")

	// ErrNotConsumed is returned when a token could not be consumed
	ErrNotConsumed = errors.New("token not consumed")

	// ErrAlreadySubmitted is returned when a feedback request already has a response
	ErrAlreadySubmitted = apperrors.ConflictError("feedback already submitted")

	// ErrDuplicate is returned on unique key violations
	ErrDuplicate = apperrors.ConflictError("duplicate record")
)

package services

import (
	"errors"
	"fmt"

	"github.com/fundopatronos/carreiras-api/internal/models"
	apperrors "github.com/fundopatronos/carreiras-api/pkg/errors"
)

var (
	// ErrInvalidToken covers every reason a token cannot be redeemed.
	// Public callers should only ever see this one.
	ErrInvalidToken = errors.New("invalid or expired token")

	ErrTokenNotFound    = fmt.Errorf("token not found: %w", ErrInvalidToken)
	ErrTokenExpired     = fmt.Errorf("token expired: %w", ErrInvalidToken)
	ErrTokenAlreadyUsed = fmt.Errorf("token already used: %w", ErrInvalidToken)

	// ErrFeedbackTokenNotFound is returned for unknown feedback tokens
	ErrFeedbackTokenNotFound = fmt.Errorf("feedback request not found: %w", ErrInvalidToken)

	// ErrAlreadySubmitted is returned when a feedback request was answered before
	ErrAlreadySubmitted = apperrors.ConflictError("feedback already submitted")

	// ErrIllegalTransition is the umbrella for TransitionError
	ErrIllegalTransition = errors.New("illegal status transition")

	ErrUserNotFound = apperrors.NotFoundError("user")

	// ErrEmailTaken is returned when another uid already registered the email
	ErrEmailTaken = apperrors.ConflictError("email already registered")

	ErrSessionNotFound = apperrors.NotFoundError("session")

	// ErrUserNotPendingConfirmation is returned when a verification email is
	// requested for an identity that is not waiting on one
	ErrUserNotPendingConfirmation = errors.New("user is not pending email confirmation")

	// ErrAccessDenied is the umbrella for AccessDeniedError
	ErrAccessDenied = apperrors.ErrAccessDenied
)

// ValidationError reports a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// TransitionError reports an event that is not legal from the current status
type TransitionError struct {
	From  models.Status
	Event models.LifecycleEvent
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s user with status %s", e.Event, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// AccessDeniedError explains why an authenticated identity may not proceed
type AccessDeniedError struct {
	Status models.Status
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

func (e *AccessDeniedError) Unwrap() error {
	return ErrAccessDenied
}

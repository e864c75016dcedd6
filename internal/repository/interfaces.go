package repository

import (
	"context"
	"time"

	"github.com/fundopatronos/carreiras-api/internal/models"
)

// IdentityStore persists identities and their status history
type IdentityStore interface {
	// Create inserts the identity if its uid is unknown. When the uid already
	// exists the stored identity is returned with created=false.
	Create(ctx context.Context, identity *models.Identity) (stored *models.Identity, created bool, err error)

	GetByUID(ctx context.Context, uid string) (*models.Identity, error)

	GetByEmail(ctx context.Context, email string) (*models.Identity, error)

	// TransitionStatus moves uid from `from` to t.To only if the stored status
	// still equals `from`, and appends t to the audit trail in the same unit
	// of work. Returns ErrStatusMismatch when the precondition fails.
	TransitionStatus(ctx context.Context, from models.Status, t *models.StatusTransition) error

	// ListByStatus returns identities in any of statuses, newest first
	ListByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Identity, error)
}

// TokenStore persists single-use verification tokens
type TokenStore interface {
	Insert(ctx context.Context, token *models.VerificationToken) error

	Get(ctx context.Context, purpose models.TokenPurpose, token string) (*models.VerificationToken, error)

	// Consume atomically flips used false -> true for an unused token that is
	// not expired at `at`. Returns ErrNotConsumed when no row qualified;
	// the caller inspects the token to find out why.
	Consume(ctx context.Context, purpose models.TokenPurpose, token string, at time.Time) (*models.VerificationToken, error)

	// InvalidateForSubject marks every unused token of purpose for uid as used
	InvalidateForSubject(ctx context.Context, purpose models.TokenPurpose, uid string, at time.Time) (int, error)
}

// CredentialStore keeps password hashes for the password channel
type CredentialStore interface {
	SetPasswordHash(ctx context.Context, uid, hash string, at time.Time) error
}

// SessionStore reads mentoring sessions owned by the booking subsystem
type SessionStore interface {
	Get(ctx context.Context, id string) (*models.MentoringSession, error)

	// Upsert records a session reported by the booking subsystem.
	// Feedback flags on an existing row are left untouched.
	Upsert(ctx context.Context, session *models.MentoringSession) error

	// ListCreatedBetween returns sessions with from <= created_at <= to
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*models.MentoringSession, error)
}

// FeedbackStore persists feedback requests and responses
type FeedbackStore interface {
	// CreateRequestIfAbsent inserts req unless a request with the same id
	// exists. Either way the stored request is returned.
	CreateRequestIfAbsent(ctx context.Context, req *models.FeedbackRequest) (stored *models.FeedbackRequest, created bool, err error)

	GetRequest(ctx context.Context, id string) (*models.FeedbackRequest, error)

	GetRequestByToken(ctx context.Context, token string) (*models.FeedbackRequest, error)

	ListRequestsBySession(ctx context.Context, sessionID string) ([]*models.FeedbackRequest, error)

	MarkRequestSent(ctx context.Context, id string, at time.Time) error

	// SubmitResponse stores resp, marks its request submitted and mirrors the
	// flag onto the session, all or nothing. Returns ErrAlreadySubmitted if
	// the request was submitted before.
	SubmitResponse(ctx context.Context, resp *models.FeedbackResponse) error

	ListResponsesBySession(ctx context.Context, sessionID string) ([]*models.FeedbackResponse, error)
}

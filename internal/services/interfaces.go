package services

import (
	"context"
	"time"

	"github.com/fundopatronos/carreiras-api/internal/models"
)

// Notifier renders and delivers transactional emails
type Notifier interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendApprovalConfirmation(ctx context.Context, to, name string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
	SendFeedbackRequest(ctx context.Context, req *models.FeedbackRequest, otherPartyName string) error
}

// ResetLimiter decides whether another reset email may go to an address
type ResetLimiter interface {
	Allow(email string) bool
	Forget(email string)
}

// LifecycleServiceInterface defines the identity lifecycle operations
type LifecycleServiceInterface interface {
	Register(ctx context.Context, req *RegisterInput) (*models.Identity, error)
	Approve(ctx context.Context, adminUID, uid string) (*models.Identity, error)
	Reject(ctx context.Context, adminUID, uid string) (*models.Identity, error)
	ResendConfirmation(ctx context.Context, adminUID, uid string) (*models.Identity, bool, error)
	SendOwnVerification(ctx context.Context, uid string) (bool, error)
	RedeemConfirmation(ctx context.Context, token string) (*models.Identity, error)
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, token, password string) error
	ListPending(ctx context.Context) ([]*models.Identity, error)
	GetIdentity(ctx context.Context, uid string) (*models.Identity, error)
	Authorize(ctx context.Context, uid string, requireAdmin bool) (*models.Identity, error)
}

// FeedbackServiceInterface defines the feedback collection operations
type FeedbackServiceInterface interface {
	GetFormContext(ctx context.Context, token string) (*models.FeedbackFormContext, error)
	Submit(ctx context.Context, token string, payload models.FeedbackPayload) error
	DispatchNow(ctx context.Context, sessionID string) (*DispatchResult, error)
	EnsureForSession(ctx context.Context, session *models.MentoringSession) (*EnsureResult, error)
	GetSessionSummary(ctx context.Context, sessionID string) (*models.SessionFeedbackSummary, error)
	ProcessDue(ctx context.Context, now time.Time) (*models.SweepResult, error)
}

var (
	_ LifecycleServiceInterface = (*LifecycleService)(nil)
	_ FeedbackServiceInterface  = (*FeedbackService)(nil)
)

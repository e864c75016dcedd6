package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/internal/repository"
	"github.com/fundopatronos/carreiras-api/pkg/events"
	"github.com/fundopatronos/carreiras-api/pkg/logger"
	"github.com/fundopatronos/carreiras-api/pkg/metrics"
	"github.com/fundopatronos/carreiras-api/pkg/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	// bcrypt ignores everything past 72 bytes
	maxPasswordLength = 72
)

// RegisterInput carries a freshly created provider account. UID and Email
// come from the verified bearer token, never from the request body.
type RegisterInput struct {
	UID         string
	Email       string
	DisplayName string
	Role        models.Role
	Channel     models.Channel
	IsAdmin     bool
}

// LifecycleDeps wires a LifecycleService
type LifecycleDeps struct {
	Identities   repository.IdentityStore
	Credentials  repository.CredentialStore
	Verification *TokenLedger
	Reset        *TokenLedger
	Notifier     Notifier
	Publisher    events.Publisher
	Throttle     ResetLimiter
	Policy       *ApprovalPolicy
	Now          Clock
}

// LifecycleService owns identity status transitions, confirmation links and
// password resets
type LifecycleService struct {
	identities   repository.IdentityStore
	credentials  repository.CredentialStore
	verification *TokenLedger
	reset        *TokenLedger
	notifier     Notifier
	publisher    events.Publisher
	throttle     ResetLimiter
	policy       *ApprovalPolicy
	now          Clock
	hashCost     int
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(deps LifecycleDeps) *LifecycleService {
	s := &LifecycleService{
		identities:   deps.Identities,
		credentials:  deps.Credentials,
		verification: deps.Verification,
		reset:        deps.Reset,
		notifier:     deps.Notifier,
		publisher:    deps.Publisher,
		throttle:     deps.Throttle,
		policy:       deps.Policy,
		now:          deps.Now,
		hashCost:     bcrypt.DefaultCost,
	}
	if s.publisher == nil {
		s.publisher = events.NoopPublisher{}
	}
	if s.policy == nil {
		s.policy = NewApprovalPolicy(nil)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Register records a new identity with the status chosen by the approval
// policy. Registering an existing uid again returns the stored identity
// unchanged.
func (s *LifecycleService) Register(ctx context.Context, in *RegisterInput) (identity *models.Identity, err error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Register",
		attribute.String("role", string(in.Role)),
		attribute.String("channel", string(in.Channel)))
	defer func() { tracing.EndSpan(span, err) }()

	if strings.TrimSpace(in.UID) == "" {
		return nil, &ValidationError{Field: "uid", Message: "is required"}
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "is required"}
	}
	if !in.Role.Valid() {
		return nil, &ValidationError{Field: "role", Message: "must be applicant or mentor"}
	}
	if !in.Channel.Valid() {
		return nil, &ValidationError{Field: "channel", Message: "must be password, federated or link"}
	}

	status := s.policy.EvaluateInitialStatus(email, in.Role, in.Channel)
	now := s.now()

	stored, created, err := s.identities.Create(ctx, &models.Identity{
		UID:         in.UID,
		Email:       email,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Role:        in.Role,
		Channel:     in.Channel,
		Status:      status,
		IsAdmin:     in.IsAdmin,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}
	if !created {
		logger.Info("Identity already registered",
			zap.String("uid", stored.UID),
			zap.String("status", string(stored.Status)))
		return stored, nil
	}

	metrics.IdentityRegistrations.WithLabelValues(string(stored.Role), string(stored.Status)).Inc()
	logger.Info("Identity registered",
		zap.String("uid", stored.UID),
		zap.String("role", string(stored.Role)),
		zap.String("channel", string(stored.Channel)),
		zap.String("status", string(stored.Status)))

	emailSent := false
	if stored.Status == models.StatusPendingConfirmation {
		emailSent = s.sendVerification(ctx, stored)
	}

	s.publish(ctx, events.New(events.IdentityRegistered, stored.UID, map[string]any{
		"role":       stored.Role,
		"channel":    stored.Channel,
		"status":     stored.Status,
		"email_sent": emailSent,
	}))

	return stored, nil
}

// Approve moves a pending_approval identity to active and tells the user
func (s *LifecycleService) Approve(ctx context.Context, adminUID, uid string) (identity *models.Identity, err error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Approve", attribute.String("uid", uid))
	defer func() { tracing.EndSpan(span, err) }()

	identity, err = s.transition(ctx, uid, models.EventApprove, models.StatusPendingApproval, models.StatusActive, adminUID)
	if err != nil {
		return nil, err
	}

	emailSent := true
	if sendErr := s.notifier.SendApprovalConfirmation(ctx, identity.Email, identity.DisplayName); sendErr != nil {
		emailSent = false
		logger.Warn("Failed to send approval confirmation",
			zap.String("uid", uid),
			zap.Error(sendErr))
	}

	s.publish(ctx, events.New(events.IdentityApproved, uid, map[string]any{
		"actor":      adminUID,
		"role":       identity.Role,
		"email_sent": emailSent,
	}))

	return identity, nil
}

// Reject moves a pending_approval identity to suspended
func (s *LifecycleService) Reject(ctx context.Context, adminUID, uid string) (identity *models.Identity, err error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Reject", attribute.String("uid", uid))
	defer func() { tracing.EndSpan(span, err) }()

	identity, err = s.transition(ctx, uid, models.EventReject, models.StatusPendingApproval, models.StatusSuspended, adminUID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.IdentityRejected, uid, map[string]any{
		"actor": adminUID,
		"role":  identity.Role,
	}))

	return identity, nil
}

// ResendConfirmation rotates the verification tokens of a
// pending_confirmation identity and emails a fresh link. The boolean reports
// whether the email was accepted by the provider.
func (s *LifecycleService) ResendConfirmation(ctx context.Context, adminUID, uid string) (identity *models.Identity, emailSent bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.ResendConfirmation", attribute.String("uid", uid))
	defer func() { tracing.EndSpan(span, err) }()

	identity, err = s.transition(ctx, uid, models.EventResendConfirmation,
		models.StatusPendingConfirmation, models.StatusPendingConfirmation, adminUID)
	if err != nil {
		return nil, false, err
	}

	emailSent, err = s.rotateVerification(ctx, identity)
	if err != nil {
		return nil, false, err
	}

	s.publish(ctx, events.New(events.VerificationResent, uid, map[string]any{
		"actor":      adminUID,
		"email_sent": emailSent,
	}))

	return identity, emailSent, nil
}

// SendOwnVerification lets a pending_confirmation user ask for a new link
func (s *LifecycleService) SendOwnVerification(ctx context.Context, uid string) (emailSent bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.SendOwnVerification", attribute.String("uid", uid))
	defer func() { tracing.EndSpan(span, err) }()

	identity, err := s.GetIdentity(ctx, uid)
	if err != nil {
		return false, err
	}
	if identity.Status != models.StatusPendingConfirmation {
		return false, ErrUserNotPendingConfirmation
	}

	emailSent, err = s.rotateVerification(ctx, identity)
	if err != nil {
		return false, err
	}

	s.publish(ctx, events.New(events.VerificationResent, uid, map[string]any{
		"actor":      uid,
		"email_sent": emailSent,
	}))

	return emailSent, nil
}

// RedeemConfirmation consumes a verification token and activates its
// subject. Redeeming for an already active identity succeeds without a
// transition. The token stays consumed even if the status update fails.
func (s *LifecycleService) RedeemConfirmation(ctx context.Context, token string) (identity *models.Identity, err error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.RedeemConfirmation")
	defer func() { tracing.EndSpan(span, err) }()

	redeemed, err := s.verification.Redeem(ctx, token)
	if err != nil {
		return nil, err
	}

	identity, err = s.GetIdentity(ctx, redeemed.SubjectUID)
	if err != nil {
		return nil, err
	}

	switch identity.Status {
	case models.StatusActive:
		metrics.StatusTransitions.WithLabelValues(string(models.EventConfirm), "noop").Inc()
		return identity, nil
	case models.StatusPendingConfirmation:
	default:
		metrics.StatusTransitions.WithLabelValues(string(models.EventConfirm), "rejected").Inc()
		return nil, &TransitionError{From: identity.Status, Event: models.EventConfirm}
	}

	identity, err = s.transition(ctx, identity.UID, models.EventConfirm,
		models.StatusPendingConfirmation, models.StatusActive, identity.UID)
	var terr *TransitionError
	if errors.As(err, &terr) && terr.From == models.StatusActive {
		// Lost the race to another redemption for the same identity
		return s.GetIdentity(ctx, redeemed.SubjectUID)
	}
	if err != nil {
		logger.Error("Verification token consumed but activation failed",
			zap.String("uid", redeemed.SubjectUID),
			zap.Error(err))
		return nil, err
	}

	s.publish(ctx, events.New(events.IdentityConfirmed, identity.UID, map[string]any{
		"role": identity.Role,
	}))

	return identity, nil
}

// RequestPasswordReset emails a reset link if email belongs to a known
// identity. The caller always gets the same answer so account existence is
// never revealed; only infrastructure failures are returned.
func (s *LifecycleService) RequestPasswordReset(ctx context.Context, email string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.RequestPasswordReset")
	defer func() { tracing.EndSpan(span, err) }()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}

	if s.throttle != nil && !s.throttle.Allow(email) {
		metrics.PasswordResetRequests.WithLabelValues("throttled").Inc()
		return nil
	}

	identity, err := s.identities.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.PasswordResetRequests.WithLabelValues("unknown_email").Inc()
		logger.Info("Password reset requested for unknown email")
		return nil
	}
	if err != nil {
		s.forgetThrottle(email)
		return fmt.Errorf("failed to look up identity: %w", err)
	}
	if identity.Status == models.StatusSuspended {
		metrics.PasswordResetRequests.WithLabelValues("ineligible").Inc()
		logger.Info("Password reset requested for suspended identity", zap.String("uid", identity.UID))
		return nil
	}

	if _, err = s.reset.InvalidateAllForSubject(ctx, identity.UID); err != nil {
		s.forgetThrottle(email)
		return err
	}
	token, err := s.reset.Issue(ctx, identity.UID, identity.Email, nil)
	if err != nil {
		s.forgetThrottle(email)
		return err
	}

	if sendErr := s.notifier.SendPasswordReset(ctx, identity.Email, identity.DisplayName, token.Token); sendErr != nil {
		s.forgetThrottle(email)
		metrics.PasswordResetRequests.WithLabelValues("delivery_failed").Inc()
		logger.Warn("Failed to send password reset email",
			zap.String("uid", identity.UID),
			zap.Error(sendErr))
		return nil
	}

	metrics.PasswordResetRequests.WithLabelValues("sent").Inc()
	s.publish(ctx, events.New(events.PasswordResetRequested, identity.UID, nil))
	return nil
}

// CompletePasswordReset redeems a reset token and stores the new password hash
func (s *LifecycleService) CompletePasswordReset(ctx context.Context, token, password string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.CompletePasswordReset")
	defer func() { tracing.EndSpan(span, err) }()

	if len(password) < minPasswordLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	if len(password) > maxPasswordLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("must be at most %d bytes", maxPasswordLength)}
	}

	redeemed, err := s.reset.Redeem(ctx, token)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err = s.credentials.SetPasswordHash(ctx, redeemed.SubjectUID, string(hash), s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to store password: %w", err)
	}

	// Any other outstanding link for this subject is now stale
	if _, invErr := s.reset.InvalidateAllForSubject(ctx, redeemed.SubjectUID); invErr != nil {
		logger.Warn("Failed to invalidate remaining reset tokens",
			zap.String("uid", redeemed.SubjectUID),
			zap.Error(invErr))
	}

	logger.Info("Password reset completed", zap.String("uid", redeemed.SubjectUID))
	s.publish(ctx, events.New(events.PasswordResetCompleted, redeemed.SubjectUID, nil))
	return nil
}

// ListPending returns identities awaiting approval or confirmation, newest first
func (s *LifecycleService) ListPending(ctx context.Context) ([]*models.Identity, error) {
	identities, err := s.identities.ListByStatus(ctx, models.StatusPendingApproval, models.StatusPendingConfirmation)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending identities: %w", err)
	}
	return identities, nil
}

// GetIdentity loads an identity by uid
func (s *LifecycleService) GetIdentity(ctx context.Context, uid string) (*models.Identity, error) {
	identity, err := s.identities.GetByUID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	return identity, nil
}

// Authorize loads uid and applies the access gate
func (s *LifecycleService) Authorize(ctx context.Context, uid string, requireAdmin bool) (*models.Identity, error) {
	identity, err := s.GetIdentity(ctx, uid)
	if err != nil {
		return nil, err
	}
	if err := CheckAccess(identity, requireAdmin); err != nil {
		return nil, err
	}
	return identity, nil
}

// CheckAccess lets only active identities through. Admin rights are checked
// after the status, so a suspended admin is still denied.
func CheckAccess(identity *models.Identity, requireAdmin bool) error {
	var reason string
	switch identity.Status {
	case models.StatusActive:
	case models.StatusPendingApproval:
		reason = "Sua conta está pendente de aprovação"
	case models.StatusPendingConfirmation:
		reason = "Por favor, verifique seu email"
	case models.StatusSuspended:
		reason = "Sua conta foi suspensa"
	default:
		reason = "Status de conta inválido"
	}
	if reason != "" {
		metrics.AccessDenials.WithLabelValues(string(identity.Status)).Inc()
		return &AccessDeniedError{Status: identity.Status, Reason: reason}
	}

	if requireAdmin && !identity.IsAdmin {
		metrics.AccessDenials.WithLabelValues("not_admin").Inc()
		return &AccessDeniedError{Status: identity.Status, Reason: "Acesso restrito a administradores"}
	}
	return nil
}

// transition applies event to uid when its status equals from. The
// conditional write means a concurrent transition is never overwritten; the
// loser gets a TransitionError carrying the status it lost to.
func (s *LifecycleService) transition(ctx context.Context, uid string, event models.LifecycleEvent, from, to models.Status, actor string) (*models.Identity, error) {
	identity, err := s.GetIdentity(ctx, uid)
	if err != nil {
		return nil, err
	}
	if identity.Status != from {
		metrics.StatusTransitions.WithLabelValues(string(event), "rejected").Inc()
		return nil, &TransitionError{From: identity.Status, Event: event}
	}

	t := &models.StatusTransition{
		ID:    uuid.NewString(),
		UID:   uid,
		From:  from,
		To:    to,
		Event: event,
		Actor: actor,
		At:    s.now(),
	}

	err = s.identities.TransitionStatus(ctx, from, t)
	if errors.Is(err, repository.ErrStatusMismatch) {
		metrics.StatusTransitions.WithLabelValues(string(event), "conflict").Inc()
		current, getErr := s.GetIdentity(ctx, uid)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &TransitionError{From: current.Status, Event: event}
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		metrics.StatusTransitions.WithLabelValues(string(event), "error").Inc()
		return nil, fmt.Errorf("failed to %s identity: %w", event, err)
	}

	metrics.StatusTransitions.WithLabelValues(string(event), "success").Inc()
	logger.Info("Identity status changed",
		zap.String("uid", uid),
		zap.String("event", string(event)),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor))

	identity.Status = to
	identity.UpdatedAt = t.At
	return identity, nil
}

// rotateVerification invalidates outstanding verification links, issues a
// new one and emails it. Storage failures are returned; delivery failures
// only flip the boolean.
func (s *LifecycleService) rotateVerification(ctx context.Context, identity *models.Identity) (bool, error) {
	n, err := s.verification.InvalidateAllForSubject(ctx, identity.UID)
	if err != nil {
		return false, err
	}
	if n > 0 {
		logger.Debug("Previous verification tokens invalidated",
			zap.String("uid", identity.UID),
			zap.Int("count", n))
	}

	token, err := s.verification.Issue(ctx, identity.UID, identity.Email, map[string]string{"role": string(identity.Role)})
	if err != nil {
		return false, err
	}

	if err := s.notifier.SendVerification(ctx, identity.Email, identity.DisplayName, token.Token); err != nil {
		logger.Warn("Failed to send verification email",
			zap.String("uid", identity.UID),
			zap.Error(err))
		return false, nil
	}
	return true, nil
}

// sendVerification issues a first link at registration. Nothing here may
// fail the registration itself.
func (s *LifecycleService) sendVerification(ctx context.Context, identity *models.Identity) bool {
	token, err := s.verification.Issue(ctx, identity.UID, identity.Email, map[string]string{"role": string(identity.Role)})
	if err != nil {
		logger.Error("Failed to issue verification token",
			zap.String("uid", identity.UID),
			zap.Error(err))
		return false
	}

	if err := s.notifier.SendVerification(ctx, identity.Email, identity.DisplayName, token.Token); err != nil {
		logger.Warn("Failed to send verification email",
			zap.String("uid", identity.UID),
			zap.Error(err))
		return false
	}
	return true
}

func (s *LifecycleService) forgetThrottle(email string) {
	if s.throttle != nil {
		s.throttle.Forget(email)
	}
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish event",
			zap.String("event", event.Name),
			zap.Error(err))
	}
}

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
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	// FeedbackTokenBytes is the entropy of feedback form tokens
	FeedbackTokenBytes = 16

	// DefaultSweepDaysAgo is how old a session is when the sweep asks for feedback
	DefaultSweepDaysAgo = 5

	triggerSweep = "sweep"
	triggerAdmin = "admin"
)

// FeedbackDeps wires a FeedbackService
type FeedbackDeps struct {
	Sessions     repository.SessionStore
	Feedback     repository.FeedbackStore
	Notifier     Notifier
	Publisher    events.Publisher
	Now          Clock
	NewToken     TokenGenerator
	SweepDaysAgo int
}

// EnsureResult holds the form tokens of a session's two requests
type EnsureResult struct {
	StudentToken string
	MentorToken  string
}

// DispatchResult reports which roles received an email in this call
type DispatchResult struct {
	StudentSent bool
	MentorSent  bool
}

// Sent returns the number of emails delivered
func (r *DispatchResult) Sent() int {
	n := 0
	if r.StudentSent {
		n++
	}
	if r.MentorSent {
		n++
	}
	return n
}

func (r *DispatchResult) set(role models.RecipientRole) {
	if role == models.RecipientMentor {
		r.MentorSent = true
	} else {
		r.StudentSent = true
	}
}

// FeedbackService creates feedback requests for mentoring sessions, emails
// them and records the answers
type FeedbackService struct {
	sessions     repository.SessionStore
	feedback     repository.FeedbackStore
	notifier     Notifier
	publisher    events.Publisher
	now          Clock
	newToken     TokenGenerator
	sweepDaysAgo int
}

// NewFeedbackService creates a new FeedbackService
func NewFeedbackService(deps FeedbackDeps) *FeedbackService {
	s := &FeedbackService{
		sessions:     deps.Sessions,
		feedback:     deps.Feedback,
		notifier:     deps.Notifier,
		publisher:    deps.Publisher,
		now:          deps.Now,
		newToken:     deps.NewToken,
		sweepDaysAgo: deps.SweepDaysAgo,
	}
	if s.publisher == nil {
		s.publisher = events.NoopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newToken == nil {
		s.newToken = RandomHex(FeedbackTokenBytes)
	}
	if s.sweepDaysAgo <= 0 {
		s.sweepDaysAgo = DefaultSweepDaysAgo
	}
	return s
}

// EnsureRequestsForSession makes sure the session has one request per role.
// Existing requests are returned as stored; tokens are never re-issued.
func (s *FeedbackService) EnsureRequestsForSession(ctx context.Context, session *models.MentoringSession) (*EnsureResult, error) {
	requests, err := s.ensureRequests(ctx, session)
	if err != nil {
		return nil, err
	}
	return &EnsureResult{
		StudentToken: requests[models.RecipientStudent].Token,
		MentorToken:  requests[models.RecipientMentor].Token,
	}, nil
}

func (s *FeedbackService) ensureRequests(ctx context.Context, session *models.MentoringSession) (map[models.RecipientRole]*models.FeedbackRequest, error) {
	out := make(map[models.RecipientRole]*models.FeedbackRequest, len(models.RecipientRoles))

	for _, role := range models.RecipientRoles {
		req, err := s.ensureRequest(ctx, session, role)
		if err != nil {
			return nil, err
		}
		out[role] = req
	}
	return out, nil
}

func (s *FeedbackService) ensureRequest(ctx context.Context, session *models.MentoringSession, role models.RecipientRole) (*models.FeedbackRequest, error) {
	id := models.FeedbackRequestID(session.ID, role)

	existing, err := s.feedback.GetRequest(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load feedback request %s: %w", id, err)
	}

	email, name := session.Recipient(role)
	for attempt := 1; ; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return nil, err
		}

		stored, created, err := s.feedback.CreateRequestIfAbsent(ctx, &models.FeedbackRequest{
			ID:             id,
			SessionID:      session.ID,
			RecipientRole:  role,
			RecipientEmail: email,
			RecipientName:  name,
			Token:          token,
			CreatedAt:      s.now(),
		})
		if errors.Is(err, repository.ErrDuplicate) && attempt < maxIssueAttempts {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create feedback request %s: %w", id, err)
		}

		if created {
			metrics.FeedbackRequestsCreated.WithLabelValues(string(role)).Inc()
			logger.Info("Feedback request created",
				zap.String("session_id", session.ID),
				zap.String("role", string(role)))
		}
		return stored, nil
	}
}

// Dispatch ensures both requests exist and emails each role independently.
// A request is marked sent only after its email was accepted. Without force,
// roles already emailed or already answered are skipped. Delivery failures
// are joined into the returned error alongside a populated result.
func (s *FeedbackService) Dispatch(ctx context.Context, session *models.MentoringSession, force bool) (*DispatchResult, error) {
	trigger := triggerSweep
	if force {
		trigger = triggerAdmin
	}

	requests, err := s.ensureRequests(ctx, session)
	if err != nil {
		return nil, err
	}

	result := &DispatchResult{}
	var errs []error

	for _, role := range models.RecipientRoles {
		req := requests[role]

		if !force && (req.EmailSent || req.Submitted || session.FeedbackSubmitted(role)) {
			metrics.FeedbackEmails.WithLabelValues(trigger, "skipped").Inc()
			continue
		}

		if err := s.notifier.SendFeedbackRequest(ctx, req, session.OtherPartyName(role)); err != nil {
			metrics.FeedbackEmails.WithLabelValues(trigger, "failed").Inc()
			logger.Warn("Failed to send feedback request",
				zap.String("session_id", session.ID),
				zap.String("role", string(role)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s email: %w", role, err))
			continue
		}

		metrics.FeedbackEmails.WithLabelValues(trigger, "sent").Inc()
		result.set(role)

		if err := s.feedback.MarkRequestSent(ctx, req.ID, s.now()); err != nil {
			// The email went out; a later sweep may send it again
			logger.Error("Failed to mark feedback request sent",
				zap.String("request_id", req.ID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s mark sent: %w", role, err))
		}
	}

	return result, errors.Join(errs...)
}

// DispatchNow sends both feedback emails for a session immediately, even if
// they were sent before
func (s *FeedbackService) DispatchNow(ctx context.Context, sessionID string) (result *DispatchResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "feedback.DispatchNow", attribute.String("session_id", sessionID))
	defer func() { tracing.EndSpan(span, err) }()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result, dispatchErr := s.Dispatch(ctx, session, true)
	if result == nil {
		return nil, dispatchErr
	}
	if dispatchErr != nil {
		logger.Warn("Feedback dispatch incomplete",
			zap.String("session_id", sessionID),
			zap.Error(dispatchErr))
	}

	s.publish(ctx, events.New(events.FeedbackRequestsSent, sessionID, map[string]any{
		"trigger":            triggerAdmin,
		"student_email_sent": result.StudentSent,
		"mentor_email_sent":  result.MentorSent,
	}))

	return result, nil
}

// EnsureForSession records a session reported by the booking subsystem and
// creates its feedback requests
func (s *FeedbackService) EnsureForSession(ctx context.Context, session *models.MentoringSession) (result *EnsureResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "feedback.EnsureForSession", attribute.String("session_id", session.ID))
	defer func() { tracing.EndSpan(span, err) }()

	if err = validateSession(session); err != nil {
		return nil, err
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}

	if err = s.sessions.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return s.EnsureRequestsForSession(ctx, session)
}

func validateSession(session *models.MentoringSession) error {
	switch {
	case strings.TrimSpace(session.ID) == "":
		return &ValidationError{Field: "sessionId", Message: "is required"}
	case strings.TrimSpace(session.StudentEmail) == "":
		return &ValidationError{Field: "studentEmail", Message: "is required"}
	case strings.TrimSpace(session.MentorEmail) == "":
		return &ValidationError{Field: "mentorEmail", Message: "is required"}
	}
	return nil
}

// ProcessDue emails feedback requests for every session created on the UTC
// day sweepDaysAgo before now. Sessions whose two requests were both sent
// already are skipped. Per-session failures are collected, never fatal.
func (s *FeedbackService) ProcessDue(ctx context.Context, now time.Time) (result *models.SweepResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "feedback.ProcessDue")
	defer func() { tracing.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		metrics.FeedbackSweepDuration.Observe(metrics.MeasureDuration(start))
	}()

	from, to := SweepWindow(now, s.sweepDaysAgo)
	sessions, err := s.sessions.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	result = &models.SweepResult{Errors: []string{}}

	for _, session := range sessions {
		done, err := s.alreadyDispatched(ctx, session.ID)
		if err != nil {
			metrics.FeedbackSweepSessions.WithLabelValues("failed").Inc()
			result.Errors = append(result.Errors, fmt.Sprintf("Session %s: %v", session.ID, err))
			continue
		}
		if done {
			metrics.FeedbackSweepSessions.WithLabelValues("skipped").Inc()
			continue
		}

		dispatched, err := s.Dispatch(ctx, session, false)
		if dispatched == nil {
			metrics.FeedbackSweepSessions.WithLabelValues("failed").Inc()
			result.Errors = append(result.Errors, fmt.Sprintf("Session %s: %v", session.ID, err))
			continue
		}

		metrics.FeedbackSweepSessions.WithLabelValues("processed").Inc()
		result.SessionsProcessed++
		result.EmailsSent += dispatched.Sent()
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Session %s: %v", session.ID, err))
		}
	}

	logger.Info("Feedback sweep finished",
		zap.Time("window_start", from),
		zap.Time("window_end", to),
		zap.Int("sessions_found", len(sessions)),
		zap.Int("sessions_processed", result.SessionsProcessed),
		zap.Int("emails_sent", result.EmailsSent),
		zap.Int("errors", len(result.Errors)))

	s.publish(ctx, events.New(events.FeedbackBatchProcessed, "system", map[string]any{
		"sessions_processed": result.SessionsProcessed,
		"emails_sent":        result.EmailsSent,
		"errors_count":       len(result.Errors),
	}))

	return result, nil
}

// SweepWindow returns the first and last instant of the UTC calendar day
// daysAgo days before now
func SweepWindow(now time.Time, daysAgo int) (from, to time.Time) {
	day := now.UTC().AddDate(0, 0, -daysAgo)
	from = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to = from.Add(24*time.Hour - time.Nanosecond)
	return from, to
}

func (s *FeedbackService) alreadyDispatched(ctx context.Context, sessionID string) (bool, error) {
	requests, err := s.feedback.ListRequestsBySession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to list feedback requests: %w", err)
	}
	if len(requests) < len(models.RecipientRoles) {
		return false, nil
	}
	for _, req := range requests {
		if !req.EmailSent {
			return false, nil
		}
	}
	return true, nil
}

// GetFormContext resolves a form token into what the public page renders.
// An answered request reports AlreadySubmitted without naming anyone.
func (s *FeedbackService) GetFormContext(ctx context.Context, token string) (*models.FeedbackFormContext, error) {
	req, err := s.requestByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if req.Submitted {
		return &models.FeedbackFormContext{
			SessionID:        req.SessionID,
			RecipientRole:    req.RecipientRole,
			RecipientName:    req.RecipientName,
			AlreadySubmitted: true,
		}, nil
	}

	session, err := s.getSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	return &models.FeedbackFormContext{
		SessionID:      req.SessionID,
		RecipientRole:  req.RecipientRole,
		RecipientName:  req.RecipientName,
		OtherPartyName: session.OtherPartyName(req.RecipientRole),
	}, nil
}

// Submit records the answer for the request behind token. The response, the
// request's submitted flag and the session mirror flag are written together.
func (s *FeedbackService) Submit(ctx context.Context, token string, payload models.FeedbackPayload) (err error) {
	ctx, span := tracing.StartSpan(ctx, "feedback.Submit")
	defer func() { tracing.EndSpan(span, err) }()

	req, err := s.requestByToken(ctx, token)
	if err != nil {
		metrics.FeedbackSubmissions.WithLabelValues("invalid_token").Inc()
		return err
	}
	if req.Submitted {
		metrics.FeedbackSubmissions.WithLabelValues("already_submitted").Inc()
		return ErrAlreadySubmitted
	}

	if err = ValidateFeedbackPayload(payload); err != nil {
		metrics.FeedbackSubmissions.WithLabelValues("invalid").Inc()
		return err
	}

	resp := &models.FeedbackResponse{
		ID:              req.ID,
		SessionID:       req.SessionID,
		RequestID:       req.ID,
		RespondentRole:  req.RecipientRole,
		RespondentEmail: req.RecipientEmail,
		RespondentName:  req.RecipientName,
		MeetingStatus:   payload.MeetingStatus,
		AdditionalNotes: trimmedOrNil(payload.AdditionalNotes),
		SubmittedAt:     s.now(),
	}
	switch payload.MeetingStatus {
	case models.MeetingHappened:
		rating := *payload.Rating
		resp.Rating = &rating
	case models.MeetingNotHappened:
		resp.NoMeetingReason = trimmedOrNil(payload.NoMeetingReason)
	}

	err = s.feedback.SubmitResponse(ctx, resp)
	switch {
	case errors.Is(err, repository.ErrAlreadySubmitted):
		metrics.FeedbackSubmissions.WithLabelValues("already_submitted").Inc()
		return ErrAlreadySubmitted
	case errors.Is(err, repository.ErrNotFound):
		metrics.FeedbackSubmissions.WithLabelValues("invalid_token").Inc()
		return ErrFeedbackTokenNotFound
	case err != nil:
		metrics.FeedbackSubmissions.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to store feedback: %w", err)
	}

	metrics.FeedbackSubmissions.WithLabelValues("success").Inc()
	logger.Info("Feedback submitted",
		zap.String("session_id", req.SessionID),
		zap.String("role", string(req.RecipientRole)),
		zap.String("meeting_status", string(payload.MeetingStatus)))

	s.publish(ctx, events.New(events.FeedbackSubmitted, req.SessionID, map[string]any{
		"role":           req.RecipientRole,
		"meeting_status": payload.MeetingStatus,
		"has_rating":     resp.Rating != nil,
	}))

	return nil
}

// ValidateFeedbackPayload checks the fields required by the meeting status
func ValidateFeedbackPayload(p models.FeedbackPayload) error {
	if !p.MeetingStatus.Valid() {
		return &ValidationError{Field: "meetingStatus", Message: "Status do encontro inválido"}
	}
	if p.Rating != nil && (*p.Rating < 1 || *p.Rating > 5) {
		return &ValidationError{Field: "rating", Message: "Avaliação deve estar entre 1 e 5"}
	}

	switch p.MeetingStatus {
	case models.MeetingHappened:
		if p.Rating == nil {
			return &ValidationError{Field: "rating", Message: "Avaliação é obrigatória quando o encontro aconteceu"}
		}
	case models.MeetingNotHappened:
		if trimmedOrNil(p.NoMeetingReason) == nil {
			return &ValidationError{Field: "noMeetingReason", Message: "Motivo é obrigatório quando o encontro não aconteceu"}
		}
	}
	return nil
}

// GetSessionSummary returns a session's requests and answers for admins
func (s *FeedbackService) GetSessionSummary(ctx context.Context, sessionID string) (*models.SessionFeedbackSummary, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	requests, err := s.feedback.ListRequestsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback requests: %w", err)
	}
	responses, err := s.feedback.ListResponsesBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback responses: %w", err)
	}

	summary := &models.SessionFeedbackSummary{
		SessionID:        session.ID,
		StudentName:      session.StudentName,
		StudentEmail:     session.StudentEmail,
		MentorName:       session.MentorName,
		MentorEmail:      session.MentorEmail,
		SessionCreatedAt: session.CreatedAt,
	}
	for _, req := range requests {
		if req.RecipientRole == models.RecipientMentor {
			summary.MentorFeedbackSent = req.EmailSent
		} else {
			summary.StudentFeedbackSent = req.EmailSent
		}
	}
	for _, resp := range responses {
		if resp.RespondentRole == models.RecipientMentor {
			summary.MentorFeedback = resp
		} else {
			summary.StudentFeedback = resp
		}
	}

	return summary, nil
}

func (s *FeedbackService) requestByToken(ctx context.Context, token string) (*models.FeedbackRequest, error) {
	if token == "" {
		return nil, ErrFeedbackTokenNotFound
	}
	req, err := s.feedback.GetRequestByToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Warn("Unknown feedback token", logger.TokenPrefix(token))
		return nil, ErrFeedbackTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback request: %w", err)
	}
	return req, nil
}

func (s *FeedbackService) getSession(ctx context.Context, id string) (*models.MentoringSession, error) {
	session, err := s.sessions.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

func (s *FeedbackService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish event",
			zap.String("event", event.Name),
			zap.Error(err))
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

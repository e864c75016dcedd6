package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/fundopatronos/carreiras-api/pkg/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	feedbackRequestColumns = `id, session_id, recipient_role, recipient_email, recipient_name, token,
	created_at, sent_at, email_sent, submitted`

	feedbackResponseColumns = `id, session_id, request_id, respondent_role, respondent_email, respondent_name,
	meeting_status, rating, reason, comment, submitted_at`
)

// FeedbackRepository handles feedback request and response data access
type FeedbackRepository struct {
	pool *pgxpool.Pool
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(pool *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{pool: pool}
}

func scanFeedbackRequest(row pgx.Row) (*models.FeedbackRequest, error) {
	var f models.FeedbackRequest
	err := row.Scan(&f.ID, &f.SessionID, &f.RecipientRole, &f.RecipientEmail, &f.RecipientName, &f.Token,
		&f.CreatedAt, &f.SentAt, &f.EmailSent, &f.Submitted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func scanFeedbackResponse(row pgx.Row) (*models.FeedbackResponse, error) {
	var f models.FeedbackResponse
	err := row.Scan(&f.ID, &f.SessionID, &f.RequestID, &f.RespondentRole, &f.RespondentEmail, &f.RespondentName,
		&f.MeetingStatus, &f.Rating, &f.NoMeetingReason, &f.AdditionalNotes, &f.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateRequestIfAbsent inserts the request unless its compound id exists
func (r *FeedbackRepository) CreateRequestIfAbsent(ctx context.Context, req *models.FeedbackRequest) (stored *models.FeedbackRequest, created bool, err error) {
	start := time.Now()
	defer func() { observe("feedback_request_create", start, err) }()

	query := `
		INSERT INTO feedback_requests (id, session_id, recipient_role, recipient_email, recipient_name, token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + feedbackRequestColumns

	stored, err = scanFeedbackRequest(r.pool.QueryRow(ctx, query,
		req.ID, req.SessionID, req.RecipientRole, req.RecipientEmail, req.RecipientName, req.Token, req.CreatedAt))
	if err == nil {
		return stored, true, nil
	}
	if db.IsUniqueViolation(err) {
		return nil, false, fmt.Errorf("feedback request %s: %w", req.ID, ErrDuplicate)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("failed to create feedback request: %w", err)
	}

	stored, err = r.GetRequest(ctx, req.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

// GetRequest fetches a request by compound id
func (r *FeedbackRepository) GetRequest(ctx context.Context, id string) (*models.FeedbackRequest, error) {
	f, err := scanFeedbackRequest(r.pool.QueryRow(ctx,
		`SELECT `+feedbackRequestColumns+` FROM feedback_requests WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get feedback request: %w", err)
	}
	return f, err
}

// GetRequestByToken fetches a request by its secret token
func (r *FeedbackRepository) GetRequestByToken(ctx context.Context, token string) (*models.FeedbackRequest, error) {
	f, err := scanFeedbackRequest(r.pool.QueryRow(ctx,
		`SELECT `+feedbackRequestColumns+` FROM feedback_requests WHERE token = $1`, token))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get feedback request by token: %w", err)
	}
	return f, err
}

// ListRequestsBySession returns the requests of a session
func (r *FeedbackRepository) ListRequestsBySession(ctx context.Context, sessionID string) ([]*models.FeedbackRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+feedbackRequestColumns+` FROM feedback_requests WHERE session_id = $1 ORDER BY recipient_role DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*models.FeedbackRequest, 0, 2)
	for rows.Next() {
		f, err := scanFeedbackRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback request: %w", err)
		}
		requests = append(requests, f)
	}
	return requests, rows.Err()
}

// MarkRequestSent records a successful delivery
func (r *FeedbackRepository) MarkRequestSent(ctx context.Context, id string, at time.Time) (err error) {
	start := time.Now()
	defer func() { observe("feedback_request_mark_sent", start, err) }()

	tag, err := r.pool.Exec(ctx,
		`UPDATE feedback_requests SET email_sent = TRUE, sent_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark feedback request sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SubmitResponse stores a response, flips the request's submitted flag and
// mirrors it onto the session inside one transaction
func (r *FeedbackRepository) SubmitResponse(ctx context.Context, resp *models.FeedbackResponse) (err error) {
	start := time.Now()
	defer func() { observe("feedback_submit", start, err) }()

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE feedback_requests SET submitted = TRUE WHERE id = $1 AND submitted = FALSE`, resp.RequestID)
		if err != nil {
			return fmt.Errorf("failed to mark feedback request submitted: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM feedback_requests WHERE id = $1)`, resp.RequestID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check feedback request: %w", err)
			}
			if !exists {
				return ErrNotFound
			}
			return ErrAlreadySubmitted
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO feedback_responses (`+feedbackResponseColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, resp.ID, resp.SessionID, resp.RequestID, resp.RespondentRole, resp.RespondentEmail, resp.RespondentName,
			resp.MeetingStatus, resp.Rating, resp.NoMeetingReason, resp.AdditionalNotes, resp.SubmittedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrAlreadySubmitted
			}
			return fmt.Errorf("failed to insert feedback response: %w", err)
		}

		mirror := `UPDATE mentoring_sessions SET student_feedback_submitted = TRUE WHERE id = $1`
		if resp.RespondentRole == models.RecipientMentor {
			mirror = `UPDATE mentoring_sessions SET mentor_feedback_submitted = TRUE WHERE id = $1`
		}
		if _, err := tx.Exec(ctx, mirror, resp.SessionID); err != nil {
			return fmt.Errorf("failed to mirror feedback flag on session: %w", err)
		}
		return nil
	})
}

// ListResponsesBySession returns the responses of a session
func (r *FeedbackRepository) ListResponsesBySession(ctx context.Context, sessionID string) ([]*models.FeedbackResponse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+feedbackResponseColumns+` FROM feedback_responses WHERE session_id = $1 ORDER BY submitted_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback responses: %w", err)
	}
	defer rows.Close()

	responses := make([]*models.FeedbackResponse, 0, 2)
	for rows.Next() {
		f, err := scanFeedbackResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback response: %w", err)
		}
		responses = append(responses, f)
	}
	return responses, rows.Err()
}

var _ FeedbackStore = (*FeedbackRepository)(nil)

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fundopatronos/carreiras-api/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, student_uid, student_email, student_name, mentor_uid, mentor_email, mentor_name,
	created_at, student_feedback_submitted, mentor_feedback_submitted`

// SessionRepository reads mentoring sessions
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*models.MentoringSession, error) {
	var s models.MentoringSession
	err := row.Scan(&s.ID, &s.StudentUID, &s.StudentEmail, &s.StudentName, &s.MentorUID, &s.MentorEmail, &s.MentorName,
		&s.CreatedAt, &s.StudentFeedbackSubmitted, &s.MentorFeedbackSubmitted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Get fetches a session by id
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.MentoringSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM mentoring_sessions WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, err
}

// Upsert records a session; feedback flags and creation time of an existing row are kept
func (r *SessionRepository) Upsert(ctx context.Context, s *models.MentoringSession) (err error) {
	start := time.Now()
	defer func() { observe("session_upsert", start, err) }()

	_, err = r.pool.Exec(ctx, `
		INSERT INTO mentoring_sessions (id, student_uid, student_email, student_name, mentor_uid, mentor_email, mentor_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			student_uid = EXCLUDED.student_uid,
			student_email = EXCLUDED.student_email,
			student_name = EXCLUDED.student_name,
			mentor_uid = EXCLUDED.mentor_uid,
			mentor_email = EXCLUDED.mentor_email,
			mentor_name = EXCLUDED.mentor_name
	`, s.ID, s.StudentUID, s.StudentEmail, s.StudentName, s.MentorUID, s.MentorEmail, s.MentorName, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// ListCreatedBetween returns sessions created within [from, to]
func (r *SessionRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) (sessions []*models.MentoringSession, err error) {
	start := time.Now()
	defer func() { observe("session_list_window", start, err) }()

	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM mentoring_sessions
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions = make([]*models.MentoringSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

var _ SessionStore = (*SessionRepository)(nil)

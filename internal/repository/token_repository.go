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

const tokenColumns = `token, purpose, subject_uid, subject_email, metadata, created_at, expires_at, used, used_at`

// TokenRepository handles verification token data access
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func scanToken(row pgx.Row) (*models.VerificationToken, error) {
	var t models.VerificationToken
	err := row.Scan(&t.Token, &t.Purpose, &t.SubjectUID, &t.SubjectEmail, &t.Metadata, &t.CreatedAt, &t.ExpiresAt, &t.Used, &t.UsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Insert stores a freshly issued token
func (r *TokenRepository) Insert(ctx context.Context, token *models.VerificationToken) (err error) {
	start := time.Now()
	defer func() { observe("token_insert", start, err) }()

	metadata := token.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO verification_tokens (token, purpose, subject_uid, subject_email, metadata, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, token.Token, token.Purpose, token.SubjectUID, token.SubjectEmail, metadata, token.CreatedAt, token.ExpiresAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert token: %w", err)
	}
	return nil
}

// Get fetches a token regardless of its state
func (r *TokenRepository) Get(ctx context.Context, purpose models.TokenPurpose, token string) (*models.VerificationToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM verification_tokens WHERE token = $1 AND purpose = $2`

	t, err := scanToken(r.pool.QueryRow(ctx, query, token, purpose))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return t, err
}

// Consume marks an unused, unexpired token as used. Only one concurrent
// caller can win the conditional update.
func (r *TokenRepository) Consume(ctx context.Context, purpose models.TokenPurpose, token string, at time.Time) (t *models.VerificationToken, err error) {
	start := time.Now()
	defer func() { observe("token_consume", start, err) }()

	query := `
		UPDATE verification_tokens
		SET used = TRUE, used_at = $3
		WHERE token = $1 AND purpose = $2 AND used = FALSE AND expires_at >= $3
		RETURNING ` + tokenColumns

	t, err = scanToken(r.pool.QueryRow(ctx, query, token, purpose, at))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotConsumed
		}
		return nil, fmt.Errorf("failed to consume token: %w", err)
	}
	return t, nil
}

// InvalidateForSubject marks all outstanding tokens of purpose for uid as used
func (r *TokenRepository) InvalidateForSubject(ctx context.Context, purpose models.TokenPurpose, uid string, at time.Time) (n int, err error) {
	start := time.Now()
	defer func() { observe("token_invalidate", start, err) }()

	tag, err := r.pool.Exec(ctx, `
		UPDATE verification_tokens
		SET used = TRUE, used_at = $3
		WHERE subject_uid = $1 AND purpose = $2 AND used = FALSE
	`, uid, purpose, at)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ TokenStore = (*TokenRepository)(nil)

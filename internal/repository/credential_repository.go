package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CredentialRepository stores password hashes
type CredentialRepository struct {
	pool *pgxpool.Pool
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(pool *pgxpool.Pool) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

// SetPasswordHash creates or replaces the password hash for uid
func (r *CredentialRepository) SetPasswordHash(ctx context.Context, uid, hash string, at time.Time) (err error) {
	start := time.Now()
	defer func() { observe("credential_set", start, err) }()

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO credentials (uid, password_hash, updated_at)
		SELECT uid, $2, $3 FROM identities WHERE uid = $1
		ON CONFLICT (uid) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at
	`, uid, hash, at)
	if err != nil {
		return fmt.Errorf("failed to store password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ CredentialStore = (*CredentialRepository)(nil)

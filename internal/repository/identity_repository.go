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

const identityColumns = `uid, email, display_name, role, channel, status, is_admin, created_at, updated_at`

// IdentityRepository handles identity data access
type IdentityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

func scanIdentity(row pgx.Row) (*models.Identity, error) {
	var i models.Identity
	err := row.Scan(&i.UID, &i.Email, &i.DisplayName, &i.Role, &i.Channel, &i.Status, &i.IsAdmin, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &i, nil
}

// Create inserts a new identity; an existing uid is returned untouched
func (r *IdentityRepository) Create(ctx context.Context, identity *models.Identity) (stored *models.Identity, created bool, err error) {
	start := time.Now()
	defer func() { observe("identity_create", start, err) }()

	query := `
		INSERT INTO identities (` + identityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (uid) DO NOTHING
		RETURNING ` + identityColumns

	stored, err = scanIdentity(r.pool.QueryRow(ctx, query,
		identity.UID, identity.Email, identity.DisplayName, identity.Role, identity.Channel,
		identity.Status, identity.IsAdmin, identity.CreatedAt))
	if err == nil {
		return stored, true, nil
	}
	if db.IsUniqueViolation(err) {
		return nil, false, fmt.Errorf("email %s: %w", identity.Email, ErrDuplicate)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("failed to create identity: %w", err)
	}

	// uid already registered
	stored, err = r.GetByUID(ctx, identity.UID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

// GetByUID fetches an identity by its provider uid
func (r *IdentityRepository) GetByUID(ctx context.Context, uid string) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE uid = $1`

	identity, err := scanIdentity(r.pool.QueryRow(ctx, query, uid))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return identity, err
}

// GetByEmail fetches an identity by email, case-insensitively
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE LOWER(email) = LOWER($1)`

	identity, err := scanIdentity(r.pool.QueryRow(ctx, query, email))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get identity by email: %w", err)
	}
	return identity, err
}

// TransitionStatus performs a conditional status update plus audit insert in one transaction
func (r *IdentityRepository) TransitionStatus(ctx context.Context, from models.Status, t *models.StatusTransition) (err error) {
	start := time.Now()
	defer func() { observe("identity_transition", start, err) }()

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE identities SET status = $3, updated_at = $4
			WHERE uid = $1 AND status = $2
		`, t.UID, from, t.To, t.At)
		if err != nil {
			return fmt.Errorf("failed to update identity status: %w", err)
		}

		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM identities WHERE uid = $1)`, t.UID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check identity: %w", err)
			}
			if !exists {
				return ErrNotFound
			}
			return ErrStatusMismatch
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO identity_status_events (id, uid, from_status, to_status, event, actor, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, t.ID, t.UID, t.From, t.To, t.Event, t.Actor, t.At)
		if err != nil {
			return fmt.Errorf("failed to record status event: %w", err)
		}
		return nil
	})
}

// ListByStatus returns identities with any of the given statuses, newest first
func (r *IdentityRepository) ListByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Identity, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+identityColumns+` FROM identities
		WHERE status = ANY($1)
		ORDER BY created_at DESC
	`, values)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	defer rows.Close()

	identities := make([]*models.Identity, 0)
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate identities: %w", err)
	}

	return identities, nil
}

var _ IdentityStore = (*IdentityRepository)(nil)

package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satbounty/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create inserts the user and then checks the global user cap inside the
// same transaction. The advisory lock on key 0 (user ids start at 1)
// serializes racing signups so the count sees every committed insert.
func (r *UserRepo) Create(ctx context.Context, u *models.User, maxAllowedUsers int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(0)`); err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO users (public_id, username, password_hash, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, u.PublicID, u.Username, u.PasswordHash, u.IsAdmin).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return err
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return err
	}
	if count > maxAllowedUsers {
		return ErrUserLimitReached
	}

	return tx.Commit(ctx)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, public_id, username, password_hash, is_admin, created_at
		FROM users WHERE username = $1
	`, username).Scan(&u.ID, &u.PublicID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, public_id, username, password_hash, is_admin, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.PublicID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByPublicID(ctx context.Context, publicID uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, public_id, username, password_hash, is_admin, created_at
		FROM users WHERE public_id = $1
	`, publicID).Scan(&u.ID, &u.PublicID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteWithoutActivation removes users whose activation row is gone,
// typically because the reaper deleted an expired unpaid bond invoice.
func (r *UserRepo) DeleteWithoutActivation(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM users u
		WHERE NOT EXISTS (SELECT 1 FROM activations a WHERE a.user_id = u.id)
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// IsNotFound reports whether err is the no-rows result of a lookup.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satbounty/backend/internal/models"
)

type BountyRepo struct {
	pool *pgxpool.Pool
}

func NewBountyRepo(pool *pgxpool.Pool) *BountyRepo {
	return &BountyRepo{pool: pool}
}

const bountyColumns = `
	b.id, b.public_id, b.user_id, u.username,
	b.title, b.description, b.price_sat, b.fee_rate_basis_points,
	b.submitted, b.viewed, b.approved, b.deactivated_by_seller, b.deactivated_by_admin,
	b.created_at`

func scanBounty(row pgx.Row) (*models.Bounty, error) {
	var b models.Bounty
	err := row.Scan(&b.ID, &b.PublicID, &b.UserID, &b.SellerUsername,
		&b.Title, &b.Description, &b.PriceSat, &b.FeeRateBasisPoints,
		&b.Submitted, &b.Viewed, &b.Approved, &b.DeactivatedBySeller, &b.DeactivatedByAdmin,
		&b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts the bounty and counts the seller's unapproved bounties in
// the same transaction, same insert-then-count policy as case creation,
// under the seller's advisory lock.
func (r *BountyRepo) Create(ctx context.Context, b *models.Bounty, maxUnapproved int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, b.UserID); err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO bounties (public_id, user_id, title, description, price_sat, fee_rate_basis_points)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, b.PublicID, b.UserID, b.Title, b.Description, b.PriceSat, b.FeeRateBasisPoints).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return err
	}

	var unapproved int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM bounties
		WHERE user_id = $1 AND NOT approved AND NOT (deactivated_by_seller OR deactivated_by_admin)
	`, b.UserID).Scan(&unapproved)
	if err != nil {
		return err
	}
	if unapproved > maxUnapproved {
		return ErrTooManyUnapproved
	}

	return tx.Commit(ctx)
}

func (r *BountyRepo) GetByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Bounty, error) {
	return scanBounty(r.pool.QueryRow(ctx, `
		SELECT ` + bountyColumns + `
		FROM bounties b JOIN users u ON u.id = b.user_id
		WHERE b.public_id = $1
	`, publicID))
}

// ListActive returns approved, live bounties for the public market page.
// Sellers with a disabled or unpaid activation are hidden.
func (r *BountyRepo) ListActive(ctx context.Context) ([]*models.Bounty, error) {
	return r.list(ctx, `
		b.approved AND NOT (b.deactivated_by_seller OR b.deactivated_by_admin)
		AND EXISTS (SELECT 1 FROM activations a WHERE a.user_id = b.user_id AND a.paid AND NOT a.disabled)
	`)
}

func (r *BountyRepo) ListForUser(ctx context.Context, userID int64) ([]*models.Bounty, error) {
	return r.list(ctx, `b.user_id = $1`, userID)
}

// ListPendingReview is the admin moderation queue.
func (r *BountyRepo) ListPendingReview(ctx context.Context) ([]*models.Bounty, error) {
	return r.list(ctx, `b.submitted AND NOT b.approved AND NOT (b.deactivated_by_seller OR b.deactivated_by_admin)`)
}

func (r *BountyRepo) list(ctx context.Context, where string, args ...any) ([]*models.Bounty, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ` + bountyColumns + `
		FROM bounties b JOIN users u ON u.id = b.user_id
		WHERE ` + where + `
		ORDER BY b.created_at DESC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bounties []*models.Bounty
	for rows.Next() {
		b, err := scanBounty(rows)
		if err != nil {
			return nil, err
		}
		bounties = append(bounties, b)
	}
	return bounties, rows.Err()
}

func (r *BountyRepo) Submit(ctx context.Context, publicID uuid.UUID, userID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bounties SET submitted = TRUE
		WHERE public_id = $1 AND user_id = $2
		  AND NOT submitted AND NOT (deactivated_by_seller OR deactivated_by_admin)
	`, publicID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *BountyRepo) Approve(ctx context.Context, publicID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bounties SET approved = TRUE, viewed = TRUE
		WHERE public_id = $1
		  AND submitted AND NOT approved AND NOT (deactivated_by_seller OR deactivated_by_admin)
	`, publicID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Reject marks the bounty viewed and pulls it from the queue for good.
func (r *BountyRepo) Reject(ctx context.Context, publicID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bounties SET deactivated_by_admin = TRUE, viewed = TRUE
		WHERE public_id = $1
		  AND submitted AND NOT approved AND NOT (deactivated_by_seller OR deactivated_by_admin)
	`, publicID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *BountyRepo) DeactivateBySeller(ctx context.Context, publicID uuid.UUID, userID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bounties SET deactivated_by_seller = TRUE
		WHERE public_id = $1 AND user_id = $2
		  AND NOT (deactivated_by_seller OR deactivated_by_admin)
	`, publicID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *BountyRepo) DeactivateByAdmin(ctx context.Context, publicID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bounties SET deactivated_by_admin = TRUE
		WHERE public_id = $1
		  AND NOT (deactivated_by_seller OR deactivated_by_admin)
	`, publicID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satbounty/backend/internal/models"
)

// LedgerRepo derives balances from cases, activations and withdrawals.
// There is no stored balance anywhere; every read recomputes.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// userChanges projects one user's ledger events. Withdrawals carry their
// magnitude; the sign lives in the kind (models.BalanceChange.SignedSat).
const userChanges = `
	SELECT 'received_case' AS kind, seller_credit_sat AS amount_sat, public_id AS ref,
	       COALESCE(payment_time, created_at) AS event_time
	FROM cases WHERE seller_user_id = $1 AND awarded
	UNION ALL
	SELECT 'refunded_case', amount_owed_sat, public_id,
	       COALESCE(payment_time, created_at)
	FROM cases WHERE buyer_user_id = $1 AND paid AND (canceled_by_seller OR canceled_by_buyer)
	UNION ALL
	SELECT 'user_activation', amount_owed_sat, public_id,
	       COALESCE(payment_time, created_at)
	FROM activations WHERE user_id = $1 AND paid
	UNION ALL
	SELECT 'withdrawal', amount_sat, public_id, created_at
	FROM withdrawals WHERE user_id = $1`

func (r *LedgerRepo) BalanceForUser(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'withdrawal' THEN -amount_sat ELSE amount_sat END), 0)
		FROM (` + userChanges + `) changes
	`, userID).Scan(&balance)
	return balance, err
}

func (r *LedgerRepo) ChangesForUser(ctx context.Context, userID int64, page, pageSize int) ([]models.BalanceChange, error) {
	if page < 0 {
		page = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT kind, amount_sat, ref, event_time
		FROM (` + userChanges + `) changes
		ORDER BY event_time DESC
		LIMIT $2 OFFSET $3
	`, userID, pageSize, page*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []models.BalanceChange
	for rows.Next() {
		var c models.BalanceChange
		if err := rows.Scan(&c.Kind, &c.AmountSat, &c.Ref, &c.CreatedAt); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// marketChanges is the admin-wide projection. On top of the per-user
// kinds it carries processing_case rows: paid escrow that is not yet
// anybody's balance but is still owed out at its full invoice amount.
const marketChanges = `
	SELECT 'received_case' AS kind, seller_credit_sat AS amount_sat, public_id AS ref,
	       COALESCE(payment_time, created_at) AS event_time
	FROM cases WHERE awarded
	UNION ALL
	SELECT 'refunded_case', amount_owed_sat, public_id,
	       COALESCE(payment_time, created_at)
	FROM cases WHERE paid AND (canceled_by_seller OR canceled_by_buyer)
	UNION ALL
	SELECT 'processing_case', amount_owed_sat, public_id,
	       COALESCE(payment_time, created_at)
	FROM cases WHERE paid AND NOT (awarded OR canceled_by_seller OR canceled_by_buyer)
	UNION ALL
	SELECT 'user_activation', amount_owed_sat, public_id,
	       COALESCE(payment_time, created_at)
	FROM activations WHERE paid
	UNION ALL
	SELECT 'withdrawal', amount_sat, public_id, created_at
	FROM withdrawals`

func (r *LedgerRepo) AllChanges(ctx context.Context, page, pageSize int) ([]models.BalanceChange, error) {
	if page < 0 {
		page = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT kind, amount_sat, ref, event_time
		FROM (` + marketChanges + `) changes
		ORDER BY event_time DESC
		LIMIT $1 OFFSET $2
	`, pageSize, page*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []models.BalanceChange
	for rows.Next() {
		var c models.BalanceChange
		if err := rows.Scan(&c.Kind, &c.AmountSat, &c.Ref, &c.CreatedAt); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// MarketLiabilities is the total the platform owes: every user balance
// plus escrow still in flight. Solvency means the node holds at least
// this much.
func (r *LedgerRepo) MarketLiabilities(ctx context.Context) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'withdrawal' THEN -amount_sat ELSE amount_sat END), 0)
		FROM (` + marketChanges + `) changes
	`).Scan(&total)
	return total, err
}

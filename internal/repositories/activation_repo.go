package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satbounty/backend/internal/models"
)

type ActivationRepo struct {
	pool *pgxpool.Pool
}

func NewActivationRepo(pool *pgxpool.Pool) *ActivationRepo {
	return &ActivationRepo{pool: pool}
}

func (r *ActivationRepo) Create(ctx context.Context, a *models.Activation) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO activations (public_id, user_id, amount_owed_sat, invoice_hash, invoice_payment_request)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, a.PublicID, a.UserID, a.AmountOwedSat, a.InvoiceHash, a.InvoicePaymentRequest).Scan(&a.ID, &a.CreatedAt)
}

func (r *ActivationRepo) GetByUserID(ctx context.Context, userID int64) (*models.Activation, error) {
	var a models.Activation
	err := r.pool.QueryRow(ctx, `
		SELECT id, public_id, user_id, amount_owed_sat, invoice_hash, invoice_payment_request,
		       paid, disabled, created_at, payment_time
		FROM activations WHERE user_id = $1
	`, userID).Scan(&a.ID, &a.PublicID, &a.UserID, &a.AmountOwedSat, &a.InvoiceHash,
		&a.InvoicePaymentRequest, &a.Paid, &a.Disabled, &a.CreatedAt, &a.PaymentTime)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkPaidByInvoiceHash flips the unpaid activation matching the settled
// invoice. A miss is not an error: the hash may belong to a case or to a
// settlement already applied.
func (r *ActivationRepo) MarkPaidByInvoiceHash(ctx context.Context, invoiceHash string, paidAt time.Time) (userID int64, ok bool, err error) {
	err = r.pool.QueryRow(ctx, `
		UPDATE activations SET paid = TRUE, payment_time = $2
		WHERE invoice_hash = $1 AND NOT paid
		RETURNING user_id
	`, invoiceHash, paidAt).Scan(&userID)
	if err != nil {
		if IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return userID, true, nil
}

// SetDisabled is the admin kill switch for a user's market access.
func (r *ActivationRepo) SetDisabled(ctx context.Context, userPublicID uuid.UUID, disabled bool) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE activations a SET disabled = $2
		FROM users u
		WHERE a.user_id = u.id AND u.public_id = $1
	`, userPublicID, disabled)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ExpiredActivation is one unpaid bond past its window, with what the
// reaper needs to cancel the invoice.
type ExpiredActivation struct {
	ID          int64
	UserID      int64
	InvoiceHash string
}

func (r *ActivationRepo) UnpaidOlderThan(ctx context.Context, cutoff time.Time) ([]ExpiredActivation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, invoice_hash
		FROM activations
		WHERE NOT paid AND created_at < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []ExpiredActivation
	for rows.Next() {
		var e ExpiredActivation
		if err := rows.Scan(&e.ID, &e.UserID, &e.InvoiceHash); err != nil {
			return nil, err
		}
		expired = append(expired, e)
	}
	return expired, rows.Err()
}

// DeleteUnpaidWithUser removes an expired activation and its user in one
// transaction. The NOT paid re-check makes the sweep lose cleanly to a
// settlement that lands between the sweep query and the delete.
func (r *ActivationRepo) DeleteUnpaidWithUser(ctx context.Context, activationID, userID int64) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM activations WHERE id = $1 AND NOT paid`, activationID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// DoDeactivation closes the account: the paid bond row is deleted, the
// user and their bounties go with it, and bond minus the fee is paid out
// through send before the transaction commits. It refuses while the user
// is party to a paid unresolved case (that escrow still needs the user),
// and it refuses when the remaining ledger balance after removing the
// bond credit is negative: the bond is part of the withdrawable balance,
// so a user who already withdrew it must not be paid the bond again here.
// The advisory lock is the same per-user money lock DoWithdrawal takes.
// A send failure rolls everything back; a crash after send but before
// commit loses the deletion, not the money, and is accepted.
func (r *ActivationRepo) DoDeactivation(ctx context.Context, userID int64, deactivationFeeSat int64,
	send func(ctx context.Context, payoutSat int64) error) error {

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := doDeactivation(ctx, tx, userID, deactivationFeeSat, send); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func doDeactivation(ctx context.Context, tx pgx.Tx, userID int64, deactivationFeeSat int64,
	send func(ctx context.Context, payoutSat int64) error) error {

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, userID); err != nil {
		return err
	}

	var open int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM cases
		WHERE (buyer_user_id = $1 OR seller_user_id = $1)
		  AND paid AND NOT (awarded OR canceled_by_seller OR canceled_by_buyer)
	`, userID).Scan(&open)
	if err != nil {
		return err
	}
	if open > 0 {
		return ErrUnresolvedCases
	}

	var bondSat int64
	err = tx.QueryRow(ctx, `
		DELETE FROM activations WHERE user_id = $1 AND paid
		RETURNING amount_owed_sat
	`, userID).Scan(&bondSat)
	if err != nil {
		if IsNotFound(err) {
			return ErrNoUserBond
		}
		return err
	}

	// The delete above is visible to this query, so the bond credit is
	// already out of the sum. Negative means the bond was spent.
	var balance int64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'withdrawal' THEN -amount_sat ELSE amount_sat END), 0)
		FROM (` + userChanges + `) changes
	`, userID).Scan(&balance)
	if err != nil {
		return err
	}
	if balance < 0 {
		return ErrInsufficientFunds
	}

	payout := bondSat - deactivationFeeSat
	if payout < 0 {
		return ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `DELETE FROM bounties WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return err
	}

	return send(ctx, payout)
}

package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satbounty/backend/internal/models"
)

type WithdrawalRepo struct {
	pool *pgxpool.Pool
}

func NewWithdrawalRepo(pool *pgxpool.Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// DoWithdrawal runs the whole withdrawal as one transaction:
//
//	take the user's money lock, insert the row, re-count the rate limit
//	and re-derive the balance with the fresh row already debiting it, pay
//	out through send, record the payment hash, commit.
//
// The advisory lock serializes concurrent withdrawals and deactivations
// for one user: under READ COMMITTED neither the count nor the balance
// query would see another transaction's uncommitted row, so without the
// lock two parallel withdrawals could both pass the checks against the
// same funds. Any failure before commit rolls the row back. The count and
// the balance both see the speculative row, so the rate comparison is
// strict-greater and the balance check is >= 0 after the debit. A crash
// between send and commit pays without recording the debit; that window
// is accepted.
func (r *WithdrawalRepo) DoWithdrawal(ctx context.Context, w *models.Withdrawal,
	maxPerInterval int, interval time.Duration,
	send func(ctx context.Context) (invoiceHash string, err error)) error {

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := doWithdrawal(ctx, tx, w, maxPerInterval, interval, send); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func doWithdrawal(ctx context.Context, tx pgx.Tx, w *models.Withdrawal,
	maxPerInterval int, interval time.Duration,
	send func(ctx context.Context) (invoiceHash string, err error)) error {

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, w.UserID); err != nil {
		return err
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO withdrawals (public_id, user_id, amount_sat, invoice_payment_request)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, w.PublicID, w.UserID, w.AmountSat, w.InvoicePaymentRequest).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return err
	}

	var recent int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM withdrawals
		WHERE user_id = $1 AND created_at > now() - $2::interval
	`, w.UserID, interval).Scan(&recent)
	if err != nil {
		return err
	}
	if recent > maxPerInterval {
		return ErrWithdrawalRateLimited
	}

	var balance int64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'withdrawal' THEN -amount_sat ELSE amount_sat END), 0)
		FROM (` + userChanges + `) changes
	`, w.UserID).Scan(&balance)
	if err != nil {
		return err
	}
	if balance < 0 {
		return ErrInsufficientFunds
	}

	invoiceHash, err := send(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE withdrawals SET invoice_hash = $1 WHERE id = $2
	`, invoiceHash, w.ID); err != nil {
		return err
	}
	w.InvoiceHash = invoiceHash

	return nil
}

func (r *WithdrawalRepo) ListForUser(ctx context.Context, userID int64) ([]*models.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, public_id, user_id, amount_sat, invoice_hash, invoice_payment_request, created_at
		FROM withdrawals WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var withdrawals []*models.Withdrawal
	for rows.Next() {
		var w models.Withdrawal
		if err := rows.Scan(&w.ID, &w.PublicID, &w.UserID, &w.AmountSat,
			&w.InvoiceHash, &w.InvoicePaymentRequest, &w.CreatedAt); err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, &w)
	}
	return withdrawals, rows.Err()
}

// CountInInterval is the read-only rate limit view used by account info.
func (r *WithdrawalRepo) CountInInterval(ctx context.Context, userID int64, interval time.Duration) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM withdrawals
		WHERE user_id = $1 AND created_at > now() - $2::interval
	`, userID, interval).Scan(&n)
	return n, err
}

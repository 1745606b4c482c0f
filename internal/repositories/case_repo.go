package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satbounty/backend/internal/models"
)

type CaseRepo struct {
	pool *pgxpool.Pool
}

func NewCaseRepo(pool *pgxpool.Pool) *CaseRepo {
	return &CaseRepo{pool: pool}
}

// Случай переживает свой bounty (joined LEFT), пропавший bounty даёт
// нулевой uuid.
const caseColumns = `
	c.id, c.public_id, c.bounty_id,
	COALESCE(b.public_id, '00000000-0000-0000-0000-000000000000'), c.buyer_user_id, c.seller_user_id,
	c.quantity, c.case_details, c.amount_owed_sat, c.seller_credit_sat,
	c.invoice_hash, c.invoice_payment_request,
	c.paid, c.awarded, c.canceled_by_seller, c.canceled_by_buyer,
	c.created_at, c.payment_time`

func scanCase(row pgx.Row) (*models.Case, error) {
	var c models.Case
	err := row.Scan(&c.ID, &c.PublicID, &c.BountyID, &c.BountyPublicID, &c.BuyerUserID, &c.SellerUserID,
		&c.Quantity, &c.CaseDetails, &c.AmountOwedSat, &c.SellerCreditSat,
		&c.InvoiceHash, &c.InvoicePaymentRequest,
		&c.Paid, &c.Awarded, &c.CanceledBySeller, &c.CanceledByBuyer,
		&c.CreatedAt, &c.PaymentTime)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts the case and then counts the buyer's unpaid cases inside
// the same transaction, rolling back when the count exceeds the cap. The
// count includes the fresh row, so the comparison is strict-greater. The
// buyer's advisory lock serializes racing opens so the count is complete.
func (r *CaseRepo) Create(ctx context.Context, c *models.Case, maxUnpaidPerBuyer int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, c.BuyerUserID); err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO cases (public_id, bounty_id, buyer_user_id, seller_user_id, quantity,
		                   case_details, amount_owed_sat, seller_credit_sat,
		                   invoice_hash, invoice_payment_request)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, c.PublicID, c.BountyID, c.BuyerUserID, c.SellerUserID, c.Quantity,
		c.CaseDetails, c.AmountOwedSat, c.SellerCreditSat,
		c.InvoiceHash, c.InvoicePaymentRequest).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return err
	}

	var unpaid int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM cases WHERE buyer_user_id = $1 AND NOT paid
	`, c.BuyerUserID).Scan(&unpaid)
	if err != nil {
		return err
	}
	if unpaid > maxUnpaidPerBuyer {
		return ErrTooManyUnpaidCases
	}

	return tx.Commit(ctx)
}

func (r *CaseRepo) GetByPublicID(ctx context.Context, publicID uuid.UUID) (*models.Case, error) {
	return scanCase(r.pool.QueryRow(ctx, `
		SELECT ` + caseColumns + `
		FROM cases c LEFT JOIN bounties b ON b.id = c.bounty_id
		WHERE c.public_id = $1
	`, publicID))
}

func (r *CaseRepo) ListForBuyer(ctx context.Context, buyerID int64) ([]*models.Case, error) {
	return r.list(ctx, `c.buyer_user_id = $1`, buyerID)
}

func (r *CaseRepo) ListForSeller(ctx context.Context, sellerID int64) ([]*models.Case, error) {
	return r.list(ctx, `c.seller_user_id = $1`, sellerID)
}

func (r *CaseRepo) list(ctx context.Context, where string, arg any) ([]*models.Case, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ` + caseColumns + `
		FROM cases c LEFT JOIN bounties b ON b.id = c.bounty_id
		WHERE ` + where + `
		ORDER BY c.created_at DESC
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// MarkPaidByInvoiceHash flips the unpaid case matching a settled invoice.
// A miss is fine: the hash may be an activation's or already applied.
func (r *CaseRepo) MarkPaidByInvoiceHash(ctx context.Context, invoiceHash string, paidAt time.Time) (publicID uuid.UUID, buyerID int64, ok bool, err error) {
	err = r.pool.QueryRow(ctx, `
		UPDATE cases SET paid = TRUE, payment_time = $2
		WHERE invoice_hash = $1 AND NOT paid
		RETURNING public_id, buyer_user_id
	`, invoiceHash, paidAt).Scan(&publicID, &buyerID)
	if err != nil {
		if IsNotFound(err) {
			return uuid.Nil, 0, false, nil
		}
		return uuid.Nil, 0, false, err
	}
	return publicID, buyerID, true, nil
}

// MarkAwarded releases escrow to the seller. The guard allows exactly one
// terminal flag per case; details are cleared once the case closes.
func (r *CaseRepo) MarkAwarded(ctx context.Context, publicID uuid.UUID, sellerID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE cases SET awarded = TRUE, case_details = ''
		WHERE public_id = $1 AND seller_user_id = $2
		  AND paid AND NOT (awarded OR canceled_by_seller OR canceled_by_buyer)
	`, publicID, sellerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkCanceledBySeller refunds the buyer's credit. Unlike award, cancel
// does not require the invoice to be paid.
func (r *CaseRepo) MarkCanceledBySeller(ctx context.Context, publicID uuid.UUID, sellerID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE cases SET canceled_by_seller = TRUE, case_details = ''
		WHERE public_id = $1 AND seller_user_id = $2
		  AND NOT (awarded OR canceled_by_seller OR canceled_by_buyer)
	`, publicID, sellerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *CaseRepo) MarkCanceledByBuyer(ctx context.Context, publicID uuid.UUID, buyerID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE cases SET canceled_by_buyer = TRUE, case_details = ''
		WHERE public_id = $1 AND buyer_user_id = $2
		  AND NOT (awarded OR canceled_by_seller OR canceled_by_buyer)
	`, publicID, buyerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ExpiredCase is one unpaid case past its window.
type ExpiredCase struct {
	ID          int64
	InvoiceHash string
}

func (r *CaseRepo) UnpaidOlderThan(ctx context.Context, cutoff time.Time) ([]ExpiredCase, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_hash FROM cases
		WHERE NOT paid AND created_at < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []ExpiredCase
	for rows.Next() {
		var e ExpiredCase
		if err := rows.Scan(&e.ID, &e.InvoiceHash); err != nil {
			return nil, err
		}
		expired = append(expired, e)
	}
	return expired, rows.Err()
}

// DeleteUnpaid re-guards on NOT paid so a settlement racing the reaper
// keeps the row.
func (r *CaseRepo) DeleteUnpaid(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cases WHERE id = $1 AND NOT paid`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// LatestPaidInvoiceHash returns the invoice hash of the most recently
// settled record across cases and activations. The settlement consumer
// derives its resume index from this invoice.
func (r *CaseRepo) LatestPaidInvoiceHash(ctx context.Context) (string, bool, error) {
	var hash string
	err := r.pool.QueryRow(ctx, `
		SELECT invoice_hash FROM (
			SELECT invoice_hash, payment_time FROM cases WHERE paid
			UNION ALL
			SELECT invoice_hash, payment_time FROM activations WHERE paid
		) paid_records
		ORDER BY payment_time DESC NULLS LAST
		LIMIT 1
	`).Scan(&hash)
	if err != nil {
		if IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return hash, true, nil
}

// NumProcessingForUser counts paid, unresolved cases where the user is the
// seller. These hold escrow that is not yet anyone's balance.
func (r *CaseRepo) NumProcessingForUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM cases
		WHERE seller_user_id = $1
		  AND paid AND NOT (awarded OR canceled_by_seller OR canceled_by_buyer)
	`, userID).Scan(&n)
	return n, err
}

func (r *CaseRepo) NumUnpaidForBuyer(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM cases WHERE buyer_user_id = $1 AND NOT paid
	`, userID).Scan(&n)
	return n, err
}

// SellerTotals is the public track record of a seller.
type SellerTotals struct {
	Username       string `json:"username"`
	AwardedCases   int64  `json:"awarded_cases"`
	TotalEarnedSat int64  `json:"total_earned_sat"`
}

func (r *CaseRepo) SellerTotalsForUser(ctx context.Context, userID int64) (*SellerTotals, error) {
	var t SellerTotals
	err := r.pool.QueryRow(ctx, `
		SELECT u.username, COUNT(c.id) FILTER (WHERE c.awarded),
		       COALESCE(SUM(c.seller_credit_sat) FILTER (WHERE c.awarded), 0)
		FROM users u
		LEFT JOIN cases c ON c.seller_user_id = u.id
		WHERE u.id = $1
		GROUP BY u.username
	`, userID).Scan(&t.Username, &t.AwardedCases, &t.TotalEarnedSat)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *CaseRepo) TopSellers(ctx context.Context, limit int) ([]SellerTotals, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.username, COUNT(c.id), COALESCE(SUM(c.seller_credit_sat), 0)
		FROM cases c
		JOIN users u ON u.id = c.seller_user_id
		WHERE c.awarded
		GROUP BY u.username
		ORDER BY SUM(c.seller_credit_sat) DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sellers []SellerTotals
	for rows.Next() {
		var t SellerTotals
		if err := rows.Scan(&t.Username, &t.AwardedCases, &t.TotalEarnedSat); err != nil {
			return nil, err
		}
		sellers = append(sellers, t)
	}
	return sellers, rows.Err()
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Case is an escrowed order for a bounty. Money the buyer pays sits on the
// platform node until the case is awarded, canceled or reaped.
type Case struct {
	ID                    int64      `json:"-"`
	PublicID              uuid.UUID  `json:"id"`
	BountyID              int64      `json:"-"`
	BountyPublicID        uuid.UUID  `json:"bounty_id"`
	BuyerUserID           int64      `json:"-"`
	SellerUserID          int64      `json:"-"`
	Quantity              int64      `json:"quantity"`
	CaseDetails           string     `json:"case_details,omitempty"`
	AmountOwedSat         int64      `json:"amount_owed_sat"`
	SellerCreditSat       int64      `json:"seller_credit_sat"`
	InvoiceHash           string     `json:"-"`
	InvoicePaymentRequest string     `json:"invoice_payment_request"`
	Paid                  bool       `json:"paid"`
	Awarded               bool       `json:"awarded"`
	CanceledBySeller      bool       `json:"canceled_by_seller"`
	CanceledByBuyer       bool       `json:"canceled_by_buyer"`
	CreatedAt             time.Time  `json:"created_at"`
	PaymentTime           *time.Time `json:"payment_time,omitempty"`
}

// IsResolved reports whether the case reached a terminal state.
func (c *Case) IsResolved() bool {
	return c.Awarded || c.CanceledBySeller || c.CanceledByBuyer
}

// CanAward: только оплаченный и ещё не закрытый кейс можно наградить.
func (c *Case) CanAward() bool {
	return c.Paid && !c.IsResolved()
}

// CanCancel: cancel is allowed whether or not the invoice was paid,
// as long as nobody resolved the case first.
func (c *Case) CanCancel() bool {
	return !c.IsResolved()
}

// CaseAmounts computes what the buyer owes and what the seller is credited
// for price*quantity at the given platform fee rate. The fee is added on
// top of the seller credit, so the seller always receives the full price.
func CaseAmounts(priceSat, quantity int64, feeRateBPS int) (amountOwed, sellerCredit int64) {
	sellerCredit = priceSat * quantity
	fee := sellerCredit * int64(feeRateBPS) / 10000
	amountOwed = sellerCredit + fee
	return amountOwed, sellerCredit
}

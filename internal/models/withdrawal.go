package models

import (
	"time"

	"github.com/google/uuid"
)

// Withdrawal debits the user's ledger from the moment the row exists,
// whether or not the outgoing payment ultimately confirmed.
type Withdrawal struct {
	ID                    int64     `json:"-"`
	PublicID              uuid.UUID `json:"id"`
	UserID                int64     `json:"-"`
	AmountSat             int64     `json:"amount_sat"`
	InvoiceHash           string    `json:"invoice_hash,omitempty"`
	InvoicePaymentRequest string    `json:"-"`
	CreatedAt             time.Time `json:"created_at"`
}

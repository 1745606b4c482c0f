package models

import (
	"time"

	"github.com/google/uuid"
)

// Activation is the seller bond invoice. A user may not list bounties or
// receive escrow credit until their activation invoice settles. Admins can
// disable an activation without deleting the user.
type Activation struct {
	ID                    int64      `json:"-"`
	PublicID              uuid.UUID  `json:"id"`
	UserID                int64      `json:"-"`
	AmountOwedSat         int64      `json:"amount_owed_sat"`
	InvoiceHash           string     `json:"-"`
	InvoicePaymentRequest string     `json:"invoice_payment_request"`
	Paid                  bool       `json:"paid"`
	Disabled              bool       `json:"disabled"`
	CreatedAt             time.Time  `json:"created_at"`
	PaymentTime           *time.Time `json:"payment_time,omitempty"`
}

func (a *Activation) IsActive() bool {
	return a.Paid && !a.Disabled
}

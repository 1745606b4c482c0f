package models

import (
	"time"

	"github.com/google/uuid"
)

// Bounty is a seller listing that cases are opened against. The price is
// frozen into the case at creation together with the fee rate in force.
type Bounty struct {
	ID                  int64     `json:"-"`
	PublicID            uuid.UUID `json:"id"`
	UserID              int64     `json:"-"`
	SellerUsername      string    `json:"seller_username,omitempty"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	PriceSat            int64     `json:"price_sat"`
	FeeRateBasisPoints  int       `json:"fee_rate_basis_points"`
	Submitted           bool      `json:"submitted"`
	Viewed              bool      `json:"viewed"`
	Approved            bool      `json:"approved"`
	DeactivatedBySeller bool      `json:"deactivated_by_seller"`
	DeactivatedByAdmin  bool      `json:"deactivated_by_admin"`
	CreatedAt           time.Time `json:"created_at"`
}

func (b *Bounty) IsDeactivated() bool {
	return b.DeactivatedBySeller || b.DeactivatedByAdmin
}

// IsActive: только одобренная и не снятая заявка видна покупателям.
func (b *Bounty) IsActive() bool {
	return b.Approved && !b.IsDeactivated()
}

// CanApprove reports whether an admin may approve or reject the bounty.
func (b *Bounty) CanApprove() bool {
	return b.Submitted && !b.Approved && !b.IsDeactivated()
}

// CanSubmit: drafts go to review once, resubmission after rejection
// is a new bounty.
func (b *Bounty) CanSubmit() bool {
	return !b.Submitted && !b.IsDeactivated()
}

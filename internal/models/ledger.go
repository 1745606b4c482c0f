package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger change kinds. Balances are never stored; they are the sum of
// these changes projected out of cases, activations and withdrawals.
const (
	ChangeReceivedCase   = "received_case"   // seller credit from an awarded case
	ChangeRefundedCase   = "refunded_case"   // buyer refund from a canceled paid case
	ChangeUserActivation = "user_activation" // seller bond held on the platform
	ChangeWithdrawal     = "withdrawal"      // funds sent out over Lightning
	ChangeProcessingCase = "processing_case" // paid but unresolved escrow, liabilities only
)

type BalanceChange struct {
	Kind      string    `json:"kind"`
	AmountSat int64     `json:"amount_sat"` // magnitude, always >= 0
	Ref       uuid.UUID `json:"ref"`
	CreatedAt time.Time `json:"created_at"`
}

// SignedSat returns the change's contribution to a balance.
// Withdrawals debit, everything else credits.
func (b BalanceChange) SignedSat() int64 {
	if b.Kind == ChangeWithdrawal {
		return -b.AmountSat
	}
	return b.AmountSat
}

// SumChanges folds a change list into a balance.
func SumChanges(changes []BalanceChange) int64 {
	var total int64
	for _, c := range changes {
		total += c.SignedSat()
	}
	return total
}

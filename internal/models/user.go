package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           int64     `json:"-"`
	PublicID     uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// AccountInfo is the derived view of a user's funds and open obligations.
// Nothing here is stored; it is recomputed from the ledger on each request.
type AccountInfo struct {
	Username            string `json:"username"`
	BalanceSat          int64  `json:"balance_sat"`
	ActivationPaid      bool   `json:"activation_paid"`
	BondSat             int64  `json:"bond_sat"`
	UnresolvedCases     int64  `json:"unresolved_cases"`
	UnpaidCases         int64  `json:"unpaid_cases"`
	WithdrawalsInWindow int64  `json:"withdrawals_in_window"`
}

package repositories

import "errors"

// Validation failures callers must be able to distinguish from plain
// database errors.
var (
	ErrTooManyUnpaidCases    = errors.New("too many unpaid cases")
	ErrTooManyUnapproved     = errors.New("too many unapproved bounties")
	ErrNotTransitionable     = errors.New("state does not allow this transition")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrWithdrawalRateLimited = errors.New("withdrawal rate limit exceeded")
	ErrNoUserBond            = errors.New("no paid activation bond")
	ErrUserLimitReached      = errors.New("user limit reached")
	ErrUnresolvedCases       = errors.New("user has unresolved cases")
)

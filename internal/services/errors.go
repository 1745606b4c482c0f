package services

import "errors"

var (
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is not activated")
	ErrWrongInvoiceAmount = errors.New("invoice amount does not match expected payout")
	ErrBountyNotActive    = errors.New("bounty is not active")
	ErrOwnBounty          = errors.New("cannot open a case on your own bounty")
)

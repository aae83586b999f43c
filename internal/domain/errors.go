package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrAlreadyExists       = errors.New("already exists")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrEventOrder          = errors.New("transfer events not grouped by transaction hash")
	ErrFaucetAlreadyPaid   = errors.New("faucet already paid for this account")
	ErrUserInactive        = errors.New("user email not verified")
)

// Package service orchestrates the entitlement operations: verify payment
// and issue tokens, consume downloads under the record lock, report status,
// and redeem one-time backup links.
package service

import "errors"

// Terminal errors. Clients must not retry these automatically. Transient
// conditions surface as lock.ErrTimeout and store.ErrUnavailable from
// their own packages.
var (
	ErrPaymentNotVerified   = errors.New("payment not verified")
	ErrMissingEmail         = errors.New("no email found in payment data")
	ErrInvalidToken         = errors.New("invalid token")
	ErrAccessExpired        = errors.New("access expired")
	ErrInvalidFormat        = errors.New("invalid format selected")
	ErrNotFound             = errors.New("purchase not found")
	ErrNoDownloadsRemaining = errors.New("no downloads remaining")
	ErrInvalidBackupLink    = errors.New("invalid backup link")
	ErrBackupAlreadyUsed    = errors.New("backup link already utilized")
	ErrLinkSigningFailed    = errors.New("unable to prepare download")
)

package app

import "errors"

// Sentinel kinds for request validation.
var (
	// ErrInvalidWindow means the caller-supplied date range failed to parse
	// or ends before it starts. It is checked before any network work.
	ErrInvalidWindow = errors.New("invalid date window")
	// ErrNoAccounts means a batch request named no accounts at all.
	ErrNoAccounts = errors.New("no accounts requested")
)

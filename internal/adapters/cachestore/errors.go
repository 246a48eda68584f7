package cachestore

import "errors"

// Sentinel kinds for cache record handling.
var (
	// ErrNoRecord means the account has no stored record yet.
	ErrNoRecord = errors.New("no cache record")
	// ErrCorruptRecord means the stored record failed to decode.
	ErrCorruptRecord = errors.New("corrupt cache record")
	// ErrVersionMismatch means the stored record uses an old format version.
	ErrVersionMismatch = errors.New("cache record version mismatch")
)

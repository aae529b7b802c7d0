package store

import "errors"

var (
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")

	// ErrStaleEntry reports a compare-and-swap status update that lost to a
	// concurrent transition.
	ErrStaleEntry = errors.New("stale waitlist entry")

	ErrDuplicateEntry   = errors.New("duplicate waitlist entry")
	ErrEntryNotNotified = errors.New("waitlist entry not notified")
	ErrEntryExpired     = errors.New("waitlist entry expired")
)

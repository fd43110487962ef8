package dao

import "errors"

// Common DAO errors. Sentinel values let callers use errors.Is instead of
// string comparisons.
var (
	// ErrNilEntity is returned when the caller attempts to persist a nil pointer.
	ErrNilEntity = errors.New("dao: nil entity")

	// ErrConflict is returned by Insert when the key is already taken.
	ErrConflict = errors.New("dao: conflict")
)

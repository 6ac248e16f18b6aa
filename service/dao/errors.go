package dao

import "errors"

// Sentinel errors shared by all backends so callers can branch with
// errors.Is instead of string comparison.
var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID indicates an empty or otherwise invalid key.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when persisting a nil pointer.
	ErrNilEntity = errors.New("dao: nil entity")
)

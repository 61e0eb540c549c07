package store

import "errors"

var (
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrVenueUnavailable    = errors.New("venue unavailable")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)

package models

import "errors"

// Domain error kinds. Deeper layers wrap these with %w so boundaries can
// map them to the right HTTP status with errors.Is.
var (
	// ErrNotFound marks a missing raffle, payment or draw. Never retried.
	ErrNotFound = errors.New("not found")

	// ErrInvalidOperation marks a business-rule violation (raffle closed,
	// not enough tickets, no valid tickets, draw already executed).
	ErrInvalidOperation = errors.New("invalid operation")
)

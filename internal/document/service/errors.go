package service

import "errors"

// Failure taxonomy surfaced to handlers. Every authorization or validation
// failure is detected before any write and mapped to one of these; anything
// else is treated as an internal persistence failure.
var (
	ErrAccessDenied = errors.New("access denied")
	ErrForbidden    = errors.New("forbidden: owner only")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidToken = errors.New("invalid invite token")
)

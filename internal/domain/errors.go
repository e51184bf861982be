package domain

import "errors"

// Validation errors surfaced to callers as HTTP 400.
var (
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrMissingRecipient = errors.New("recipientAddress is required")
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

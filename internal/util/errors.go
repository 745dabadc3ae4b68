package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrMissingCredentials indicates required PSN credentials are not set
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrTimeout indicates a bounded remote call exceeded its deadline
	ErrTimeout = errors.New("deadline exceeded")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Package errs defines the stable error taxonomy shared by the account-security
// modules. Handlers map these onto coarse response codes; anything not listed
// here is treated as internal and its detail is logged, never exposed.
package errs

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrRateLimited      = errors.New("rate limited")
	ErrNotFound         = errors.New("not found")
	ErrExpired          = errors.New("expired")
	ErrAttemptsExceeded = errors.New("attempts exceeded")
	ErrTransportFailure = errors.New("transport failure")
	ErrStorageConflict  = errors.New("storage conflict")
)

package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict: resource already exists")
	ErrValidation    = errors.New("validation failed")
	ErrAlreadyQueued = errors.New("ping already queued for this target and weblog")
)

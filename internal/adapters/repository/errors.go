package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("document not found")
	ErrUnknownBackend = errors.New("unknown storage backend")
	ErrInvalidLimit   = errors.New("invalid cluster limit")
	ErrMissingURL     = errors.New("mongo url is required")
	ErrMissingDB      = errors.New("mongo database is required")
	ErrMissingID      = errors.New("document id is required")
)

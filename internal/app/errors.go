package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrMissingStore    = errors.New("encounter and cluster stores are required")
	ErrMissingResolver = errors.New("account resolver is required")
)

package scheduler

import "errors"

// Sentinel kinds for scheduler errors.
var (
	ErrDuplicateTask = errors.New("task already registered")
	ErrUnknownTask   = errors.New("task not registered")
	ErrInvalidTask   = errors.New("task has no name")
	ErrTaskRunning   = errors.New("task is already running")
)

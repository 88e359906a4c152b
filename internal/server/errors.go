package server

import "errors"

// Sentinel errors for service operations.
var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrEmptyTitle    = errors.New("title must not be empty")
	ErrInvalidStatus = errors.New("status must be one of todo, in_progress, done")
)

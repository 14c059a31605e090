package repository

import "errors"

// Common repository errors
var (
	ErrRunNotFound = errors.New("sync run not found")
	ErrInvalidUUID = errors.New("invalid UUID format")
)

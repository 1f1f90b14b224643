package domain

import "errors"

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrNotConfigured = errors.New("not configured")
)

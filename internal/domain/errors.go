package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrProviderFailure     = errors.New("provider failure")
	ErrDuplicateEmail      = errors.New("email already registered")
)

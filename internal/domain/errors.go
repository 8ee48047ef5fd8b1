package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNoActionAvailable = errors.New("no action available")
	ErrInvalidVariant    = errors.New("invalid variant")
	ErrInvalidInput      = errors.New("invalid input")
	ErrJobInProgress     = errors.New("job is in progress")
	ErrJobNotResumable   = errors.New("job is not resumable")
)

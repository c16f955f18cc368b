package service

import "errors"

// Credential failure taxonomy. Everything except ErrAccountLocked is
// downgraded to anonymous by the middleware and never reaches a client
// as an error.
var (
	ErrNoCredential      = errors.New("no credential presented")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrSessionNotFound   = errors.New("session expired or evicted")
	ErrUnknownUser       = errors.New("session user no longer exists")
	ErrAccountLocked     = errors.New("account locked")
	ErrBadLogin          = errors.New("email or password incorrect")
)

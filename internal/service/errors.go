package service

import "errors"

var (
	// ErrInvalidInput marks request data the backend refuses to store
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized marks a missing, expired or unknown session
	ErrUnauthorized = errors.New("unauthorized")
)

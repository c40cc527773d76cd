package domain

import "errors"

var (
	// ErrInvalidTransition is returned when a lifecycle move is not part of the state machine.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	// ErrMissingConfiguration marks a required setting or dependency endpoint that was not provided.
	ErrMissingConfiguration = errors.New("missing configuration")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNotReady             = errors.New("instance not ready")
	ErrShutdownInProgress   = errors.New("shutdown already in progress")
	ErrAdminDisabled        = errors.New("admin endpoints disabled")
	// ErrNotRegistered means the registry holds no live entry for the instance.
	ErrNotRegistered = errors.New("instance not registered")
)

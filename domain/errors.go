package domain

import "errors"

var (
	// ErrMissingInput is returned when a required field is absent
	ErrMissingInput = errors.New("missing input")
	// ErrCloneFailed is returned when the source repository cannot be acquired
	ErrCloneFailed = errors.New("clone failed")
	// ErrMissingCredential is returned when a strategy-specific secret is absent
	ErrMissingCredential = errors.New("missing credential")
	// ErrProcessFailed describes a supervised process that exited non-zero
	ErrProcessFailed = errors.New("process failed")
	// ErrAnalysisUnavailable is returned when the inference endpoint cannot be used
	ErrAnalysisUnavailable = errors.New("analysis unavailable")
	// ErrNotFound is returned for unknown deployment ids
	ErrNotFound = errors.New("deployment not found")
	// ErrInvalidTransition is returned when a status change violates the state machine
	ErrInvalidTransition = errors.New("invalid status transition")
)

package bootstrap

import (
	"errors"
	"fmt"
)

const (
	ExitOK                  = 0
	ExitInitializationError = 1
	ExitRuntimeError        = 2
)

// InitializationError reports a component that could not be constructed during bootstrap.
// Initialization is all-or-nothing: when this error is returned nothing is left running.
type InitializationError struct {
	Component string
	Err       error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize %s: %v", e.Component, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

func newInitializationError(component string, err error) *InitializationError {
	var existing *InitializationError
	if errors.As(err, &existing) {
		return existing
	}
	return &InitializationError{Component: component, Err: err}
}

// ExitCode maps the result of Run to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var initErr *InitializationError
	if errors.As(err, &initErr) {
		return ExitInitializationError
	}
	return ExitRuntimeError
}

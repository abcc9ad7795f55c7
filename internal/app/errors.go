package app

import "fmt"

// ErrConnection represents a failure to reach the sandbox database.
type ErrConnection struct {
	Cause error
}

func (e *ErrConnection) Error() string {
	return fmt.Sprintf("connection error: %v", e.Cause)
}

func (e *ErrConnection) Unwrap() error {
	return e.Cause
}

// ErrStore represents a failure reading or writing assignments.
type ErrStore struct {
	Op    string
	Cause error
}

func (e *ErrStore) Error() string {
	return fmt.Sprintf("assignment store: %s: %v", e.Op, e.Cause)
}

func (e *ErrStore) Unwrap() error {
	return e.Cause
}

// ErrConfig represents a configuration error.
type ErrConfig struct {
	Cause error
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config error: %v", e.Cause)
}

func (e *ErrConfig) Unwrap() error {
	return e.Cause
}

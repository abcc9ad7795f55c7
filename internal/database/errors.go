package database

import "errors"

// ErrStatementTimeout marks a statement the server cancelled for running too long.
var ErrStatementTimeout = errors.New("statement timeout")

// StatementError is a failure reported by the database server for one statement.
// Error returns the server message unchanged.
type StatementError struct {
	Code    string
	Message string
	Timeout bool
	Cause   error
}

func (e *StatementError) Error() string {
	return e.Message
}

func (e *StatementError) Unwrap() error {
	return e.Cause
}

// Is reports ErrStatementTimeout for server-side cancellations.
func (e *StatementError) Is(target error) bool {
	return e.Timeout && target == ErrStatementTimeout
}

package gateway

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCanceled is the cause recorded when the caller went away mid-execution.
	ErrCanceled = errors.New("query cancelled")
	// ErrNoConnection is the cause recorded when the pool had room but no
	// new connection could be opened before the acquire deadline.
	ErrNoConnection = errors.New("could not connect to the database")
)

// ErrInput represents a missing or empty query.
type ErrInput struct {
	Message string
}

func (e *ErrInput) Error() string {
	return e.Message
}

// ErrPolicy represents a statement the validator refused.
type ErrPolicy struct {
	Reason string
}

func (e *ErrPolicy) Error() string {
	return fmt.Sprintf("policy violation: %s", e.Reason)
}

// ErrExecution represents a failure reported while running a statement.
// Error returns the driver message unchanged.
type ErrExecution struct {
	Cause error
}

func (e *ErrExecution) Error() string {
	return e.Cause.Error()
}

func (e *ErrExecution) Unwrap() error {
	return e.Cause
}

// ErrTimedOut represents a statement that ran past its time limit.
type ErrTimedOut struct {
	After time.Duration
	Cause error
}

func (e *ErrTimedOut) Error() string {
	return fmt.Sprintf("query timed out after %s", e.After)
}

func (e *ErrTimedOut) Unwrap() error {
	return e.Cause
}

// ErrPoolExhausted represents a request that could not get a connection in time.
type ErrPoolExhausted struct {
	Wait  time.Duration
	Cause error
}

func (e *ErrPoolExhausted) Error() string {
	return fmt.Sprintf("no database connection available after %s", e.Wait)
}

func (e *ErrPoolExhausted) Unwrap() error {
	return e.Cause
}

// Class groups gateway errors by how a caller should report them.
type Class int

const (
	ClassNone Class = iota
	ClassInput
	ClassPolicy
	ClassExecution
	ClassTimedOut
	ClassPoolExhausted
	ClassUnknown
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassInput:
		return "input"
	case ClassPolicy:
		return "policy"
	case ClassExecution:
		return "execution"
	case ClassTimedOut:
		return "timed_out"
	case ClassPoolExhausted:
		return "pool_exhausted"
	default:
		return "unknown"
	}
}

// Classify reports which gateway error err carries.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	var (
		inputErr     *ErrInput
		policyErr    *ErrPolicy
		timeoutErr   *ErrTimedOut
		exhaustedErr *ErrPoolExhausted
		execErr      *ErrExecution
	)
	switch {
	case errors.As(err, &inputErr):
		return ClassInput
	case errors.As(err, &policyErr):
		return ClassPolicy
	case errors.As(err, &timeoutErr):
		return ClassTimedOut
	case errors.As(err, &exhaustedErr):
		return ClassPoolExhausted
	case errors.As(err, &execErr):
		return ClassExecution
	default:
		return ClassUnknown
	}
}

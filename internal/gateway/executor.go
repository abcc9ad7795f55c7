package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joacominatel/ciphersql/internal/database"
)

// Default limits used when ExecutorOptions leaves them unset.
const (
	DefaultAcquireTimeout   = 3 * time.Second
	DefaultStatementTimeout = 5 * time.Second
)

// ExecutorOptions bounds how long a request may wait for and hold a connection.
type ExecutorOptions struct {
	AcquireTimeout   time.Duration
	StatementTimeout time.Duration
	Logger           *slog.Logger
}

// Executor runs validated statements on connections taken from its pool.
type Executor struct {
	pool             database.Pool
	acquireTimeout   time.Duration
	statementTimeout time.Duration
	logger           *slog.Logger
}

// NewExecutor creates an executor that owns pool for the lifetime of the process.
func NewExecutor(pool database.Pool, opts ExecutorOptions) *Executor {
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = DefaultAcquireTimeout
	}
	if opts.StatementTimeout <= 0 {
		opts.StatementTimeout = DefaultStatementTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		pool:             pool,
		acquireTimeout:   opts.AcquireTimeout,
		statementTimeout: opts.StatementTimeout,
		logger:           opts.Logger,
	}
}

// StatementTimeout returns the per-statement time limit.
func (e *Executor) StatementTimeout() time.Duration {
	return e.statementTimeout
}

// Execute runs one statement. The connection is held only for the duration
// of the statement and is released on every return path. Failures are never
// retried.
func (e *Executor) Execute(ctx context.Context, statement string) (*database.RawResult, error) {
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, e.acquireTimeout)
	conn, err := e.pool.Acquire(acquireCtx)
	cancelAcquire()
	if err != nil {
		return nil, e.acquireError(ctx, err)
	}
	defer conn.Release()

	stmtCtx, cancel := context.WithTimeout(ctx, e.statementTimeout)
	defer cancel()

	raw, err := conn.Query(stmtCtx, statement)
	if err != nil {
		return nil, e.queryError(ctx, stmtCtx, err)
	}
	return raw, nil
}

// acquireError labels an acquire deadline as exhaustion only when every
// connection the pool may open is checked out. A deadline with spare
// capacity means a new connection could not be dialled in time.
func (e *Executor) acquireError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &ErrExecution{Cause: fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())}
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		return &ErrExecution{Cause: err}
	}
	if sr, ok := e.pool.(database.SaturationReporter); ok && !sr.Saturated() {
		e.logger.Warn("database connection not established", slog.Duration("waited", e.acquireTimeout))
		return &ErrExecution{Cause: fmt.Errorf("%w after %s", ErrNoConnection, e.acquireTimeout)}
	}
	e.logger.Warn("connection pool exhausted", slog.Duration("waited", e.acquireTimeout))
	return &ErrPoolExhausted{Wait: e.acquireTimeout, Cause: err}
}

// queryError checks caller cancellation first: the server reports a
// cancel request with the same SQLSTATE as a statement timeout.
func (e *Executor) queryError(ctx, stmtCtx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return &ErrExecution{Cause: fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())}
	case errors.Is(err, database.ErrStatementTimeout):
		return &ErrTimedOut{After: e.statementTimeout, Cause: err}
	case errors.Is(stmtCtx.Err(), context.DeadlineExceeded):
		return &ErrTimedOut{After: e.statementTimeout, Cause: err}
	default:
		return &ErrExecution{Cause: err}
	}
}

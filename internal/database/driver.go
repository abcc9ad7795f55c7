package database

import (
	"context"
	"errors"
)

// ErrNotConnected is returned when an operation needs a pool that was never opened.
var ErrNotConnected = errors.New("not connected")

// Pool is a bounded set of reusable connections.
// All implementations must be safe for concurrent use.
type Pool interface {
	// Acquire takes one connection from the pool, waiting until ctx is done.
	Acquire(ctx context.Context) (Conn, error)
}

// SaturationReporter is implemented by pools that can tell whether every
// connection they may open is checked out.
type SaturationReporter interface {
	Saturated() bool
}

// Conn is a single pooled connection. Release must be called exactly once.
type Conn interface {
	// Query runs one statement and returns its rows. No transaction or
	// session state set up by Query may outlive the call.
	Query(ctx context.Context, statement string) (*RawResult, error)

	// Release returns the connection to its pool.
	Release()
}

// Driver is the full database surface used by the application.
type Driver interface {
	Pool

	// Connect establishes the connection pool.
	Connect(ctx context.Context, dsn string) error

	// Close closes the pool.
	Close() error

	// Ping checks if the connection is alive.
	Ping(ctx context.Context) error

	// ListTables returns all table names in a schema.
	ListTables(ctx context.Context, schema string) ([]string, error)

	// GetColumns returns all columns for a table.
	GetColumns(ctx context.Context, schema, table string) ([]Column, error)

	// DatabaseName returns the name of the connected database.
	DatabaseName() string
}

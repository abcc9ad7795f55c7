package testutil

import (
	"context"
	"sync"

	"github.com/joacominatel/ciphersql/internal/database"
)

// FakeDriver is an in-memory database.Driver. QueryFunc answers every
// statement; a nil QueryFunc returns an empty result.
type FakeDriver struct {
	mu sync.Mutex

	QueryFunc  func(ctx context.Context, statement string) (*database.RawResult, error)
	ConnectErr error
	PingErr    error
	AcquireErr error
	Tables     []string
	Columns    map[string][]database.Column
	Name       string

	connected  bool
	closed     bool
	statements []string
	released   int
	acquired   int
}

// Statements returns every statement that reached the fake, in order.
func (d *FakeDriver) Statements() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.statements...)
}

// Balanced reports whether every acquired connection was released.
func (d *FakeDriver) Balanced() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquired == d.released
}

// Connected reports whether Connect succeeded.
func (d *FakeDriver) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Closed reports whether Close was called.
func (d *FakeDriver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *FakeDriver) Connect(_ context.Context, _ string) error {
	if d.ConnectErr != nil {
		return d.ConnectErr
	}
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()
	return nil
}

func (d *FakeDriver) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *FakeDriver) Ping(_ context.Context) error {
	return d.PingErr
}

func (d *FakeDriver) Acquire(ctx context.Context) (database.Conn, error) {
	if d.AcquireErr != nil {
		return nil, d.AcquireErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.acquired++
	d.mu.Unlock()
	return &fakeConn{d: d}, nil
}

func (d *FakeDriver) ListTables(_ context.Context, _ string) ([]string, error) {
	return d.Tables, nil
}

func (d *FakeDriver) GetColumns(_ context.Context, _, table string) ([]database.Column, error) {
	return d.Columns[table], nil
}

func (d *FakeDriver) DatabaseName() string {
	return d.Name
}

type fakeConn struct {
	d *FakeDriver
}

func (c *fakeConn) Query(ctx context.Context, statement string) (*database.RawResult, error) {
	c.d.mu.Lock()
	c.d.statements = append(c.d.statements, statement)
	fn := c.d.QueryFunc
	c.d.mu.Unlock()
	if fn == nil {
		return &database.RawResult{}, nil
	}
	return fn(ctx, statement)
}

func (c *fakeConn) Release() {
	c.d.mu.Lock()
	c.d.released++
	c.d.mu.Unlock()
}

// Result builds a RawResult from column names and rows.
func Result(columns []string, rows ...[]any) *database.RawResult {
	fields := make([]database.Field, len(columns))
	for i, c := range columns {
		fields[i] = database.Field{Name: c}
	}
	return &database.RawResult{Fields: fields, Rows: rows}
}

// Employees is a two-row result over the employees sandbox table.
func Employees() *database.RawResult {
	return Result(
		[]string{"id", "name", "department", "salary"},
		[]any{int32(1), "Alice", "Engineering", int32(82000)},
		[]any{int32(2), "Bob", "Engineering", int32(71000)},
	)
}

// BlockUntilDone answers only when ctx ends, like a statement that
// outlives its deadline.
func BlockUntilDone(ctx context.Context, _ string) (*database.RawResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

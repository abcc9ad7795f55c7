package gateway

import (
	"context"
	"sync"

	"github.com/joacominatel/ciphersql/internal/database"
)

// fakePool is an in-memory database.Pool that counts acquire/release calls.
type fakePool struct {
	mu         sync.Mutex
	acquired   int
	released   int
	inUse      int
	maxInUse   int
	statements []string

	// slots bounds concurrent connections when non-nil.
	slots      chan struct{}
	acquireErr error
	query      func(ctx context.Context, statement string) (*database.RawResult, error)
}

func newFakePool(capacity int) *fakePool {
	p := &fakePool{}
	if capacity > 0 {
		p.slots = make(chan struct{}, capacity)
	}
	return p
}

func (p *fakePool) Acquire(ctx context.Context) (database.Conn, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	if p.slots != nil {
		select {
		case p.slots <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	p.acquired++
	p.inUse++
	if p.inUse > p.maxInUse {
		p.maxInUse = p.inUse
	}
	p.mu.Unlock()
	return &fakeConn{pool: p}, nil
}

// Saturated reports whether every slot is taken. Unbounded pools never are.
func (p *fakePool) Saturated() bool {
	return p.slots != nil && len(p.slots) == cap(p.slots)
}

func (p *fakePool) counts() (acquired, released int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired, p.released
}

type fakeConn struct {
	pool *fakePool
}

func (c *fakeConn) Query(ctx context.Context, statement string) (*database.RawResult, error) {
	c.pool.mu.Lock()
	c.pool.statements = append(c.pool.statements, statement)
	query := c.pool.query
	c.pool.mu.Unlock()

	if query == nil {
		return &database.RawResult{}, nil
	}
	return query(ctx, statement)
}

func (c *fakeConn) Release() {
	c.pool.mu.Lock()
	c.pool.released++
	c.pool.inUse--
	c.pool.mu.Unlock()
	if c.pool.slots != nil {
		<-c.pool.slots
	}
}

// blockUntilDone simulates a statement that only ends when its context does.
func blockUntilDone(ctx context.Context, _ string) (*database.RawResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func employeesResult(columns ...string) *database.RawResult {
	fields := make([]database.Field, len(columns))
	row := make([]any, len(columns))
	for i, c := range columns {
		fields[i] = database.Field{Name: c}
		switch c {
		case "name":
			row[i] = "Alice"
		case "salary":
			row[i] = int32(82000)
		default:
			row[i] = nil
		}
	}
	return &database.RawResult{Fields: fields, Rows: [][]any{row}}
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/joacominatel/ciphersql/internal/database"
	"github.com/joacominatel/ciphersql/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, pool database.Pool, acquire, statement time.Duration) *Executor {
	t.Helper()
	return NewExecutor(pool, ExecutorOptions{
		AcquireTimeout:   acquire,
		StatementTimeout: statement,
		Logger:           testutil.NewTestLogger(t),
	})
}

func TestExecutor_Execute(t *testing.T) {
	driverErr := &database.StatementError{Code: "42P01", Message: `relation "nonexistent_table" does not exist`}

	tests := []struct {
		name      string
		query     func(ctx context.Context, statement string) (*database.RawResult, error)
		wantClass Class
		wantMsg   string
	}{
		{
			name: "success",
			query: func(context.Context, string) (*database.RawResult, error) {
				return employeesResult("name"), nil
			},
			wantClass: ClassNone,
		},
		{
			name: "driver error keeps message",
			query: func(context.Context, string) (*database.RawResult, error) {
				return nil, driverErr
			},
			wantClass: ClassExecution,
			wantMsg:   `relation "nonexistent_table" does not exist`,
		},
		{
			name: "server side statement timeout",
			query: func(context.Context, string) (*database.RawResult, error) {
				return nil, &database.StatementError{Code: "57014", Message: "canceling statement due to statement timeout", Timeout: true}
			},
			wantClass: ClassTimedOut,
			wantMsg:   "query timed out after 50ms",
		},
		{
			name:      "client side deadline",
			query:     blockUntilDone,
			wantClass: ClassTimedOut,
			wantMsg:   "query timed out after 50ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newFakePool(1)
			pool.query = tt.query
			exec := newTestExecutor(t, pool, time.Second, 50*time.Millisecond)

			res, err := exec.Execute(context.Background(), "SELECT 1")

			assert.Equal(t, tt.wantClass, Classify(err))
			if tt.wantClass == ClassNone {
				require.NoError(t, err)
				assert.NotNil(t, res)
			} else {
				assert.Nil(t, res)
				assert.EqualError(t, err, tt.wantMsg)
			}

			acquired, released := pool.counts()
			assert.Equal(t, 1, acquired)
			assert.Equal(t, 1, released, "connection must be released on every path")
		})
	}
}

func TestExecutor_PoolExhausted(t *testing.T) {
	pool := newFakePool(1)
	pool.query = blockUntilDone
	exec := newTestExecutor(t, pool, 30*time.Millisecond, time.Second)

	// Hold the only connection.
	holdCtx, release := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = exec.Execute(holdCtx, "SELECT pg_sleep(10)")
	}()
	require.Eventually(t, func() bool {
		acquired, _ := pool.counts()
		return acquired == 1
	}, time.Second, 5*time.Millisecond)

	start := time.Now()
	_, err := exec.Execute(context.Background(), "SELECT 1")
	assert.Less(t, time.Since(start), 500*time.Millisecond, "must fail fast")

	var exhausted *ErrPoolExhausted
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 30*time.Millisecond, exhausted.Wait)

	release()
	<-done
	acquired, released := pool.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released)
}

func TestExecutor_ClientDisconnectCancelsStatement(t *testing.T) {
	pool := newFakePool(1)
	started := make(chan struct{})
	var statementErr error
	pool.query = func(ctx context.Context, _ string) (*database.RawResult, error) {
		close(started)
		<-ctx.Done()
		statementErr = ctx.Err()
		return nil, ctx.Err()
	}
	exec := newTestExecutor(t, pool, time.Second, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := exec.Execute(ctx, "SELECT pg_sleep(10)")
	assert.Equal(t, ClassExecution, Classify(err))
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, statementErr, context.Canceled)

	_, released := pool.counts()
	assert.Equal(t, 1, released)
}

func TestExecutor_AlreadyCancelledContext(t *testing.T) {
	pool := newFakePool(1)
	exec := newTestExecutor(t, pool, time.Second, time.Second)

	// Fill the pool so acquisition has to wait on ctx.
	pool.slots <- struct{}{}
	defer func() { <-pool.slots }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Execute(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrCanceled)
	assert.Equal(t, ClassExecution, Classify(err))
}

func TestExecutor_AcquireFailure(t *testing.T) {
	pool := newFakePool(0)
	pool.acquireErr = fmt.Errorf("acquire: %w", errors.New("dial tcp: connection refused"))
	exec := newTestExecutor(t, pool, time.Second, time.Second)

	_, err := exec.Execute(context.Background(), "SELECT 1")
	assert.Equal(t, ClassExecution, Classify(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestExecutor_AcquireDeadlineWithSpareCapacity(t *testing.T) {
	pool := newFakePool(2)
	pool.acquireErr = fmt.Errorf("acquire: %w", context.DeadlineExceeded)
	exec := newTestExecutor(t, pool, 20*time.Millisecond, time.Second)

	_, err := exec.Execute(context.Background(), "SELECT 1")

	assert.Equal(t, ClassExecution, Classify(err))
	assert.ErrorIs(t, err, ErrNoConnection)
	var exhausted *ErrPoolExhausted
	assert.False(t, errors.As(err, &exhausted))
}

func TestExecutor_CancelRequestIsNotTimeout(t *testing.T) {
	pool := newFakePool(1)
	ctx, cancel := context.WithCancel(context.Background())
	pool.query = func(context.Context, string) (*database.RawResult, error) {
		cancel()
		return nil, &database.StatementError{
			Code:    "57014",
			Message: "canceling statement due to statement timeout",
			Timeout: true,
		}
	}
	exec := newTestExecutor(t, pool, time.Second, 10*time.Second)

	_, err := exec.Execute(ctx, "SELECT pg_sleep(10)")

	assert.Equal(t, ClassExecution, Classify(err))
	assert.ErrorIs(t, err, ErrCanceled)
	_, released := pool.counts()
	assert.Equal(t, 1, released)
}

func TestExecutor_ReleasesOnPanic(t *testing.T) {
	pool := newFakePool(1)
	pool.query = func(context.Context, string) (*database.RawResult, error) {
		panic("driver bug")
	}
	exec := newTestExecutor(t, pool, time.Second, time.Second)

	assert.Panics(t, func() {
		_, _ = exec.Execute(context.Background(), "SELECT 1")
	})
	_, released := pool.counts()
	assert.Equal(t, 1, released)
}

func TestExecutor_ConcurrentRequestsRespectPoolBound(t *testing.T) {
	pool := newFakePool(3)
	pool.query = func(context.Context, string) (*database.RawResult, error) {
		time.Sleep(5 * time.Millisecond)
		return employeesResult("name"), nil
	}
	exec := newTestExecutor(t, pool, 5*time.Second, time.Second)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := exec.Execute(context.Background(), "SELECT name FROM employees")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	acquired, released := pool.counts()
	assert.Equal(t, 20, acquired)
	assert.Equal(t, 20, released)
	assert.LessOrEqual(t, pool.maxInUse, 3)
}

func TestNewExecutor_Defaults(t *testing.T) {
	exec := NewExecutor(newFakePool(1), ExecutorOptions{})
	assert.Equal(t, DefaultStatementTimeout, exec.StatementTimeout())
	assert.Equal(t, DefaultAcquireTimeout, exec.acquireTimeout)
}

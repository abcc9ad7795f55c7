package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/joacominatel/ciphersql/internal/database"
	"github.com/joacominatel/ciphersql/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, pool *fakePool) *Gateway {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	exec := NewExecutor(pool, ExecutorOptions{
		AcquireTimeout:   time.Second,
		StatementTimeout: time.Second,
		Logger:           logger,
	})
	return New(exec, logger)
}

func TestGateway_Run_Scenarios(t *testing.T) {
	missing := &database.StatementError{Code: "42P01", Message: `relation "nonexistent_table" does not exist`}

	tests := []struct {
		name         string
		query        Query
		result       *database.RawResult
		driverErr    error
		wantClass    Class
		wantErr      string
		wantCorrect  bool
		wantAcquires int
		wantExecuted string
	}{
		{
			name:         "graded select",
			query:        Query{Text: "SELECT name, salary FROM employees WHERE salary > 75000", Expected: []string{"name", "salary"}},
			result:       employeesResult("name", "salary"),
			wantCorrect:  true,
			wantAcquires: 1,
			wantExecuted: "SELECT name, salary FROM employees WHERE salary > 75000",
		},
		{
			name:         "destructive statement never reaches the pool",
			query:        Query{Text: "DROP TABLE employees"},
			wantClass:    ClassPolicy,
			wantErr:      "policy violation: must be a read query",
			wantAcquires: 0,
		},
		{
			name:         "stacked statements",
			query:        Query{Text: "SELECT 1; SELECT 2"},
			wantClass:    ClassPolicy,
			wantErr:      "policy violation: multiple statements forbidden",
			wantAcquires: 0,
		},
		{
			name:         "blank input",
			query:        Query{Text: "   "},
			wantClass:    ClassInput,
			wantErr:      EmptyQueryMessage,
			wantAcquires: 0,
		},
		{
			name:         "missing relation",
			query:        Query{Text: "SELECT * FROM nonexistent_table"},
			driverErr:    missing,
			wantClass:    ClassExecution,
			wantErr:      `relation "nonexistent_table" does not exist`,
			wantAcquires: 1,
			wantExecuted: "SELECT * FROM nonexistent_table",
		},
		{
			name:         "column order does not matter",
			query:        Query{Text: "SELECT salary, name FROM employees", Expected: []string{"name", "salary"}},
			result:       employeesResult("salary", "name"),
			wantCorrect:  true,
			wantAcquires: 1,
			wantExecuted: "SELECT salary, name FROM employees",
		},
		{
			name:         "ungraded select",
			query:        Query{Text: "SELECT name FROM employees;"},
			result:       employeesResult("name"),
			wantCorrect:  false,
			wantAcquires: 1,
			wantExecuted: "SELECT name FROM employees",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newFakePool(1)
			pool.query = func(context.Context, string) (*database.RawResult, error) {
				return tt.result, tt.driverErr
			}
			gw := newTestGateway(t, pool)

			resp, err := gw.Run(context.Background(), tt.query)

			acquired, released := pool.counts()
			assert.Equal(t, tt.wantAcquires, acquired)
			assert.Equal(t, acquired, released)

			if tt.wantExecuted != "" {
				assert.Equal(t, []string{tt.wantExecuted}, pool.statements)
			}

			if tt.wantClass != ClassNone {
				require.Error(t, err)
				assert.Nil(t, resp)
				assert.Equal(t, tt.wantClass, Classify(err))
				assert.EqualError(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantCorrect, resp.IsCorrect)
			assert.Equal(t, len(resp.Rows), resp.RowCount)
		})
	}
}

func TestGateway_Run_ShapesRows(t *testing.T) {
	pool := newFakePool(1)
	pool.query = func(context.Context, string) (*database.RawResult, error) {
		return &database.RawResult{
			Fields: []database.Field{{Name: "name"}, {Name: "manager"}},
			Rows:   [][]any{{"Alice", nil}},
		}, nil
	}
	gw := newTestGateway(t, pool)

	resp, err := gw.Run(context.Background(), Query{Text: "SELECT name, manager FROM employees"})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "manager"}, resp.Columns)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "Alice", resp.Rows[0]["name"])
	v, ok := resp.Rows[0]["manager"]
	assert.True(t, ok, "null values keep their key")
	assert.Nil(t, v)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/joacominatel/ciphersql/internal/database"
	"github.com/joacominatel/ciphersql/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantMessage string
		wantTimeout bool
		wantStmt    bool
	}{
		{
			name:        "missing relation",
			err:         &pgconn.PgError{Code: "42P01", Message: `relation "nonexistent_table" does not exist`},
			wantMessage: `relation "nonexistent_table" does not exist`,
			wantStmt:    true,
		},
		{
			name:        "statement timeout",
			err:         fmt.Errorf("query: %w", &pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"}),
			wantMessage: "canceling statement due to statement timeout",
			wantTimeout: true,
			wantStmt:    true,
		},
		{
			name:        "cancel request",
			err:         &pgconn.PgError{Code: "57014", Message: "canceling statement due to user request"},
			wantMessage: "canceling statement due to user request",
			wantStmt:    true,
		},
		{
			name:        "read only transaction",
			err:         &pgconn.PgError{Code: "25006", Message: "cannot execute INSERT in a read-only transaction"},
			wantMessage: "cannot execute INSERT in a read-only transaction",
			wantStmt:    true,
		},
		{
			name:        "non server error",
			err:         errors.New("conn closed"),
			wantMessage: "conn closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err)
			assert.Equal(t, tt.wantMessage, got.Error())
			assert.Equal(t, tt.wantTimeout, errors.Is(got, database.ErrStatementTimeout))

			var stmtErr *database.StatementError
			assert.Equal(t, tt.wantStmt, errors.As(got, &stmtErr))
		})
	}
}

func TestDriver_NotConnected(t *testing.T) {
	d := New(Options{}, nil)
	ctx := context.Background()

	_, err := d.Acquire(ctx)
	assert.ErrorIs(t, err, database.ErrNotConnected)
	assert.ErrorIs(t, d.Ping(ctx), database.ErrNotConnected)
	assert.False(t, d.Saturated())

	_, err = d.ListTables(ctx, "public")
	assert.ErrorIs(t, err, database.ErrNotConnected)
	assert.NoError(t, d.Close())
}

func TestNew_Defaults(t *testing.T) {
	d := New(Options{MaxConns: 0, MinConns: 9}, nil)
	assert.Equal(t, int32(5), d.opts.MaxConns)
	assert.Equal(t, int32(1), d.opts.MinConns)
}

// The tests below need a live server: CIPHERSQL_TEST_DSN=postgres://...
func connectTestDriver(t *testing.T) *Driver {
	t.Helper()
	dsn := os.Getenv("CIPHERSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("CIPHERSQL_TEST_DSN not set")
	}
	d := New(Options{MaxConns: 2, MinConns: 1}, testutil.NewTestLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, d.Connect(ctx, dsn))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestConn_Query_Integration(t *testing.T) {
	d := connectTestDriver(t)
	ctx := context.Background()

	c, err := d.Acquire(ctx)
	require.NoError(t, err)
	defer c.Release()

	res, err := c.Query(ctx, "SELECT 1 AS one, 'x'::text AS label, NULL::int AS empty")
	require.NoError(t, err)
	require.Len(t, res.Fields, 3)
	assert.Equal(t, "one", res.Fields[0].Name)
	assert.Equal(t, "int4", res.Fields[0].TypeName)
	require.Len(t, res.Rows, 1)
	assert.Nil(t, res.Rows[0][2])
}

func TestConn_Query_ReadOnly_Integration(t *testing.T) {
	d := connectTestDriver(t)
	ctx := context.Background()

	c, err := d.Acquire(ctx)
	require.NoError(t, err)
	defer c.Release()

	_, err = c.Query(ctx, "WITH t AS (SELECT 1) SELECT nextval('ciphersql_missing_seq')")
	var stmtErr *database.StatementError
	require.ErrorAs(t, err, &stmtErr)
}

func TestConn_Query_Timeout_Integration(t *testing.T) {
	d := connectTestDriver(t)

	c, err := d.Acquire(context.Background())
	require.NoError(t, err)
	defer c.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err = c.Query(ctx, "SELECT pg_sleep(5)")
	require.Error(t, err)
	assert.True(t, errors.Is(err, database.ErrStatementTimeout) || errors.Is(err, context.DeadlineExceeded))
}

func TestDriver_Saturated_Integration(t *testing.T) {
	d := connectTestDriver(t)
	ctx := context.Background()

	first, err := d.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, d.Saturated())

	second, err := d.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, d.Saturated())

	second.Release()
	assert.False(t, d.Saturated())
	first.Release()
}

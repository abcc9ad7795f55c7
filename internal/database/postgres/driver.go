package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joacominatel/ciphersql/internal/database"
)

// codeQueryCanceled is raised both when statement_timeout fires and when a
// cancel request arrives; the message tells them apart.
const codeQueryCanceled = "57014"

// Options controls the size and lifetime of the connection pool.
type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Driver implements the database.Driver interface for PostgreSQL.
type Driver struct {
	pool   *pgxpool.Pool
	dbName string
	opts   Options
	logger *slog.Logger
}

// New creates a new PostgreSQL driver.
// If logger is nil, a discard logger is used.
func New(opts Options, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 5
	}
	if opts.MinConns < 0 || opts.MinConns > opts.MaxConns {
		opts.MinConns = 1
	}
	return &Driver{opts: opts, logger: logger}
}

// Connect establishes a connection pool to PostgreSQL.
// Every session is opened with default_transaction_read_only so writes fail
// server-side even if a statement gets past validation.
func (d *Driver) Connect(ctx context.Context, dsn string) error {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = d.opts.MaxConns
	cfg.MinConns = d.opts.MinConns
	if d.opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = d.opts.MaxConnLifetime
	}
	cfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
	cfg.ConnConfig.RuntimeParams["application_name"] = "ciphersql"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping: %w", err)
	}

	d.pool = pool
	d.dbName = cfg.ConnConfig.Database
	d.logger.Debug("connected to postgres",
		slog.String("host", cfg.ConnConfig.Host),
		slog.String("database", d.dbName),
		slog.Int("max_conns", int(cfg.MaxConns)))
	return nil
}

// Close closes the connection pool.
func (d *Driver) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}

// Ping checks if the connection is alive.
func (d *Driver) Ping(ctx context.Context) error {
	if d.pool == nil {
		return database.ErrNotConnected
	}
	return d.pool.Ping(ctx)
}

// Acquire takes a connection from the pool. It blocks until one is free or ctx is done.
func (d *Driver) Acquire(ctx context.Context) (database.Conn, error) {
	if d.pool == nil {
		return nil, database.ErrNotConnected
	}
	c, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}
	return &conn{c: c}, nil
}

// Saturated reports whether every connection the pool may open is checked
// out. Idle connections and dials in flight do not count.
func (d *Driver) Saturated() bool {
	if d.pool == nil {
		return false
	}
	stat := d.pool.Stat()
	return stat.AcquiredConns() >= stat.MaxConns()
}

// ListTables returns all table names in a schema.
func (d *Driver) ListTables(ctx context.Context, schema string) ([]string, error) {
	if d.pool == nil {
		return nil, database.ErrNotConnected
	}
	rows, err := d.pool.Query(ctx, queryListTables, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// GetColumns returns column metadata for a table.
func (d *Driver) GetColumns(ctx context.Context, schema, table string) ([]database.Column, error) {
	if d.pool == nil {
		return nil, database.ErrNotConnected
	}
	rows, err := d.pool.Query(ctx, queryGetColumns, schema, table)
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}
	defer rows.Close()

	var columns []database.Column
	for rows.Next() {
		var col database.Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// DatabaseName returns the name of the connected database.
func (d *Driver) DatabaseName() string {
	return d.dbName
}

// conn wraps a pooled connection for one statement.
type conn struct {
	c *pgxpool.Conn
}

// Query runs statement inside a read-only transaction that is always rolled
// back, so the connection goes back to the pool without session state.
func (c *conn) Query(ctx context.Context, statement string) (*database.RawResult, error) {
	tx, err := c.c.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, translate(err)
	}
	defer func() {
		// Rollback must run even when ctx is already cancelled.
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = tx.Rollback(rbCtx)
	}()

	if deadline, ok := ctx.Deadline(); ok {
		ms := time.Until(deadline).Milliseconds()
		if ms < 1 {
			ms = 1
		}
		if _, err := tx.Exec(ctx, querySetStatementTimeout, strconv.FormatInt(ms, 10)); err != nil {
			return nil, translate(err)
		}
	}

	rows, err := tx.Query(ctx, statement)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	typeMap := c.c.Conn().TypeMap()
	descs := rows.FieldDescriptions()
	fields := make([]database.Field, len(descs))
	for i, f := range descs {
		fields[i] = database.Field{Name: f.Name}
		if t, ok := typeMap.TypeForOID(f.DataTypeOID); ok {
			fields[i].TypeName = t.Name
		}
	}

	result := &database.RawResult{Fields: fields}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}

	return result, nil
}

// Release returns the connection to the pool.
func (c *conn) Release() {
	c.c.Release()
}

// translate turns a server error into a database.StatementError carrying the
// server's own message. Other errors pass through unchanged.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	return &database.StatementError{
		Code:    pgErr.Code,
		Message: pgErr.Message,
		Timeout: isStatementTimeout(pgErr),
		Cause:   err,
	}
}

func isStatementTimeout(pgErr *pgconn.PgError) bool {
	return pgErr.Code == codeQueryCanceled && strings.Contains(pgErr.Message, "statement timeout")
}

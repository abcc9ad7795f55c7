package assignment

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	queryList = `SELECT id, title, description, difficulty, question, table_name, expected_columns
FROM assignments ORDER BY seq`
	queryGet = `SELECT id, title, description, difficulty, question, table_name, expected_columns
FROM assignments WHERE id = ?`
	queryInsert = `INSERT INTO assignments (id, title, description, difficulty, question, table_name, expected_columns)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	queryDeleteAll = `DELETE FROM assignments`
)

// SQLiteStore implements Store on a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies
// pending migrations. Use ":memory:" for an in-memory database.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Migrate runs all pending migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// List returns every assignment in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, queryList)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return out, nil
}

// Get returns the assignment with the given ID, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Assignment, error) {
	a, err := scanAssignment(s.db.QueryRowContext(ctx, queryGet, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Replace deletes all assignments and inserts the given ones in a single
// transaction. Assignments without an ID get a new UUID.
func (s *SQLiteStore) Replace(ctx context.Context, assignments []Assignment) error {
	for _, a := range assignments {
		if err := a.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, queryDeleteAll); err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}

	for _, a := range assignments {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		cols := a.ExpectedColumns
		if cols == nil {
			cols = []string{}
		}
		encoded, err := json.Marshal(cols)
		if err != nil {
			return fmt.Errorf("encode expected columns: %w", err)
		}
		if _, err := tx.ExecContext(ctx, queryInsert,
			a.ID, a.Title, a.Description, string(a.Difficulty), a.Question, a.TableName, string(encoded),
		); err != nil {
			return fmt.Errorf("insert assignment %q: %w", a.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row scanner) (*Assignment, error) {
	var a Assignment
	var difficulty, expected string
	if err := row.Scan(&a.ID, &a.Title, &a.Description, &difficulty, &a.Question, &a.TableName, &expected); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan assignment: %w", err)
	}
	a.Difficulty = Difficulty(difficulty)
	if err := json.Unmarshal([]byte(expected), &a.ExpectedColumns); err != nil {
		return nil, fmt.Errorf("decode expected columns for %s: %w", a.ID, err)
	}
	return &a, nil
}

package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/joacominatel/ciphersql/internal/assignment"
	"github.com/joacominatel/ciphersql/internal/database"
	"github.com/joacominatel/ciphersql/internal/gateway"
	"github.com/joacominatel/ciphersql/internal/hint"
)

// sandboxSchema is the schema assignment tables live in.
const sandboxSchema = "public"

// ExecuteRequest is one query submission from a front end.
type ExecuteRequest struct {
	Query string
	// Expected grades the result. When nil and AssignmentID is set, the
	// assignment's expected columns are used.
	Expected     []string
	AssignmentID string
}

// Service coordinates the gateway, the assignment store and the hint
// generator for the HTTP server, the TUI and the CLI.
type Service struct {
	driver  database.Driver
	gateway *gateway.Gateway
	store   assignment.Store
	hints   *hint.Generator
	logger  *slog.Logger
}

// Options configures a Service.
type Options struct {
	Executor gateway.ExecutorOptions
	Logger   *slog.Logger
}

// NewService creates a new application service. The driver doubles as the
// gateway's connection pool.
func NewService(driver database.Driver, store assignment.Store, hints *hint.Generator, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Executor.Logger == nil {
		opts.Executor.Logger = logger
	}
	if hints == nil {
		hints = hint.New(hint.Options{}, logger)
	}
	return &Service{
		driver:  driver,
		gateway: gateway.New(gateway.NewExecutor(driver, opts.Executor), logger),
		store:   store,
		hints:   hints,
		logger:  logger,
	}
}

// Connect establishes the database connection pool.
func (s *Service) Connect(ctx context.Context, dsn string) error {
	if err := s.driver.Connect(ctx, dsn); err != nil {
		return &ErrConnection{Cause: err}
	}
	return nil
}

// Disconnect closes the database connection pool.
func (s *Service) Disconnect() error {
	return s.driver.Close()
}

// Ping reports whether the database answers.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.driver.Ping(ctx); err != nil {
		return &ErrConnection{Cause: err}
	}
	return nil
}

// DatabaseName returns the connected database's name.
func (s *Service) DatabaseName() string {
	return s.driver.DatabaseName()
}

// Execute runs a submission through the gateway. Errors are gateway error
// types, see gateway.Classify.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (*gateway.Response, error) {
	expected := req.Expected
	if expected == nil && req.AssignmentID != "" && strings.TrimSpace(req.Query) != "" {
		expected = s.expectedFor(ctx, req.AssignmentID)
	}
	return s.gateway.Run(ctx, gateway.Query{Text: req.Query, Expected: expected})
}

// expectedFor returns nil, leaving the submission ungraded, when the
// assignment cannot be read.
func (s *Service) expectedFor(ctx context.Context, id string) []string {
	if s.store == nil {
		return nil
	}
	a, err := s.store.Get(ctx, id)
	if err != nil {
		s.logger.Warn("expected columns unavailable",
			slog.String("assignment", id),
			slog.Any("error", err))
		return nil
	}
	return a.ExpectedColumns
}

// Assignments lists every assignment.
func (s *Service) Assignments(ctx context.Context) ([]assignment.Assignment, error) {
	if s.store == nil {
		return nil, &ErrStore{Op: "list", Cause: errors.New("no store configured")}
	}
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, &ErrStore{Op: "list", Cause: err}
	}
	return list, nil
}

// Assignment returns one assignment. A missing ID yields an error that
// matches assignment.ErrNotFound.
func (s *Service) Assignment(ctx context.Context, id string) (*assignment.Assignment, error) {
	if s.store == nil {
		return nil, &ErrStore{Op: "get", Cause: errors.New("no store configured")}
	}
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, &ErrStore{Op: "get", Cause: err}
	}
	return a, nil
}

// Seed replaces the stored assignments.
func (s *Service) Seed(ctx context.Context, list []assignment.Assignment) error {
	if s.store == nil {
		return &ErrStore{Op: "seed", Cause: errors.New("no store configured")}
	}
	if err := s.store.Replace(ctx, list); err != nil {
		return &ErrStore{Op: "seed", Cause: err}
	}
	s.logger.Info("assignments seeded", slog.Int("count", len(list)))
	return nil
}

// Hint returns a tutoring hint. It never fails.
func (s *Service) Hint(ctx context.Context, req hint.Request) string {
	return s.hints.Hint(ctx, req)
}

// TableNames lists the sandbox tables.
func (s *Service) TableNames(ctx context.Context) ([]string, error) {
	return s.driver.ListTables(ctx, sandboxSchema)
}

// TableColumns returns column metadata for a sandbox table.
func (s *Service) TableColumns(ctx context.Context, table string) ([]database.Column, error) {
	return s.driver.GetColumns(ctx, sandboxSchema, table)
}

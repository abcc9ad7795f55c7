package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joacominatel/ciphersql/internal/app"
	"github.com/joacominatel/ciphersql/internal/assignment"
	"github.com/joacominatel/ciphersql/internal/config"
	"github.com/joacominatel/ciphersql/internal/database"
	"github.com/joacominatel/ciphersql/internal/database/postgres"
	"github.com/joacominatel/ciphersql/internal/gateway"
	"github.com/joacominatel/ciphersql/internal/hint"
)

// newDriver builds the sandbox database driver. Tests replace it.
var newDriver = func(opts postgres.Options, logger *slog.Logger) database.Driver {
	return postgres.New(opts, logger)
}

// errNoDatabase is returned by commands that need a sandbox database when
// none is configured.
var errNoDatabase = errors.New("no database configured: set database.* in ciphersql.yaml or CIPHERSQL_DATABASE_* variables")

type serviceOptions struct {
	// connect dials the configured database before returning.
	connect bool
	// seed fills an empty assignment store with the default set.
	seed bool
}

// openService wires config into a Service. The returned func releases the
// pool and the assignment store.
func (e *env) openService(ctx context.Context, so serviceOptions) (*app.Service, func(), error) {
	cfg := e.cfg
	if err := cfg.ResolveSecrets(); err != nil {
		return nil, nil, &app.ErrConfig{Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, &app.ErrConfig{Cause: err}
	}
	if so.connect && !cfg.Database.Configured() {
		return nil, nil, errNoDatabase
	}

	store, err := assignment.Open(ctx, cfg.Assignments.Path)
	if err != nil {
		return nil, nil, &app.ErrStore{Op: "open", Cause: err}
	}

	driver := newDriver(postgres.Options{
		MaxConns:        cfg.Pool.MaxConns,
		MinConns:        cfg.Pool.MinConns,
		MaxConnLifetime: cfg.Pool.MaxConnLifetime,
	}, e.logger)

	hints := hint.New(hintOptions(cfg.Hint), e.logger)

	svc := app.NewService(driver, store, hints, app.Options{
		Executor: gateway.ExecutorOptions{
			AcquireTimeout:   cfg.Pool.AcquireTimeout,
			StatementTimeout: cfg.Gateway.StatementTimeout,
		},
		Logger: e.logger,
	})
	cleanup := func() {
		_ = svc.Disconnect()
		_ = store.Close()
	}

	if so.seed {
		if err := seedIfEmpty(ctx, svc, e.logger); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	if so.connect {
		e.logger.Info("connecting", slog.String("database", cfg.Database.DisplayString()))
		if err := svc.Connect(ctx, cfg.Database.DSN()); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	return svc, cleanup, nil
}

func seedIfEmpty(ctx context.Context, svc *app.Service, logger *slog.Logger) error {
	list, err := svc.Assignments(ctx)
	if err != nil {
		return err
	}
	if len(list) > 0 {
		return nil
	}
	defaults := assignment.Defaults()
	if err := svc.Seed(ctx, defaults); err != nil {
		return fmt.Errorf("seed defaults: %w", err)
	}
	logger.Info("seeded default assignments", slog.Int("count", len(defaults)))
	return nil
}

func hintOptions(c config.Hint) hint.Options {
	return hint.Options{
		APIKey:     c.APIKey,
		Endpoint:   c.Endpoint,
		Model:      c.Model,
		MaxTokens:  c.MaxTokens,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
	}
}

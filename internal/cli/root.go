// Package cli provides the ciphersql command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joacominatel/ciphersql/internal/config"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// envKey stores the loaded environment in the command context.
type envKey struct{}

// env is what every subcommand gets after the root pre-run.
type env struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
}

func envFrom(cmd *cobra.Command) *env {
	e, _ := cmd.Context().Value(envKey{}).(*env)
	return e
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "ciphersql",
		Short: "ciphersql - SQL practice gateway",
		Long: `ciphersql runs student SQL against a read-only PostgreSQL sandbox.

Only single SELECT or WITH statements are accepted. Each runs under a
statement timeout on a bounded connection pool, and results can be graded
against an assignment's expected columns. Use it as an HTTP API (serve),
an interactive console (tui) or a one-shot command (query).`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, envKey{}, &env{
				cfg:     cfg,
				cfgPath: cfgFile,
				logger:  logger,
			}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ciphersql.yaml or ~/.ciphersql/ciphersql.yaml)")

	rootCmd.AddCommand(
		newServeCommand(),
		newTUICommand(),
		newQueryCommand(),
		newAssignmentsCommand(),
		newSeedCommand(),
		newSecretCommand(),
		newVersionCommand(),
	)

	return rootCmd
}

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// newLogger builds the process logger from the log section.
func newLogger(w io.Writer, c config.Log) (*slog.Logger, error) {
	level := slog.LevelInfo
	if c.Level != "" {
		if err := level.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

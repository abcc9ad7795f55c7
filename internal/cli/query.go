package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joacominatel/ciphersql/internal/app"
	"github.com/joacominatel/ciphersql/internal/gateway"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format       string
	Expect       []string
	AssignmentID string
}

func newQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run one query through the gateway",
		Long: `Run one query through the same validation, timeout and shaping as the
HTTP API. Pass "-" to read the query from stdin.

With --expect or --assignment the result is graded against the expected
column set.`,
		Example: `  ciphersql query "SELECT name, salary FROM employees WHERE salary > 50000"
  ciphersql query "SELECT * FROM products" --expect name,category,price
  echo "SELECT 1" | ciphersql query - --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv")
	cmd.Flags().StringSliceVar(&opts.Expect, "expect", nil, "expected column names, comma-separated")
	cmd.Flags().StringVar(&opts.AssignmentID, "assignment", "", "grade against this assignment's expected columns")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runQuery(cmd *cobra.Command, sql string, opts *QueryOptions) error {
	if sql == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		sql = string(b)
	}

	e := envFrom(cmd)
	svc, cleanup, err := e.openService(cmd.Context(), serviceOptions{connect: true})
	if err != nil {
		return err
	}
	defer cleanup()

	req := app.ExecuteRequest{Query: sql}
	switch {
	case cmd.Flags().Changed("expect"):
		req.Expected = trimAll(opts.Expect)
	case opts.AssignmentID != "":
		a, err := svc.Assignment(cmd.Context(), opts.AssignmentID)
		if err != nil {
			return err
		}
		req.Expected = a.ExpectedColumns
	}

	resp, err := svc.Execute(cmd.Context(), req)
	if err != nil {
		return describeError(err)
	}

	return render(cmd.OutOrStdout(), resp, opts.Format, len(req.Expected) > 0)
}

// describeError adds the policy reason to rejected queries.
func describeError(err error) error {
	var policy *gateway.ErrPolicy
	if errors.As(err, &policy) {
		return fmt.Errorf("%s (%s)", gateway.PolicyMessage, policy.Reason)
	}
	return err
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

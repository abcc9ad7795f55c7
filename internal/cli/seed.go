package cli

import (
	"fmt"

	"github.com/joacominatel/ciphersql/internal/assignment"
	"github.com/spf13/cobra"
)

func newSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the stored assignments",
		Long: `Replace every stored assignment with the default set, or with the
assignments listed in a YAML file:

  assignments:
    - title: High Earners
      difficulty: Easy
      question: Find employees earning more than 50000.
      tableName: employees
      expectedColumns: [name, salary]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := assignment.Defaults()
			if file != "" {
				var err error
				if list, err = assignment.LoadFile(file); err != nil {
					return err
				}
			}

			e := envFrom(cmd)
			svc, cleanup, err := e.openService(cmd.Context(), serviceOptions{})
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.Seed(cmd.Context(), list); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d assignments into %s\n", len(list), e.cfg.Assignments.Path)
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML file with assignments (default: built-in set)")
	return cmd
}

package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newAssignmentsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "List assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			svc, cleanup, err := e.openService(cmd.Context(), serviceOptions{seed: true})
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := svc.Assignments(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			renderAssignments(cmd.OutOrStdout(), list)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

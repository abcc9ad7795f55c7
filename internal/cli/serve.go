package cli

import (
	"github.com/joacominatel/ciphersql/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API on server.addr.

The sandbox database is connected first and the assignment store is seeded
with the default set when empty. The server stops on SIGINT or SIGTERM,
cancelling statements still running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			if addr != "" {
				e.cfg.Server.Addr = addr
			}

			svc, cleanup, err := e.openService(cmd.Context(), serviceOptions{connect: true, seed: true})
			if err != nil {
				return err
			}
			defer cleanup()

			srv := server.New(svc, server.Config{
				Addr:            e.cfg.Server.Addr,
				CORSOrigins:     e.cfg.Server.CORSOrigins,
				ShutdownTimeout: e.cfg.Server.ShutdownTimeout,
				Logger:          e.logger,
			})
			return srv.Serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

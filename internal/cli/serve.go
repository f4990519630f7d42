package cli

import (
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/studynotes/internal/app"
)

func newServeCommand(g *globalFlags) *cobra.Command {
	var opts app.DaemonOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP note API",
		RunE: func(c *cobra.Command, _ []string) error {
			a, err := g.open(c.Context(), c)
			if err != nil {
				return err
			}
			defer a.Close()

			opts.HTTP = true
			if opts.Watch {
				opts.OnResult = printResult(c.OutOrStdout())
			}
			return a.RunDaemon(c.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.GRPC, "grpc", false, "also serve gRPC health on GRPC_ADDR")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "also watch INBOX_DIR")
	return cmd
}

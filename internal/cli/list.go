package cli

import (
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/studynotes/internal/repository"
)

type listFlags struct {
	format  string
	subject string
	limit   int
}

func newListCommand(g *globalFlags) *cobra.Command {
	flags := &listFlags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored notes, newest date first",
		RunE: func(c *cobra.Command, _ []string) error {
			a, err := g.open(c.Context(), c)
			if err != nil {
				return err
			}
			defer a.Close()

			notes, err := a.Notes.List(c.Context(), repository.ListOptions{Subject: flags.subject, Limit: flags.limit})
			if err != nil {
				return err
			}
			return renderNotes(c.OutOrStdout(), notes, flags.format)
		},
	}
	cmd.Flags().StringVarP(&flags.format, "format", "f", FormatTable, "output format: table, json or yaml")
	cmd.Flags().StringVar(&flags.subject, "subject", "", "only notes with this subject")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "maximum number of notes (0 = all)")
	return cmd
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/studynotes/internal/common"
	"github.com/joseph-ayodele/studynotes/internal/repository"
)

func newExportCommand(g *globalFlags) *cobra.Command {
	var out, subject string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all notes to an XLSX workbook",
		RunE: func(c *cobra.Command, _ []string) error {
			a, err := g.open(c.Context(), c)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.Exporter.NotesXLSX(c.Context(), repository.ListOptions{Subject: subject})
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return common.WrapError(err, "write "+out)
			}
			fmt.Fprintf(c.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(b))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "notes.xlsx", "output file")
	cmd.Flags().StringVar(&subject, "subject", "", "only notes with this subject")
	return cmd
}

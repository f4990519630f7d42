package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/studynotes/internal/async"
)

func newWatchCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Ingest images as they appear in the inbox directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := g.open(c.Context(), c)
			if err != nil {
				return err
			}
			defer a.Close()

			dir := a.Config.Inbox.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			return a.RunWatcher(c.Context(), []string{dir}, printResult(c.OutOrStdout()))
		},
	}
}

// printResult writes one line per job; workers call it concurrently.
func printResult(w io.Writer) async.Handler {
	var mu sync.Mutex
	return func(r async.Result) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Err != nil:
			fmt.Fprintf(w, "%s\terror\t%v\n", r.Job.Path, r.Err)
		case r.Skipped:
			fmt.Fprintf(w, "%s\tduplicate\n", r.Job.Path)
		case r.Outcome.IsSuccess():
			fmt.Fprintf(w, "%s\t%s\t%s [%s]\n", r.Job.Path, r.Outcome.Source, r.Outcome.Note.Title, r.Outcome.Note.Subject)
		default:
			fmt.Fprintf(w, "%s\t%s\t%v\n", r.Job.Path, r.Outcome.Status, r.Outcome.Err())
		}
	}
}

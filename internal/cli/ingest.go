package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/studynotes/internal/common"
	"github.com/joseph-ayodele/studynotes/internal/ingest"
	"github.com/joseph-ayodele/studynotes/internal/pipeline"
)

var errIngestFailed = errors.New("one or more files failed")

type ingestFlags struct {
	dir      string
	include  []string
	progress bool
}

func newIngestCommand(g *globalFlags) *cobra.Command {
	flags := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   "ingest [image]...",
		Short: "Extract and store a note from each image",
		Example: `  studynotes ingest page1.jpg page2.png
  studynotes ingest --dir ./inbox --include 'math/**/*.jpg'
  GEMINI_API_KEY= studynotes ingest page.jpg   # stores the demo note`,
		Args: func(c *cobra.Command, args []string) error {
			if len(args) == 0 && flags.dir == "" {
				return errors.New("pass at least one image or --dir")
			}
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			a, err := g.open(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()

			paths := append([]string(nil), args...)
			if flags.dir != "" {
				found, stats, err := ingest.Scan(ctx, afero.NewOsFs(), flags.dir, ingest.ScanOptions{Include: flags.include, SkipHidden: true})
				if err != nil {
					return common.WrapError(err, "scan "+flags.dir)
				}
				a.Logger.Info("ingest.scan.done", "dir", flags.dir, "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)
				paths = append(paths, found...)
			}

			out := c.OutOrStdout()
			p := a.NewPipeline()
			var current string
			if flags.progress {
				errOut := c.ErrOrStderr()
				p.Subscribe(func(t pipeline.Transition) {
					fmt.Fprintf(errOut, "%s\t%s -> %s\n", current, t.From, t.To)
				})
			}
			failed := 0
			for _, path := range paths {
				current = path
				loaded, err := a.Loader.Load(ctx, path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s\terror\t%v\n", path, err)
					continue
				}
				o := p.Run(ctx, loaded.Image)
				switch o.Status {
				case pipeline.StatusSuccess:
					fmt.Fprintf(out, "%s\t%s\t%s [%s]\n", path, o.Source, o.Note.Title, o.Note.Subject)
					if o.RefreshError != nil {
						fmt.Fprintf(out, "%s\twarning\t%v\n", path, o.RefreshError)
					}
				case pipeline.StatusCancelled:
					fmt.Fprintf(out, "%s\tcancelled\n", path)
					return ctx.Err()
				default:
					failed++
					fmt.Fprintf(out, "%s\terror\t%v\n", path, o.Err())
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errIngestFailed, failed, len(paths))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.dir, "dir", "", "also ingest every matching image under this directory")
	cmd.Flags().StringSliceVar(&flags.include, "include", nil, "doublestar patterns relative to --dir (default: common image types)")
	cmd.Flags().BoolVar(&flags.progress, "progress", false, "print each pipeline state change to stderr")
	return cmd
}

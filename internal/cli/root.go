// Package cli implements the studynotes command line.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/studynotes/constants"
	"github.com/joseph-ayodele/studynotes/internal/app"
	"github.com/joseph-ayodele/studynotes/internal/common"
)

type globalFlags struct {
	dbURL     string
	provider  string
	logFormat string
	logLevel  string
}

// NewRootCommand builds the studynotes command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "studynotes",
		Short: "Turn photos of handwritten notes into structured study notes",
		Long: `studynotes extracts a title, subject, preview and tags from photos of
handwritten notes and stores them in a local note list.

Without an API key for the selected provider a fixed demo note is stored instead.`,
		SilenceUsage: true,
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.dbURL, "db", "", "database DSN (overrides DB_URL)")
	pf.StringVar(&flags.provider, "provider", "", "extraction provider: gemini, openai or genai (overrides LLM_PROVIDER)")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text or json (overrides LOG_FORMAT)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	cmd.AddCommand(newIngestCommand(flags))
	cmd.AddCommand(newListCommand(flags))
	cmd.AddCommand(newExportCommand(flags))
	cmd.AddCommand(newWatchCommand(flags))
	cmd.AddCommand(newServeCommand(flags))
	return cmd
}

// loadConfig reads the environment and applies flag overrides.
func (f *globalFlags) loadConfig() *common.Config {
	cfg := common.LoadConfig()
	if f.dbURL != "" {
		cfg.Database.DSN = f.dbURL
	}
	if f.provider != "" {
		cfg.LLM.Provider = constants.Provider(f.provider)
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return cfg
}

func (f *globalFlags) open(ctx context.Context, c *cobra.Command) (*app.App, error) {
	cfg := f.loadConfig()
	logger := app.NewLogger(cfg.Log, c.ErrOrStderr())
	return app.Open(ctx, cfg, logger)
}

// Execute runs the root command and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

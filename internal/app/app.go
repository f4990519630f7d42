// Package app wires configuration, storage, providers and the pipeline together.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/joseph-ayodele/studynotes/constants"
	"github.com/joseph-ayodele/studynotes/internal/async"
	"github.com/joseph-ayodele/studynotes/internal/common"
	"github.com/joseph-ayodele/studynotes/internal/convert"
	"github.com/joseph-ayodele/studynotes/internal/export"
	"github.com/joseph-ayodele/studynotes/internal/fallback"
	"github.com/joseph-ayodele/studynotes/internal/ingest"
	"github.com/joseph-ayodele/studynotes/internal/llm"
	"github.com/joseph-ayodele/studynotes/internal/llm/gemini"
	"github.com/joseph-ayodele/studynotes/internal/llm/googleai"
	"github.com/joseph-ayodele/studynotes/internal/llm/openai"
	"github.com/joseph-ayodele/studynotes/internal/pipeline"
	"github.com/joseph-ayodele/studynotes/internal/repository"
	"github.com/joseph-ayodele/studynotes/internal/server"
)

type App struct {
	Config    *common.Config
	Logger    *slog.Logger
	DB        *repository.DB
	Notes     repository.NoteRepository
	Extractor llm.Extractor
	Fallback  *fallback.Generator
	Exporter  *export.Service
	Loader    *ingest.Loader
}

// NewExtractor builds the client for cfg.LLM.Provider. The client reads its
// key through cfg.APIKey, so availability follows the live environment.
func NewExtractor(cfg *common.Config, logger *slog.Logger) (llm.Extractor, error) {
	l := cfg.LLM
	switch l.Provider {
	case constants.ProviderGemini:
		return gemini.NewClient(gemini.Config{
			KeySource:   cfg.APIKey,
			BaseURL:     l.GeminiBaseURL,
			Model:       l.GeminiModel,
			Temperature: l.Temperature,
			Timeout:     l.Timeout,
		}, logger), nil
	case constants.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			KeySource:   cfg.APIKey,
			BaseURL:     l.OpenAIBaseURL,
			Model:       l.OpenAIModel,
			Temperature: l.Temperature,
			Timeout:     l.Timeout,
		}, logger), nil
	case constants.ProviderGenAI:
		return googleai.NewClient(googleai.Config{
			KeySource:   cfg.APIKey,
			Model:       l.GeminiModel,
			Temperature: l.Temperature,
			Timeout:     l.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", l.Provider)
	}
}

// Open validates cfg, connects to the database and builds the shared services.
func Open(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ext, err := NewExtractor(cfg, logger)
	if err != nil {
		return nil, err
	}

	d := cfg.Database
	db, err := repository.Open(ctx, repository.Config{
		DSN:              d.DSN,
		MaxConns:         d.MaxConns,
		MinConns:         d.MinConns,
		MaxConnLifetime:  d.MaxConnLifetime,
		MaxConnIdleTime:  d.MaxConnIdleTime,
		DialTimeout:      d.DialTimeout,
		StatementTimeout: d.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("app.db.open_error", "error", err)
		return nil, err
	}

	loader := ingest.NewLoader(afero.NewOsFs(), logger)
	if tool := cfg.Inbox.HEICConverter; tool != "" {
		conv, err := convert.NewHEICConverter(tool, logger)
		if err != nil {
			db.Close(logger)
			return nil, err
		}
		loader.WithConverter(conv)
	}

	notes := repository.NewNoteRepository(db.Driver, logger)
	logger.Info("app.ready",
		"provider", cfg.LLM.Provider,
		"llm_available", ext.IsAvailable(),
		"dialect", db.Dialect,
	)
	return &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Notes:     notes,
		Extractor: ext,
		Fallback:  fallback.NewGenerator(cfg.LLM.FallbackDelay, logger),
		Exporter:  export.NewService(notes, logger),
		Loader:    loader,
	}, nil
}

// NewPipeline returns a fresh pipeline sharing the app's store and provider.
func (a *App) NewPipeline(opts ...pipeline.Option) *pipeline.Pipeline {
	return pipeline.New(a.Extractor, a.Fallback, a.Notes, a.Logger, opts...)
}

// NewQueue starts an inbox worker pool with one pipeline per worker.
func (a *App) NewQueue(handler async.Handler) *async.Queue {
	in := a.Config.Inbox
	return async.NewQueue(
		func() async.Runner { return a.NewPipeline() },
		a.Loader,
		a.Logger,
		async.WithWorkers(in.Workers),
		async.WithQueueSize(in.QueueSize),
		async.WithProcessTimeout(in.ProcessTimeout),
		async.WithDedupe(ingest.NewSeen()),
		async.WithHandler(handler),
	)
}

// NewHTTPServer serves the note API with a fresh pipeline per upload.
func (a *App) NewHTTPServer() *server.Server {
	newRun := func() server.Runner { return a.NewPipeline() }
	h := server.NewHandler(newRun, a.Notes, a.Exporter, a.Ping, a.Logger)
	return server.New(a.Config.Server.HTTPAddr, h, a.Logger)
}

func (a *App) Ping(ctx context.Context) error {
	return a.DB.HealthCheck(ctx, a.Config.Database.DialTimeout, a.Logger)
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close(a.Logger)
	}
}

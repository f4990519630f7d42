package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/studynotes/internal/app"
	"github.com/joseph-ayodele/studynotes/internal/async"
	"github.com/joseph-ayodele/studynotes/internal/common"
)

func main() {
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	watch := os.Getenv("NOTESD_WATCH") != "false"
	logger.Info("notesd starting",
		"http_addr", cfg.Server.HTTPAddr,
		"grpc_addr", cfg.Server.GRPCAddr,
		"inbox", cfg.Inbox.Dir,
		"watch", watch,
	)

	err = a.RunDaemon(ctx, app.DaemonOptions{
		HTTP:  true,
		GRPC:  true,
		Watch: watch,
		OnResult: func(r async.Result) {
			if r.Err != nil || (!r.Skipped && !r.Outcome.IsSuccess()) {
				logger.Warn("inbox file not ingested", "path", r.Job.Path, "error", firstErr(r))
			}
		},
	})
	if err != nil {
		logger.Error("notesd stopped with error", "error", err)
		a.Close()
		os.Exit(1)
	}
}

func firstErr(r async.Result) error {
	if r.Err != nil {
		return r.Err
	}
	return r.Outcome.Err()
}

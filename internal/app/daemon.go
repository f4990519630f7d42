package app

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/studynotes/internal/async"
	"github.com/joseph-ayodele/studynotes/internal/ingest"
	"github.com/joseph-ayodele/studynotes/internal/server"
)

const (
	shutdownTimeout     = 15 * time.Second
	healthCheckInterval = 30 * time.Second
)

// DaemonOptions selects what RunDaemon serves.
type DaemonOptions struct {
	HTTP  bool
	GRPC  bool
	Watch bool
	// OnResult observes inbox results when Watch is set.
	OnResult async.Handler
}

// RunDaemon serves until ctx is cancelled or a component fails.
func (a *App) RunDaemon(ctx context.Context, opts DaemonOptions) error {
	g, gctx := errgroup.WithContext(ctx)

	if opts.HTTP {
		srv := a.NewHTTPServer()
		g.Go(srv.Run)
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if opts.GRPC {
		lis, err := net.Listen("tcp", a.Config.Server.GRPCAddr)
		if err != nil {
			a.Logger.Error("grpc.listen_error", "addr", a.Config.Server.GRPCAddr, "error", err)
			return err
		}
		hs := server.NewHealthServer(a.Logger)
		hs.Check(gctx, a.Ping)
		g.Go(func() error { return hs.Serve(lis) })
		g.Go(func() error {
			t := time.NewTicker(healthCheckInterval)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					hs.Stop()
					return nil
				case <-t.C:
					hs.Check(gctx, a.Ping)
				}
			}
		})
	}

	if opts.Watch {
		g.Go(func() error {
			return a.RunWatcher(gctx, []string{a.Config.Inbox.Dir}, opts.OnResult)
		})
	}

	err := g.Wait()
	a.Logger.Info("daemon.stopped", "error", err)
	return err
}

// RunWatcher feeds files appearing under roots into the worker queue until ctx ends.
func (a *App) RunWatcher(ctx context.Context, roots []string, onResult async.Handler) error {
	in := a.Config.Inbox
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       roots,
		Include:     in.Include,
		InitialScan: in.InitialScan,
		Debounce:    in.Debounce,
		Logger:      a.Logger,
	})
	if err != nil {
		return err
	}

	q := a.NewQueue(onResult)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		q.Shutdown(sctx)
	}()

	a.Logger.Info("watch.started", "roots", roots, "workers", in.Workers)
	for {
		select {
		case p, ok := <-paths:
			if !ok {
				return nil
			}
			if err := q.Enqueue(ctx, async.Job{Path: p, TraceID: uuid.NewString()}); err != nil {
				a.Logger.Warn("watch.enqueue_error", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			a.Logger.Warn("watch.error", "error", err)
		}
	}
}

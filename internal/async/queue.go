package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/studynotes/internal/codec"
	"github.com/joseph-ayodele/studynotes/internal/common"
	"github.com/joseph-ayodele/studynotes/internal/ingest"
	"github.com/joseph-ayodele/studynotes/internal/pipeline"
)

var ErrQueueClosed = errors.New("queue is shut down")

// Job is one image file waiting to be ingested.
type Job struct {
	Path        string
	Force       bool // ingest even if the same content was already seen
	SubmittedAt time.Time
	TraceID     string
}

// Result reports what happened to a Job.
type Result struct {
	Job      Job
	WorkerID int
	Outcome  pipeline.Outcome
	Err      error // load failures; pipeline failures are in Outcome
	Skipped  bool  // duplicate content
}

// Handler receives every Result. It is called from worker goroutines.
type Handler func(Result)

// Runner is the part of *pipeline.Pipeline a worker needs.
type Runner interface {
	Run(ctx context.Context, img *codec.RawImage) pipeline.Outcome
}

// Factory builds the Runner owned by one worker. Pipelines refuse
// overlapping runs, so workers never share one.
type Factory func() Runner

type Queue struct {
	factory Factory
	loader  *ingest.Loader
	logger  *slog.Logger
	handler Handler
	seen    *ingest.Seen
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithHandler(h Handler) Option {
	return func(q *Queue) { q.handler = h }
}

// WithDedupe skips files whose content hash was already ingested.
func WithDedupe(seen *ingest.Seen) Option {
	return func(q *Queue) { q.seen = seen }
}

func NewQueue(factory Factory, loader *ingest.Loader, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		factory: factory,
		loader:  loader,
		logger:  logger,
		workers: 2,
		timeout: 2 * time.Minute,
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				runner := q.factory()
				q.logger.Info("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					res := q.process(runner, workerID, job)
					if q.handler != nil {
						q.handler(res)
					}
				}

				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) process(runner Runner, workerID int, job Job) Result {
	res := Result{Job: job, WorkerID: workerID}
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	loaded, err := q.loader.Load(ctx, job.Path)
	if err != nil {
		q.logger.Error("queue.job.load_error", "worker_id", workerID, "path", job.Path, "error", err)
		res.Err = err
		return res
	}
	if q.seen != nil && !job.Force && !q.seen.Mark(loaded.HashHex) {
		q.logger.Info("queue.job.duplicate", "worker_id", workerID, "path", job.Path, "sha256", loaded.HashHex)
		res.Skipped = true
		return res
	}

	res.Outcome = runner.Run(ctx, loaded.Image)

	if !res.Outcome.IsSuccess() {
		if q.seen != nil {
			q.seen.Forget(loaded.HashHex)
		}
		q.logger.Error("queue.job.failed",
			"worker_id", workerID, "path", job.Path, "status", res.Outcome.Status,
			"error", res.Outcome.Err(), "elapsed_ms", time.Since(start).Milliseconds())
		return res
	}
	q.logger.Info("queue.job.done",
		"worker_id", workerID, "path", job.Path, "source", res.Outcome.Source,
		"note_id", res.Outcome.Note.ID, "elapsed_ms", time.Since(start).Milliseconds())
	return res
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queue.enqueue.ok", "path", job.Path, "force", job.Force)
		return nil
	default:
	}
	q.logger.Warn("queue.enqueue.full", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish, or for ctx.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}

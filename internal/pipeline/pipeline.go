// Package pipeline turns a note photo into a persisted study note.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/studynotes/constants"
	"github.com/joseph-ayodele/studynotes/internal/codec"
	"github.com/joseph-ayodele/studynotes/internal/common"
	"github.com/joseph-ayodele/studynotes/internal/entity"
	"github.com/joseph-ayodele/studynotes/internal/llm"
	"github.com/joseph-ayodele/studynotes/internal/repository"
)

// Fallback produces placeholder fields when no extractor is available.
type Fallback interface {
	Generate(ctx context.Context) (entity.NoteFields, error)
}

// Pipeline runs encode → extract-or-fallback → parse → persist → refresh.
// One run at a time; create one Pipeline per concurrent caller.
type Pipeline struct {
	extractor llm.Extractor
	fallback  Fallback
	repo      repository.NoteRepository
	logger    *slog.Logger

	encode func(codec.RawImage) (codec.EncodedPayload, error)
	parse  func(string) (entity.NoteFields, error)
	now    func() time.Time

	busy atomic.Bool

	mu        sync.Mutex
	state     State
	input     *codec.RawImage
	observers []Observer
}

type Option func(*Pipeline)

// WithClock overrides the clock used for the ingestion date.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithEncoder overrides the image encoder.
func WithEncoder(enc func(codec.RawImage) (codec.EncodedPayload, error)) Option {
	return func(p *Pipeline) {
		if enc != nil {
			p.encode = enc
		}
	}
}

func New(extractor llm.Extractor, fallback Fallback, repo repository.NoteRepository, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		extractor: extractor,
		fallback:  fallback,
		repo:      repo,
		logger:    logger,
		encode:    codec.Encode,
		parse:     llm.ParseExtraction,
		now:       time.Now,
		state:     Idle,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Subscribe registers an observer for state transitions.
func (p *Pipeline) Subscribe(o Observer) {
	if o == nil {
		return
	}
	p.mu.Lock()
	p.observers = append(p.observers, o)
	p.mu.Unlock()
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Busy reports whether a run is in flight.
func (p *Pipeline) Busy() bool { return p.busy.Load() }

// Run ingests img. It never panics on bad input and always leaves the
// pipeline Idle with no input reference held.
func (p *Pipeline) Run(ctx context.Context, img *codec.RawImage) Outcome {
	if img == nil || len(img.Data) == 0 {
		p.logger.Warn("pipeline.run.input_missing")
		return failure(&Error{Kind: InputMissing, Detail: "no image supplied"})
	}
	if !p.busy.CompareAndSwap(false, true) {
		p.logger.Warn("pipeline.run.busy")
		return failure(&Error{Kind: Busy, Detail: "an ingestion is already in progress"})
	}
	defer p.busy.Store(false)

	ctx, runID := common.EnsureRequestID(ctx)
	r := &run{p: p, id: runID, start: time.Now()}
	p.mu.Lock()
	p.input = img
	p.mu.Unlock()

	out := r.execute(ctx, img)

	p.mu.Lock()
	p.input = nil
	p.mu.Unlock()
	r.to(Idle)

	p.logger.Info("pipeline.run.finish",
		"run_id", r.id,
		"status", out.Status,
		"source", out.Source,
		"elapsed_ms", time.Since(r.start).Milliseconds(),
	)
	return out
}

type run struct {
	p     *Pipeline
	id    string
	start time.Time
}

func (r *run) execute(ctx context.Context, img *codec.RawImage) Outcome {
	p := r.p
	p.logger.Info("pipeline.run.start", "run_id", r.id, "name", img.Name, "mime_type", img.MIMEType, "bytes", len(img.Data))

	r.to(Encoding)
	payload, err := p.encode(*img)
	if err != nil {
		return r.fail(&Error{Kind: EncodingError, Detail: fmt.Sprintf("encode image: %v", err), Cause: err})
	}
	// raw bytes are no longer needed
	p.mu.Lock()
	p.input = nil
	p.mu.Unlock()
	if ctx.Err() != nil {
		return r.cancel(ctx.Err(), nil)
	}

	r.to(Extracting)
	var (
		fields entity.NoteFields
		source constants.NoteSource
	)
	if p.extractor == nil || !p.extractor.IsAvailable() {
		p.logger.Info("pipeline.extract.fallback", "run_id", r.id)
		fields, err = p.fallback.Generate(ctx)
		if err != nil {
			if isCancel(ctx, err) {
				return r.cancel(err, nil)
			}
			return r.fail(&Error{Kind: ExtractionFormatError, Detail: fmt.Sprintf("fallback: %v", err), Cause: err})
		}
		if err := checkFields(fields); err != nil {
			return r.fail(&Error{Kind: ExtractionFormatError, Detail: fmt.Sprintf("fallback: %v", err), Cause: err})
		}
		source = constants.SourceFallback
	} else {
		raw, err := p.extractor.Extract(ctx, payload)
		if err != nil {
			if isCancel(ctx, err) {
				return r.cancel(err, nil)
			}
			return r.fail(classifyExtractError(err))
		}

		r.to(Parsing)
		fields, err = p.parse(raw)
		if err != nil {
			return r.fail(formatError(raw, err))
		}
		source = constants.SourceModel
	}

	r.to(Persisting)
	date := p.now().Format(time.DateOnly)
	note, err := p.repo.Insert(ctx, entity.NewNote{NoteFields: fields, Date: date, Source: source})
	if err != nil {
		if isCancel(ctx, err) {
			return r.cancel(err, nil)
		}
		return r.fail(&Error{Kind: PersistenceError, Detail: fmt.Sprintf("save note: %v", err), Cause: err})
	}

	r.to(Refreshing)
	out := Outcome{Status: StatusSuccess, Note: note, Source: source}
	notes, err := p.repo.List(ctx, repository.ListOptions{})
	switch {
	case err != nil && isCancel(ctx, err):
		return r.cancel(err, note)
	case err != nil:
		out.RefreshError = &Error{Kind: RefreshError, Detail: fmt.Sprintf("refresh notes: %v", err), Cause: err}
		p.logger.Warn("pipeline.refresh.failed", "run_id", r.id, "note_id", note.ID, "error", err)
	default:
		out.Notes = notes
	}

	r.to(Done)
	return out
}

func (r *run) to(next State) {
	p := r.p
	p.mu.Lock()
	prev := p.state
	if prev == next {
		p.mu.Unlock()
		return
	}
	if !CanTransition(prev, next) {
		p.logger.Error("pipeline.state.illegal", "run_id", r.id, "from", prev.String(), "to", next.String())
	}
	p.state = next
	obs := make([]Observer, len(p.observers))
	copy(obs, p.observers)
	p.mu.Unlock()

	p.logger.Debug("pipeline.state", "run_id", r.id, "from", prev.String(), "to", next.String())
	t := Transition{RunID: r.id, From: prev, To: next, At: time.Now()}
	for _, o := range obs {
		o(t)
	}
}

func (r *run) fail(e *Error) Outcome {
	r.to(Errored)
	r.p.logger.Error("pipeline.run.failed",
		"run_id", r.id,
		"kind", e.Kind,
		"detail", e.Detail,
		"elapsed_ms", time.Since(r.start).Milliseconds(),
	)
	return failure(e)
}

// cancel goes straight back to Idle without passing through Errored.
func (r *run) cancel(err error, note *entity.Note) Outcome {
	r.p.logger.Info("pipeline.run.cancelled", "run_id", r.id, "error", err)
	r.to(Idle)
	return Outcome{Status: StatusCancelled, Note: note}
}

func isCancel(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}

func classifyExtractError(err error) *Error {
	if errors.Is(err, codec.ErrMalformedPayload) {
		return &Error{Kind: MalformedPayload, Detail: err.Error(), Cause: err}
	}
	var te *llm.TransportError
	if errors.As(err, &te) {
		detail := fmt.Sprintf("API request failed: %d", te.StatusCode)
		if te.StatusCode == 0 && te.Cause != nil {
			detail = fmt.Sprintf("API request failed: %v", te.Cause)
		}
		return &Error{Kind: ExtractionTransportError, Detail: detail, StatusCode: te.StatusCode, Cause: err}
	}
	return &Error{Kind: ExtractionTransportError, Detail: fmt.Sprintf("API request failed: %v", err), Cause: err}
}

const maxRawInDetail = 200

func formatError(raw string, err error) *Error {
	var fe *llm.FormatError
	if errors.As(err, &fe) {
		raw = fe.RawText
	}
	shown := raw
	if r := []rune(shown); len(r) > maxRawInDetail {
		shown = string(r[:maxRawInDetail]) + "..."
	}
	return &Error{
		Kind:    ExtractionFormatError,
		Detail:  fmt.Sprintf("could not read model output: %v (raw: %q)", err, shown),
		RawText: raw,
		Cause:   err,
	}
}

// checkFields enforces the same invariants on fallback output that the parser
// enforces on model output.
func checkFields(f entity.NoteFields) error {
	if strings.TrimSpace(f.Title) == "" || strings.TrimSpace(f.Subject) == "" {
		return errors.New("title and subject are required")
	}
	if f.Tags == nil {
		return errors.New("tags must not be nil")
	}
	if utf8.RuneCountInString(f.Title) > entity.MaxTitleRunes || utf8.RuneCountInString(f.Subject) > entity.MaxSubjectRunes {
		return errors.New("title or subject too long")
	}
	return nil
}

package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/studynotes/constants"
	"github.com/joseph-ayodele/studynotes/internal/codec"
	"github.com/joseph-ayodele/studynotes/internal/entity"
	"github.com/joseph-ayodele/studynotes/internal/fallback"
	"github.com/joseph-ayodele/studynotes/internal/llm"
	"github.com/joseph-ayodele/studynotes/internal/llm/gemini"
	"github.com/joseph-ayodele/studynotes/internal/repository"
)

const calcJSON = "```json\n{\"title\":\"Calc I\",\"subject\":\"Math\",\"preview\":\"Derivatives\",\"tags\":[\"calc\"]}\n```"

type memRepo struct {
	mu        sync.Mutex
	notes     []*entity.Note
	inserts   int
	insertErr error
	listErr   error
}

func (m *memRepo) Insert(_ context.Context, n entity.NewNote) (*entity.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	note := &entity.Note{ID: uuid.New(), NoteFields: n.NoteFields, Date: n.Date, Source: n.Source, CreatedAt: time.Now()}
	m.notes = append([]*entity.Note{note}, m.notes...)
	return note, nil
}

func (m *memRepo) List(_ context.Context, _ repository.ListOptions) ([]*entity.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*entity.Note, len(m.notes))
	copy(out, m.notes)
	return out, nil
}

func (m *memRepo) insertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts
}

type fakeExtractor struct {
	available bool
	text      string
	err       error
	block     chan struct{} // when set, Extract waits for ctx or close
	calls     atomic.Int32
}

func (f *fakeExtractor) IsAvailable() bool { return f.available }

func (f *fakeExtractor) Extract(ctx context.Context, _ codec.EncodedPayload) (string, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-ctx.Done():
			return "", &llm.TransportError{Cause: ctx.Err()}
		case <-f.block:
		}
	}
	return f.text, f.err
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) observe(t Transition) {
	r.mu.Lock()
	r.states = append(r.states, t.To)
	r.mu.Unlock()
}

func (r *recorder) seen() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func image() *codec.RawImage {
	return &codec.RawImage{Data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3}, MIMEType: "image/jpeg", Name: "note.jpg"}
}

func newPipeline(ex llm.Extractor, repo repository.NoteRepository, rec *recorder, opts ...Option) *Pipeline {
	p := New(ex, fallback.NewGenerator(0, nil), repo, nil, opts...)
	if rec != nil {
		p.Subscribe(rec.observe)
	}
	return p
}

func TestRun_HTTP429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	ex := gemini.NewClient(gemini.Config{APIKey: "k", BaseURL: srv.URL}, nil).WithHTTPClient(srv.Client())
	repo := &memRepo{}
	rec := &recorder{}

	out := newPipeline(ex, repo, rec).Run(context.Background(), image())

	require.Equal(t, StatusFailure, out.Status)
	assert.Equal(t, ExtractionTransportError, out.Failure.Kind)
	assert.Equal(t, 429, out.Failure.StatusCode)
	assert.Equal(t, "API request failed: 429", out.Failure.Detail)
	assert.Equal(t, 0, repo.insertCount())
	assert.Equal(t, []State{Encoding, Extracting, Errored, Idle}, rec.seen())
}

func TestRun_CalcIScenario(t *testing.T) {
	repo := &memRepo{}
	rec := &recorder{}
	ex := &fakeExtractor{available: true, text: calcJSON}
	clock := func() time.Time { return time.Date(2026, 10, 14, 23, 59, 0, 0, time.UTC) }

	out := newPipeline(ex, repo, rec, WithClock(clock)).Run(context.Background(), image())

	require.True(t, out.IsSuccess(), "%+v", out.Failure)
	require.NotNil(t, out.Note)
	assert.Equal(t, entity.NoteFields{Title: "Calc I", Subject: "Math", Preview: "Derivatives", Tags: []string{"calc"}}, out.Note.NoteFields)
	assert.Equal(t, "2026-10-14", out.Note.Date)
	assert.Equal(t, constants.SourceModel, out.Source)
	assert.Nil(t, out.RefreshError)
	assert.Equal(t, []State{Encoding, Extracting, Parsing, Persisting, Refreshing, Done, Idle}, rec.seen())
}

func TestRun_NotJSON(t *testing.T) {
	repo := &memRepo{}
	rec := &recorder{}
	ex := &fakeExtractor{available: true, text: "not json"}

	out := newPipeline(ex, repo, rec).Run(context.Background(), image())

	require.Equal(t, StatusFailure, out.Status)
	assert.Equal(t, ExtractionFormatError, out.Failure.Kind)
	assert.Equal(t, "not json", out.Failure.RawText)
	assert.Contains(t, out.Failure.Detail, "not json")
	assert.Equal(t, 0, repo.insertCount())
	assert.Equal(t, []State{Encoding, Extracting, Parsing, Errored, Idle}, rec.seen())
}

func TestRun_OversizeTitleIsFormatError(t *testing.T) {
	repo := &memRepo{}
	text := `{"title":"` + strings.Repeat("t", entity.MaxTitleRunes+1) + `","subject":"Math","tags":[]}`
	out := newPipeline(&fakeExtractor{available: true, text: text}, repo, nil).Run(context.Background(), image())

	require.Equal(t, StatusFailure, out.Status)
	assert.Equal(t, ExtractionFormatError, out.Failure.Kind)
	assert.Equal(t, text, out.Failure.RawText)
	assert.Equal(t, 0, repo.insertCount())
}

func TestRun_FormatDetailCutsOnRuneBoundary(t *testing.T) {
	text := strings.Repeat("é", maxRawInDetail+50)
	out := newPipeline(&fakeExtractor{available: true, text: text}, &memRepo{}, nil).Run(context.Background(), image())

	require.Equal(t, StatusFailure, out.Status)
	assert.True(t, utf8.ValidString(out.Failure.Detail))
	assert.Contains(t, out.Failure.Detail, strings.Repeat("é", maxRawInDetail)+"...")
	assert.NotContains(t, out.Failure.Detail, strings.Repeat("é", maxRawInDetail+1))
	assert.Equal(t, text, out.Failure.RawText)
}

func TestRun_EmptyModelTextIsFormatError(t *testing.T) {
	repo := &memRepo{}
	out := newPipeline(&fakeExtractor{available: true, text: ""}, repo, nil).Run(context.Background(), image())

	require.Equal(t, StatusFailure, out.Status)
	assert.Equal(t, ExtractionFormatError, out.Failure.Kind)
	assert.Equal(t, 0, repo.insertCount())
}

func TestRun_NoKeyUsesFallbackWithoutNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()
	ex := gemini.NewClient(gemini.Config{BaseURL: srv.URL}, nil).WithHTTPClient(srv.Client())
	repo := &memRepo{}
	rec := &recorder{}

	out := newPipeline(ex, repo, rec).Run(context.Background(), image())

	require.True(t, out.IsSuccess())
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, constants.SourceFallback, out.Source)
	assert.Equal(t, fallback.DemoSubject, out.Note.Subject)
	assert.NotNil(t, out.Note.Tags)
	assert.Equal(t, 1, repo.insertCount())
	assert.Equal(t, []State{Encoding, Extracting, Persisting, Refreshing, Done, Idle}, rec.seen())
	assert.NotContains(t, rec.seen(), Parsing)
}

func TestRun_AvailabilityCheckedEachRun(t *testing.T) {
	repo := &memRepo{}
	ex := &fakeExtractor{available: false, text: calcJSON}
	p := newPipeline(ex, repo, nil)

	out := p.Run(context.Background(), image())
	require.True(t, out.IsSuccess())
	assert.Equal(t, constants.SourceFallback, out.Source)

	ex.available = true
	out = p.Run(context.Background(), image())
	require.True(t, out.IsSuccess())
	assert.Equal(t, constants.SourceModel, out.Source)
	assert.Equal(t, int32(1), ex.calls.Load())
}

func TestRun_InsertedNoteAppearsInRefresh(t *testing.T) {
	db, err := repository.Open(context.Background(), repository.Config{DSN: "file:" + filepath.Join(t.TempDir(), "p.db")}, nil)
	require.NoError(t, err)
	defer db.Close(nil)
	repo := repository.NewNoteRepository(db.Driver, nil)

	p := newPipeline(&fakeExtractor{available: true, text: calcJSON}, repo, nil)
	first := p.Run(context.Background(), image())
	require.True(t, first.IsSuccess())
	second := p.Run(context.Background(), image())
	require.True(t, second.IsSuccess())

	require.Len(t, second.Notes, 2)
	ids := []uuid.UUID{second.Notes[0].ID, second.Notes[1].ID}
	assert.Contains(t, ids, first.Note.ID)
	assert.Contains(t, ids, second.Note.ID)
	assert.Equal(t, time.Now().Format(time.DateOnly), second.Note.Date)
}

func TestRun_InputMissing(t *testing.T) {
	rec := &recorder{}
	repo := &memRepo{}
	p := newPipeline(&fakeExtractor{available: true, text: calcJSON}, repo, rec)

	for _, img := range []*codec.RawImage{nil, {}, {MIMEType: "image/png"}} {
		out := p.Run(context.Background(), img)
		require.Equal(t, StatusFailure, out.Status)
		assert.Equal(t, InputMissing, out.Failure.Kind)
	}
	assert.Empty(t, rec.seen())
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, 0, repo.insertCount())
}

func TestRun_EncodingError(t *testing.T) {
	repo := &memRepo{}
	rec := &recorder{}
	boom := errors.New("boom")
	enc := func(codec.RawImage) (codec.EncodedPayload, error) { return codec.EncodedPayload{}, boom }

	out := newPipeline(&fakeExtractor{available: true}, repo, rec, WithEncoder(enc)).Run(context.Background(), image())

	require.Equal(t, StatusFailure, out.Status)
	assert.Equal(t, EncodingError, out.Failure.Kind)
	assert.ErrorIs(t, out.Err(), boom)
	assert.Equal(t, []State{Encoding, Errored, Idle}, rec.seen())
}

func TestRun_MalformedPayload(t *testing.T) {
	ex := &fakeExtractor{available: true, err: codec.ErrMalformedPayload}
	out := newPipeline(ex, &memRepo{}, nil).Run(context.Background(), image())

	require.Equal(t, StatusFailure, out.Status)
	assert.Equal(t, MalformedPayload, out.Failure.Kind)
}

func TestRun_TransportFailureWithoutResponse(t *testing.T) {
	ex := &fakeExtractor{available: true, err: &llm.TransportError{Cause: errors.New("connection refused")}}
	out := newPipeline(ex, &memRepo{}, nil).Run(context.Background(), image())

	require.Equal(t, StatusFailure, out.Status)
	assert.Equal(t, ExtractionTransportError, out.Failure.Kind)
	assert.Equal(t, 0, out.Failure.StatusCode)
	assert.Contains(t, out.Failure.Detail, "connection refused")
}

func TestRun_PersistenceError(t *testing.T) {
	repo := &memRepo{insertErr: errors.New("disk full")}
	rec := &recorder{}
	out := newPipeline(&fakeExtractor{available: true, text: calcJSON}, repo, rec).Run(context.Background(), image())

	require.Equal(t, StatusFailure, out.Status)
	assert.Equal(t, PersistenceError, out.Failure.Kind)
	assert.Equal(t, []State{Encoding, Extracting, Parsing, Persisting, Errored, Idle}, rec.seen())
}

func TestRun_RefreshErrorKeepsInsert(t *testing.T) {
	repo := &memRepo{listErr: errors.New("read replica down")}
	rec := &recorder{}
	out := newPipeline(&fakeExtractor{available: true, text: calcJSON}, repo, rec).Run(context.Background(), image())

	require.True(t, out.IsSuccess())
	require.NotNil(t, out.RefreshError)
	assert.Equal(t, RefreshError, out.RefreshError.Kind)
	assert.NotNil(t, out.Note)
	assert.Equal(t, 1, repo.insertCount())
	assert.Len(t, repo.notes, 1)
	assert.Equal(t, []State{Encoding, Extracting, Parsing, Persisting, Refreshing, Done, Idle}, rec.seen())
}

func TestRun_CancellationReturnsToIdle(t *testing.T) {
	repo := &memRepo{}
	rec := &recorder{}
	ex := &fakeExtractor{available: true, text: calcJSON, block: make(chan struct{})}
	p := newPipeline(ex, repo, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome, 1)
	go func() { done <- p.Run(ctx, image()) }()

	require.Eventually(t, func() bool { return ex.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	var out Outcome
	select {
	case out = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
	assert.Equal(t, StatusCancelled, out.Status)
	assert.Nil(t, out.Failure)
	assert.NotContains(t, rec.seen(), Errored)
	assert.Equal(t, []State{Encoding, Extracting, Idle}, rec.seen())
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, 0, repo.insertCount())
}

func TestRun_RejectsOverlappingRun(t *testing.T) {
	ex := &fakeExtractor{available: true, text: calcJSON, block: make(chan struct{})}
	repo := &memRepo{}
	p := newPipeline(ex, repo, nil)

	done := make(chan Outcome, 1)
	go func() { done <- p.Run(context.Background(), image()) }()
	require.Eventually(t, p.Busy, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return ex.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := p.Run(context.Background(), image())
	require.Equal(t, StatusFailure, second.Status)
	assert.Equal(t, Busy, second.Failure.Kind)

	close(ex.block)
	first := <-done
	assert.True(t, first.IsSuccess())
	assert.False(t, p.Busy())
	assert.Equal(t, 1, repo.insertCount())
}

func TestRun_ClearsInputReference(t *testing.T) {
	p := newPipeline(&fakeExtractor{available: true, text: "not json"}, &memRepo{}, nil)
	_ = p.Run(context.Background(), image())

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Nil(t, p.input)
	assert.Equal(t, Idle, p.state)
}

func TestCanTransition(t *testing.T) {
	for _, s := range []State{Encoding, Extracting, Parsing, Persisting, Refreshing} {
		assert.True(t, CanTransition(s, Errored), s.String())
		assert.True(t, CanTransition(s, Idle), s.String())
	}
	assert.False(t, CanTransition(Idle, Errored))
	assert.True(t, CanTransition(Extracting, Persisting))
	assert.False(t, CanTransition(Parsing, Done))
	assert.Equal(t, "refreshing", Refreshing.String())
}

package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/studynotes/constants"
	"github.com/joseph-ayodele/studynotes/internal/entity"
	"github.com/joseph-ayodele/studynotes/internal/repository"
)

type stubRepo struct {
	notes []*entity.Note
	err   error
	opts  repository.ListOptions
}

func (s *stubRepo) Insert(context.Context, entity.NewNote) (*entity.Note, error) {
	return nil, errors.New("not used")
}

func (s *stubRepo) List(_ context.Context, opts repository.ListOptions) ([]*entity.Note, error) {
	s.opts = opts
	return s.notes, s.err
}

func TestNotesXLSX(t *testing.T) {
	long := strings.Repeat("ß", 200)
	repo := &stubRepo{notes: []*entity.Note{
		{ID: uuid.New(), Date: "2026-03-02", Source: constants.SourceModel, NoteFields: entity.NoteFields{
			Title: "Calc I", Subject: "math", Preview: "Limits", Tags: []string{"calc", "limits"},
		}},
		{ID: uuid.New(), Date: "2026-03-01", Source: constants.SourceFallback, NoteFields: entity.NoteFields{
			Title: "Cells", Subject: "biology", Preview: long, Tags: []string{},
		}},
	}}

	out, err := NewService(repo, nil).NotesXLSX(context.Background(), repository.ListOptions{Subject: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", repo.opts.Subject)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, []string{"2026-03-02", "Calc I", "math", "Limits", "calc, limits", "model"}, rows[1])

	assert.Equal(t, "Cells", rows[2][1])
	assert.Equal(t, PreviewCellRunes, utf8.RuneCountInString(rows[2][3]))
	assert.True(t, strings.HasSuffix(rows[2][3], "…"))
}

func TestNotesXLSX_Empty(t *testing.T) {
	out, err := NewService(&stubRepo{}, nil).NotesXLSX(context.Background(), repository.ListOptions{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestNotesXLSX_RepoError(t *testing.T) {
	_, err := NewService(&stubRepo{err: errors.New("db down")}, nil).NotesXLSX(context.Background(), repository.ListOptions{})
	assert.ErrorContains(t, err, "query notes")
}

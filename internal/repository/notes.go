package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/studynotes/constants"
	"github.com/joseph-ayodele/studynotes/internal/common"
	"github.com/joseph-ayodele/studynotes/internal/entity"
)

// ListOptions narrows List. The zero value lists every note.
type ListOptions struct {
	Subject string
	Limit   int
}

// NoteRepository stores study notes. Insert is visible to the next List.
type NoteRepository interface {
	Insert(ctx context.Context, note entity.NewNote) (*entity.Note, error)
	// List returns notes by date descending, newest insert first within a date.
	List(ctx context.Context, opts ListOptions) ([]*entity.Note, error)
}

type noteRepository struct {
	drv    *entsql.Driver
	now    func() time.Time
	logger *slog.Logger
}

func NewNoteRepository(drv *entsql.Driver, logger *slog.Logger) NoteRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &noteRepository{drv: drv, now: time.Now, logger: logger}
}

var noteColumns = []string{"id", "title", "subject", "preview", "tags", "date", "source", "created_at"}

func (r *noteRepository) Insert(ctx context.Context, in entity.NewNote) (*entity.Note, error) {
	v := common.NewValidator().
		Field("title", in.Title, common.Required, common.MaxLength(entity.MaxTitleRunes)).
		Field("subject", in.Subject, common.Required, common.MaxLength(entity.MaxSubjectRunes)).
		Field("date", in.Date, common.ISODate)
	if err := v.Error(); err != nil {
		r.logger.Warn("repo.note.invalid", "error", err)
		return nil, err
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	source := in.Source
	if source == "" {
		source = constants.SourceModel
	}

	note := &entity.Note{
		ID:         uuid.New(),
		NoteFields: entity.NoteFields{Title: in.Title, Subject: in.Subject, Preview: in.Preview, Tags: tags},
		Date:       in.Date,
		Source:     source,
		CreatedAt:  r.now().UTC(),
	}

	query, args := entsql.Dialect(r.drv.Dialect()).
		Insert(notesTable).
		Columns(noteColumns...).
		Values(note.ID.String(), note.Title, note.Subject, note.Preview, string(tagsJSON), note.Date, string(note.Source), note.CreatedAt.UnixNano()).
		Query()

	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("repo.note.insert_error", "title", note.Title, "error", err)
		return nil, common.NewAppError("DB_ERROR", "insert note", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}

	r.logger.Info("repo.note.inserted", "note_id", note.ID, "date", note.Date, "source", note.Source)
	return note, nil
}

func (r *noteRepository) List(ctx context.Context, opts ListOptions) ([]*entity.Note, error) {
	sel := entsql.Dialect(r.drv.Dialect()).
		Select(noteColumns...).
		From(entsql.Table(notesTable)).
		OrderBy(entsql.Desc("date"), entsql.Desc("created_at"))
	if opts.Subject != "" {
		sel = sel.Where(entsql.EQ("subject", opts.Subject))
	}
	if opts.Limit > 0 {
		sel = sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		r.logger.Error("repo.note.list_error", "error", err)
		return nil, common.NewAppError("DB_ERROR", "list notes", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("repo.note.rows_close_error", "error", err)
		}
	}()

	notes := make([]*entity.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			r.logger.Error("repo.note.scan_error", "error", err)
			return nil, common.NewAppError("DB_ERROR", "scan note", fmt.Errorf("%w: %w", common.ErrDatabase, err))
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "iterate notes", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	return notes, nil
}

func scanNote(rows *entsql.Rows) (*entity.Note, error) {
	var (
		id, title, subject, preview, tags, date, source string
		createdAt                                       int64
	)
	if err := rows.Scan(&id, &title, &subject, &preview, &tags, &date, &source, &createdAt); err != nil {
		return nil, err
	}
	noteID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse note id %q: %w", id, err)
	}
	n := &entity.Note{
		ID:         noteID,
		NoteFields: entity.NoteFields{Title: title, Subject: subject, Preview: preview, Tags: []string{}},
		Date:       date,
		Source:     constants.NoteSource(source),
		CreatedAt:  time.Unix(0, createdAt).UTC(),
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", id, err)
		}
		if n.Tags == nil {
			n.Tags = []string{}
		}
	}
	return n, nil
}

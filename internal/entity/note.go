package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/studynotes/constants"
)

// Length limits in runes shared by extraction and storage.
const (
	MaxTitleRunes   = 300
	MaxSubjectRunes = 120
)

// NoteFields is the structured shape extracted from a note photo.
// Tags keep their order and may contain duplicates.
type NoteFields struct {
	Title   string   `json:"title" yaml:"title"`
	Subject string   `json:"subject" yaml:"subject"`
	Preview string   `json:"preview" yaml:"preview"`
	Tags    []string `json:"tags" yaml:"tags"`
}

// NewNote is what the pipeline hands to the repository.
type NewNote struct {
	NoteFields
	Date   string // YYYY-MM-DD
	Source constants.NoteSource
}

// Note represents a persisted study note.
type Note struct {
	ID         uuid.UUID `json:"id" yaml:"id"`
	NoteFields `yaml:",inline"`
	Date      string               `json:"date" yaml:"date"`
	Source    constants.NoteSource `json:"source" yaml:"source"`
	CreatedAt time.Time            `json:"created_at" yaml:"created_at"`
}

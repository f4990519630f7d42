package constants

// NoteSource records where a persisted note's fields came from.
type NoteSource string

const (
	SourceModel    NoteSource = "model"
	SourceFallback NoteSource = "fallback"
)

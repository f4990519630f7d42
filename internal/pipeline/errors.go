package pipeline

import (
	"fmt"
)

// ErrorKind classifies a failed run.
type ErrorKind string

const (
	InputMissing             ErrorKind = "InputMissing"
	MalformedPayload         ErrorKind = "MalformedPayload"
	ExtractionTransportError ErrorKind = "ExtractionTransportError"
	ExtractionFormatError    ErrorKind = "ExtractionFormatError"
	EncodingError            ErrorKind = "EncodingError"
	PersistenceError         ErrorKind = "PersistenceError"
	RefreshError             ErrorKind = "RefreshError"
	// Busy rejects a run started while another is in flight on the same pipeline.
	Busy ErrorKind = "Busy"
)

// Error is the user-visible failure of a run.
type Error struct {
	Kind       ErrorKind
	Detail     string
	StatusCode int    // ExtractionTransportError only; 0 when no response was received
	RawText    string // ExtractionFormatError only
	Cause      error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

package pipeline

import (
	"github.com/joseph-ayodele/studynotes/constants"
	"github.com/joseph-ayodele/studynotes/internal/entity"
)

// Status is the tag of an Outcome.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusCancelled Status = "cancelled"
)

// Outcome is the result of one run, owned by the caller once returned.
type Outcome struct {
	Status  Status
	Failure *Error // set iff Status == StatusFailure

	Note   *entity.Note // inserted note; may be set on cancellation after insert
	Notes  []*entity.Note
	Source constants.NoteSource

	// RefreshError reports a failed list refresh after a committed insert.
	RefreshError *Error
}

func (o Outcome) IsSuccess() bool { return o.Status == StatusSuccess }

// Err returns the failure as an error, or nil.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

func failure(err *Error) Outcome {
	return Outcome{Status: StatusFailure, Failure: err}
}

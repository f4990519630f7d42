package server

import (
	"net/http"

	"github.com/joseph-ayodele/studynotes/internal/pipeline"
)

// StatusClientClosedRequest is the non-standard status used when a run is cancelled.
const StatusClientClosedRequest = 499

// HTTPStatus maps a run outcome to the status code returned by POST /v1/notes.
func HTTPStatus(o pipeline.Outcome) int {
	switch o.Status {
	case pipeline.StatusSuccess:
		return http.StatusCreated
	case pipeline.StatusCancelled:
		return StatusClientClosedRequest
	}
	if o.Failure == nil {
		return http.StatusInternalServerError
	}
	switch o.Failure.Kind {
	case pipeline.InputMissing, pipeline.MalformedPayload:
		return http.StatusBadRequest
	case pipeline.Busy:
		return http.StatusConflict
	case pipeline.ExtractionFormatError:
		return http.StatusUnprocessableEntity
	case pipeline.ExtractionTransportError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

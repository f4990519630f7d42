package llm

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned by Extract when no API key is configured.
var ErrUnavailable = errors.New("extraction provider not configured")

// TransportError reports a non-2xx response, or a failed exchange (StatusCode 0).
type TransportError struct {
	StatusCode int
	Body       string
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 && e.Cause != nil {
		return fmt.Sprintf("API request failed: %v", e.Cause)
	}
	return fmt.Sprintf("API request failed: %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// FormatError reports model output that is not a valid note JSON object.
// RawText keeps the offending output verbatim.
type FormatError struct {
	RawText string
	Cause   error
}

func (e *FormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid extraction format: %v", e.Cause)
	}
	return "invalid extraction format"
}

func (e *FormatError) Unwrap() error { return e.Cause }

// StatusCode returns the HTTP status carried by a TransportError in err's chain.
func StatusCode(err error) (int, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode, true
	}
	return 0, false
}

package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/studynotes/internal/entity"
)

const fence = "```"

// MaxPreviewRunes bounds the stored summary; longer previews are cut.
const MaxPreviewRunes = 280

// StripCodeFences removes a leading ``` or ```lang fence, a trailing ``` fence
// and the whitespace around them. It is idempotent.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, fence) {
		s = strings.TrimPrefix(s, fence)
		i := 0
		for i < len(s) && isLangByte(s[i]) {
			i++
		}
		s = s[i:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

func isLangByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_' || c == '+'
}

// ParseExtraction turns raw model text into validated note fields.
// Every failure is a *FormatError carrying raw.
func ParseExtraction(raw string) (entity.NoteFields, error) {
	body := StripCodeFences(raw)
	if body == "" {
		return entity.NoteFields{}, &FormatError{RawText: raw, Cause: fmt.Errorf("empty model output")}
	}

	schema, err := compiledNoteSchema()
	if err != nil {
		return entity.NoteFields{}, &FormatError{RawText: raw, Cause: err}
	}
	if _, err := ValidateJSON(schema, []byte(body)); err != nil {
		return entity.NoteFields{}, &FormatError{RawText: raw, Cause: err}
	}

	var doc struct {
		Title   string   `json:"title"`
		Subject string   `json:"subject"`
		Preview *string  `json:"preview"`
		Tags    []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return entity.NoteFields{}, &FormatError{RawText: raw, Cause: fmt.Errorf("unmarshal fields: %w", err)}
	}

	out := entity.NoteFields{
		Title:   clean(doc.Title),
		Subject: clean(doc.Subject),
		Tags:    make([]string, 0, len(doc.Tags)),
	}
	if doc.Preview != nil {
		out.Preview = truncateRunes(clean(*doc.Preview), MaxPreviewRunes)
	}
	for _, t := range doc.Tags {
		out.Tags = append(out.Tags, clean(t))
	}

	// \S in the schema is ASCII-only; TrimSpace also strips Unicode spaces.
	if out.Title == "" || out.Subject == "" {
		return entity.NoteFields{}, &FormatError{RawText: raw, Cause: fmt.Errorf("title and subject are required")}
	}
	if n := utf8.RuneCountInString(out.Title); n > entity.MaxTitleRunes {
		return entity.NoteFields{}, &FormatError{RawText: raw, Cause: fmt.Errorf("title has %d characters, max %d", n, entity.MaxTitleRunes)}
	}
	if n := utf8.RuneCountInString(out.Subject); n > entity.MaxSubjectRunes {
		return entity.NoteFields{}, &FormatError{RawText: raw, Cause: fmt.Errorf("subject has %d characters, max %d", n, entity.MaxSubjectRunes)}
	}
	return out, nil
}

func clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

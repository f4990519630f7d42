package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/studynotes/internal/entity"
)

// Output formats accepted by --format.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

func renderNotes(w io.Writer, notes []*entity.Note, format string) error {
	if notes == nil {
		notes = []*entity.Note{}
	}
	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(notes)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(notes); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable, "":
		return renderTable(w, notes)
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

func renderTable(w io.Writer, notes []*entity.Note) error {
	if len(notes) == 0 {
		_, err := fmt.Fprintln(w, "No notes found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "DATE\tTITLE\tSUBJECT\tTAGS\tSOURCE\n")
	for _, n := range notes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			n.Date, truncateString(n.Title, 40), n.Subject, strings.Join(n.Tags, ","), n.Source)
	}
	return tw.Flush()
}

// truncateString shortens s to maxLen runes, ending in "...".
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

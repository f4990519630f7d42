package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/studynotes/constants"
	"github.com/joseph-ayodele/studynotes/internal/entity"
	"github.com/joseph-ayodele/studynotes/internal/fallback"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runWithStderr(t, args...)
	return out, err
}

func runWithStderr(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestIngestListExport(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("LLM_PROVIDER", "gemini")
	dir := t.TempDir()
	db := "file:" + filepath.Join(dir, "cli.db")
	img := filepath.Join(dir, "page.jpg")
	require.NoError(t, os.WriteFile(img, []byte{0xFF, 0xD8, 0xFF, 0x01}, 0o644))

	out, err := run(t, "ingest", "--db", db, "--log-level", "error", img)
	require.NoError(t, err)
	assert.Contains(t, out, fallback.DemoTitle)
	assert.Contains(t, out, string(constants.SourceFallback))

	out, err = run(t, "list", "--db", db, "--format", "json")
	require.NoError(t, err)
	var notes []entity.Note
	require.NoError(t, json.Unmarshal([]byte(out), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, fallback.DemoTitle, notes[0].Title)

	out, err = run(t, "list", "--db", db, "-f", "yaml")
	require.NoError(t, err)
	var ynotes []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &ynotes))
	require.Len(t, ynotes, 1)
	assert.Equal(t, fallback.DemoTitle, ynotes[0]["title"])
	assert.Equal(t, notes[0].ID.String(), ynotes[0]["id"])

	xlsx := filepath.Join(dir, "out.xlsx")
	out, err = run(t, "export", "--db", db, "--out", xlsx)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")
	st, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, st.Size())
}

func TestIngest_Progress(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	dir := t.TempDir()
	db := "file:" + filepath.Join(dir, "cli.db")
	img := filepath.Join(dir, "page.jpg")
	require.NoError(t, os.WriteFile(img, []byte{0xFF, 0xD8, 0xFF, 0x01}, 0o644))

	out, stderr, err := runWithStderr(t, "ingest", "--db", db, "--provider", "gemini", "--log-level", "error", "--progress", img)
	require.NoError(t, err)
	assert.Contains(t, out, fallback.DemoTitle)
	assert.Contains(t, stderr, img+"\tidle -> encoding\n")
	assert.Contains(t, stderr, img+"\tencoding -> extracting\n")
	assert.Contains(t, stderr, img+"\trefreshing -> done\n")
	assert.Contains(t, stderr, img+"\tdone -> idle\n")
	assert.NotContains(t, stderr, "parsing")
}

func TestIngest_ReportsFailures(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	dir := t.TempDir()
	db := "file:" + filepath.Join(dir, "cli.db")

	out, err := run(t, "ingest", "--db", db, "--provider", "gemini", filepath.Join(dir, "missing.jpg"), filepath.Join(dir, "notes.txt"))
	assert.ErrorIs(t, err, errIngestFailed)
	assert.Equal(t, 2, strings.Count(out, "\terror\t"))
}

func TestIngest_Dir(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	dir := t.TempDir()
	db := "file:" + filepath.Join(dir, "cli.db")
	inbox := filepath.Join(dir, "inbox")
	require.NoError(t, os.MkdirAll(filepath.Join(inbox, "math"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "math", "a.jpg"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "b.png"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "readme.txt"), []byte("c"), 0o644))

	out, err := run(t, "ingest", "--db", db, "--provider", "gemini", "--dir", inbox, "--include", "math/**/*.jpg")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, fallback.DemoTitle))

	out, err = run(t, "ingest", "--db", db, "--provider", "gemini", "--dir", inbox)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, fallback.DemoTitle))
}

func TestIngest_RequiresArgs(t *testing.T) {
	_, err := run(t, "ingest")
	assert.Error(t, err)
}

func TestUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "list", "--db", "file:"+filepath.Join(dir, "x.db"), "--provider", "nope")
	assert.Error(t, err)
}

func TestRenderNotes(t *testing.T) {
	notes := []*entity.Note{{
		ID:         uuid.New(),
		NoteFields: entity.NoteFields{Title: "Calc I", Subject: "Math", Tags: []string{"calc", "limits"}},
		Date:       "2026-10-14",
		Source:     constants.SourceModel,
	}}

	var buf bytes.Buffer
	require.NoError(t, renderNotes(&buf, notes, FormatTable))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "DATE"))
	assert.Contains(t, lines[1], "calc,limits")

	buf.Reset()
	require.NoError(t, renderNotes(&buf, nil, FormatTable))
	assert.Equal(t, "No notes found.\n", buf.String())

	buf.Reset()
	require.NoError(t, renderNotes(&buf, nil, FormatJSON))
	assert.JSONEq(t, "[]", buf.String())

	assert.Error(t, renderNotes(&buf, notes, "xml"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncateString("abcdef", 2))
}

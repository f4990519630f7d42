package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/studynotes/internal/repository"
)

// SheetName is the worksheet holding exported notes.
const SheetName = "Notes"

// PreviewCellRunes bounds the preview column.
const PreviewCellRunes = 140

var headers = []string{"Date", "Title", "Subject", "Preview", "Tags", "Source"}

// Service produces XLSX bytes from the note store.
type Service struct {
	repo   repository.NoteRepository
	logger *slog.Logger
}

func NewService(repo repository.NoteRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// NotesXLSX returns a workbook with one row per note, in list order.
func (s *Service) NotesXLSX(ctx context.Context, opts repository.ListOptions) ([]byte, error) {
	start := time.Now()

	notes, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// NewFile starts with Sheet1; rename it rather than leaving an empty sheet behind.
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}
	idx, err := f.GetSheetIndex(SheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	row := 2
	for _, n := range notes {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		write(1, n.Date)
		write(2, n.Title)
		write(3, n.Subject)
		write(4, truncate(n.Preview, PreviewCellRunes))
		write(5, strings.Join(n.Tags, ", "))
		write(6, string(n.Source))
		row++
	}

	_ = f.SetColWidth(SheetName, "A", "A", 12) // date
	_ = f.SetColWidth(SheetName, "B", "B", 32)
	_ = f.SetColWidth(SheetName, "C", "C", 18)
	_ = f.SetColWidth(SheetName, "D", "D", 60)
	_ = f.SetColWidth(SheetName, "E", "E", 28)
	_ = f.SetColWidth(SheetName, "F", "F", 10)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"subject", opts.Subject,
		"rows", len(notes),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

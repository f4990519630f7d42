// Package fallback produces a fixed placeholder note when no extraction
// provider is configured.
package fallback

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/studynotes/internal/entity"
)

const (
	DemoTitle   = "Demo Note (preview)"
	DemoSubject = "demo"
	DemoPreview = "This note was created in demo mode because no extraction API key is configured. " +
		"Set GEMINI_API_KEY or OPENAI_API_KEY to extract real titles, subjects and tags from your photos."
)

var demoTags = []string{"demo", "sample"}

// Generator returns the demo record, optionally after a cosmetic delay.
type Generator struct {
	Delay  time.Duration
	logger *slog.Logger
}

func NewGenerator(delay time.Duration, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{Delay: delay, logger: logger}
}

// Generate returns the demo record. Only a cancelled ctx during the delay fails it.
func (g *Generator) Generate(ctx context.Context) (entity.NoteFields, error) {
	if g.Delay > 0 {
		t := time.NewTimer(g.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return entity.NoteFields{}, ctx.Err()
		case <-t.C:
		}
	}
	g.logger.Info("fallback.generate", "delay_ms", g.Delay.Milliseconds())
	return Demo(), nil
}

// Demo returns a fresh copy of the demo record.
func Demo() entity.NoteFields {
	tags := make([]string, len(demoTags))
	copy(tags, demoTags)
	return entity.NoteFields{
		Title:   DemoTitle,
		Subject: DemoSubject,
		Preview: DemoPreview,
		Tags:    tags,
	}
}

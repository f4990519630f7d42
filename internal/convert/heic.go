// Package convert turns HEIC/HEIF photos into PNG with an external tool, for
// providers that do not accept HEIC input.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Supported tools for HEIC_CONVERTER.
const (
	ToolHeifConvert = "heif-convert"
	ToolMagick      = "magick"
	ToolSips        = "sips"
)

// HEICConverter writes the image to a private temp dir, converts it, reads the
// PNG back and removes the directory. Nothing is kept on disk.
type HEICConverter struct {
	tool    string
	timeout time.Duration
	runner  Runner
	logger  *slog.Logger
}

func NewHEICConverter(tool string, logger *slog.Logger) (*HEICConverter, error) {
	switch tool {
	case ToolHeifConvert, ToolMagick, ToolSips:
	default:
		return nil, fmt.Errorf("unsupported HEIC converter %q: use one of %s | %s | %s", tool, ToolHeifConvert, ToolMagick, ToolSips)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HEICConverter{tool: tool, timeout: time.Minute, runner: execRunner{}, logger: logger}, nil
}

// WithRunner replaces the command runner.
func (c *HEICConverter) WithRunner(r Runner) *HEICConverter {
	if r != nil {
		c.runner = r
	}
	return c
}

// NeedsConversion reports whether mimeType is HEIC or HEIF.
func NeedsConversion(mimeType string) bool {
	mt := strings.ToLower(mimeType)
	return strings.HasPrefix(mt, "image/heic") || strings.HasPrefix(mt, "image/heif")
}

// ToPNG converts HEIC bytes to PNG bytes.
func (c *HEICConverter) ToPNG(ctx context.Context, data []byte) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	tmpDir, err := os.MkdirTemp("", "studynotes-heic-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			c.logger.Warn("convert.cleanup_error", "dir", tmpDir, "error", err)
		}
	}()

	in := filepath.Join(tmpDir, "page.heic")
	out := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}

	var args []string
	switch c.tool {
	case ToolSips:
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		args = []string{in, out}
	}
	if _, errb, err := c.runner.Run(ctx, c.tool, c.logger, args...); err != nil {
		return nil, fmt.Errorf("%s failed: %w (%s)", c.tool, err, truncate(strings.TrimSpace(string(errb)), 256))
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}
	return png, nil
}

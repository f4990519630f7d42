package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/joseph-ayodele/studynotes/constants"
	"github.com/joseph-ayodele/studynotes/internal/codec"
	"github.com/joseph-ayodele/studynotes/internal/convert"
)

// DefaultMaxBytes caps a single image read from disk.
const DefaultMaxBytes = 25 << 20

var (
	ErrNotImage = errors.New("not a supported image file")
	ErrTooLarge = errors.New("image exceeds size limit")
)

// Loaded is an image read from disk plus its content hash.
type Loaded struct {
	Image   *codec.RawImage
	Path    string
	HashHex string
}

// Converter rewrites HEIC/HEIF bytes as PNG.
type Converter interface {
	ToPNG(ctx context.Context, data []byte) ([]byte, error)
}

// Loader reads note images through an afero filesystem.
type Loader struct {
	fs        afero.Fs
	maxBytes  int64
	converter Converter
	logger    *slog.Logger
}

func NewLoader(fs afero.Fs, logger *slog.Logger) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{fs: fs, maxBytes: DefaultMaxBytes, logger: logger}
}

// WithMaxBytes overrides the per-file size cap.
func (l *Loader) WithMaxBytes(n int64) *Loader {
	if n > 0 {
		l.maxBytes = n
	}
	return l
}

// WithConverter enables HEIC/HEIF to PNG conversion.
func (l *Loader) WithConverter(c Converter) *Loader {
	l.converter = c
	return l
}

// Load reads path into a RawImage. The MIME type comes from the extension,
// falling back to content sniffing. HashHex is always of the file as stored.
func (l *Loader) Load(ctx context.Context, path string) (*Loaded, error) {
	ext := filepath.Ext(path)
	if !constants.IsImageExt(ext) {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, path)
	}
	st, err := l.fs.Stat(path)
	if err != nil {
		l.logger.Error("ingest.load.stat_error", "path", path, "error", err)
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotImage, path)
	}
	if st.Size() > l.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, st.Size())
	}

	f, err := l.fs.Open(path)
	if err != nil {
		l.logger.Error("ingest.load.open_error", "path", path, "error", err)
		return nil, err
	}
	defer func(f afero.File) {
		if err := f.Close(); err != nil {
			l.logger.Warn("ingest.load.close_error", "path", path, "error", err)
		}
	}(f)

	h := sha256.New()
	data, err := io.ReadAll(io.TeeReader(io.LimitReader(f, l.maxBytes+1), h))
	if err != nil {
		l.logger.Error("ingest.load.read_error", "path", path, "error", err)
		return nil, err
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, path)
	}

	mt := constants.MIMEForExt(ext)
	if mt == "" {
		mt = codec.SniffMIME(data)
	}
	name := filepath.Base(path)
	if l.converter != nil && convert.NeedsConversion(mt) {
		png, err := l.converter.ToPNG(ctx, data)
		if err != nil {
			l.logger.Error("ingest.load.convert_error", "path", path, "error", err)
			return nil, fmt.Errorf("convert %s: %w", path, err)
		}
		data, mt = png, "image/png"
		name = strings.TrimSuffix(name, ext) + ".png"
	}
	return &Loaded{
		Image:   &codec.RawImage{Data: data, MIMEType: mt, Name: name},
		Path:    path,
		HashHex: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

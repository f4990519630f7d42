package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/joseph-ayodele/studynotes/constants"
)

// ScanOptions controls which files Scan returns.
type ScanOptions struct {
	Include    []string // doublestar patterns relative to root; nil -> constants.DefaultIncludeGlobs
	SkipHidden bool
}

// ScanStats summarizes a directory scan.
type ScanStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// Matcher reports whether a root-relative path is selected by include globs.
type Matcher struct {
	patterns []string
}

// NewMatcher validates patterns; an empty list selects the default image globs.
func NewMatcher(patterns []string) (*Matcher, error) {
	if len(patterns) == 0 {
		patterns = constants.DefaultIncludeGlobs
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.New("invalid include pattern: " + p)
		}
	}
	return &Matcher{patterns: patterns}, nil
}

// Match reports whether rel (OS separators allowed) matches any pattern.
func (m *Matcher) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Scan walks root on fsys and returns files matching opts, in walk order.
func Scan(ctx context.Context, fsys afero.Fs, root string, opts ScanOptions) ([]string, ScanStats, error) {
	var stats ScanStats
	if strings.TrimSpace(root) == "" {
		return nil, stats, errors.New("root is required")
	}
	m, err := NewMatcher(opts.Include)
	if err != nil {
		return nil, stats, err
	}

	var matched []string
	err = afero.Walk(fsys, root, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Failed++
			return nil // continue walking
		}
		if opts.SkipHidden && path != root && IsHidden(path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			stats.Failed++
			return nil
		}
		if m.Match(rel) {
			stats.Matched++
			matched = append(matched, path)
		}
		return nil
	})
	return matched, stats, err
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

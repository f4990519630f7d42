package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	Include     []string      // doublestar patterns relative to the root; nil -> defaults
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid create/write bursts per path
	Logger      *slog.Logger
}

// StartWatcher emits paths of matching files created or written under the roots.
// Both channels are closed once ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	m, err := NewMatcher(cfg.Include)
	if err != nil {
		return nil, nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	roots := make([]string, 0, len(cfg.Roots))
	var initial []string
	for _, r := range cfg.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			_ = w.Close()
			return nil, nil, err
		}
		roots = append(roots, abs)
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != abs && IsHidden(path) {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			if cfg.InitialScan && matchUnder(m, abs, path) {
				initial = append(initial, path)
			}
			return nil
		})
		if err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	evCh := make(chan string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("watcher close error", "error", err)
			}
		}()

		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		pending := map[string]time.Time{}
		timer := time.NewTimer(time.Hour)
		timer.Stop()
		defer timer.Stop()

		schedule := func() {
			timer.Reset(cfg.Debounce)
		}
		flush := func() bool {
			now := time.Now()
			var next time.Duration
			for p, due := range pending {
				if due.After(now) {
					if d := due.Sub(now); next == 0 || d < next {
						next = d
					}
					continue
				}
				delete(pending, p)
				if !emit(p) {
					return false
				}
			}
			if next > 0 {
				timer.Reset(next)
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&fsnotify.Create == fsnotify.Create {
					if st, err := os.Stat(e.Name); err == nil && st.IsDir() && !IsHidden(e.Name) {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("failed to add new directory to watcher", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if e.Op&(fsnotify.Create|fsnotify.Write) == 0 || !matchAny(m, roots, e.Name) {
					continue
				}
				if cfg.Debounce <= 0 {
					if !emit(e.Name) {
						return
					}
					continue
				}
				pending[e.Name] = time.Now().Add(cfg.Debounce)
				schedule()
			case <-timer.C:
				if !flush() {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func matchUnder(m *Matcher, root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return m.Match(rel)
}

func matchAny(m *Matcher, roots []string, path string) bool {
	for _, r := range roots {
		if matchUnder(m, r, path) {
			return true
		}
	}
	return false
}

// Package watch re-runs a callback when files below a set of source
// directories change. Events are coalesced over a debounce window so an
// editor's write-then-rename produces a single callback.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/vk/snapforge/internal/ctxlog"
)

const defaultDebounce = 500 * time.Millisecond

// defaultIgnores are matched against paths relative to a watched root.
var defaultIgnores = []string{
	"**/.git/**",
	"**/.git",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// Config holds the parameters for a Watcher.
type Config struct {
	// Roots are the directories watched recursively.
	Roots []string
	// Skip lists directories never watched, typically the work directory.
	Skip []string
	// Ignore holds extra doublestar patterns, relative to a root.
	Ignore []string
	// Debounce is the quiet period before OnChange fires.
	Debounce time.Duration
	// OnChange receives the changed absolute paths, sorted. Its error is
	// logged and watching continues.
	OnChange func(ctx context.Context, changed []string) error
}

// Watcher monitors the configured roots.
type Watcher struct {
	cfg     Config
	fsw     *fsnotify.Watcher
	roots   []string
	skip    map[string]struct{}
	ignores []string
}

// New validates the configuration and registers every directory below the
// roots.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Roots) == 0 {
		return nil, errors.New("watch: no directories to watch")
	}
	for _, pat := range cfg.Ignore {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid ignore pattern %q", pat)
		}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		cfg:     cfg,
		fsw:     fsw,
		skip:    make(map[string]struct{}, len(cfg.Skip)),
		ignores: append(append([]string{}, defaultIgnores...), cfg.Ignore...),
	}
	for _, s := range cfg.Skip {
		if abs, err := filepath.Abs(s); err == nil {
			w.skip[abs] = struct{}{}
		}
	}
	for _, root := range cfg.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch: resolve %s: %w", root, err)
		}
		w.roots = append(w.roots, abs)
		if err := w.addTree(abs); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Run blocks until ctx is cancelled. OnChange runs on the calling
// goroutine, so callbacks never overlap; events arriving meanwhile are
// delivered with the next batch.
func (w *Watcher) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	logger.Info("Watching sources for changes.", "roots", w.roots)
	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed unexpectedly")
			}
			if w.ignored(evt.Name) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					if err := w.addTree(evt.Name); err != nil {
						logger.Warn("Failed to watch new directory.", "path", evt.Name, "error", err)
					}
				}
			}
			pending[evt.Name] = struct{}{}
			timer.Reset(w.cfg.Debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)

			logger.Debug("Sources changed.", "count", len(changed))
			if w.cfg.OnChange != nil {
				if err := w.cfg.OnChange(ctx, changed); err != nil {
					logger.Error("Re-run after change failed.", "error", err)
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed unexpectedly")
			}
			logger.Warn("File watcher reported an error.", "error", err)
		}
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable directories are not watched
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
}

// ignored reports whether path is inside a skipped directory or matches an
// ignore pattern relative to its root.
func (w *Watcher) ignored(path string) bool {
	for dir := range w.skip {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		for _, pat := range w.ignores {
			if ok, _ := doublestar.Match(pat, rel); ok {
				return true
			}
		}
	}
	return false
}

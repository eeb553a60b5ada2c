// Package migrator merges a part's files into the shared staging and priming
// areas. Files are chosen by an include/exclude fileset, collisions between
// parts are detected before anything is written, symlinks are copied as
// links, and directories are only created for content that is migrated.
package migrator

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/fsutil"
	"github.com/vk/snapforge/internal/lifecycle"
)

// Migrator serialises writes to shared destination directories.
type Migrator struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a Migrator with no held locks.
func New() *Migrator {
	return &Migrator{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the write lock of a destination directory and returns its
// release function. Callers hold it across the migration and the state
// record that follows.
func (m *Migrator) Lock(dest string) func() {
	key := filepath.Clean(dest)
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Request describes one migration.
type Request struct {
	Part      string
	SourceDir string
	DestDir   string
	Fileset   config.Fileset
	// Subset, when non-nil, restricts the candidates to these relative paths.
	Subset []string
	// Owners maps destination paths to the parts already providing them.
	Owners map[string][]string
}

// Result lists what a migration placed into the destination.
type Result struct {
	Files []string
	Dirs  []string
}

// Migrate copies the selected entries of the request's source into its
// destination. Any path already provided by another part with different
// content fails the whole migration with a *lifecycle.CollisionError before
// a single file is written.
func (m *Migrator) Migrate(ctx context.Context, req Request) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("part", req.Part, "dest", req.DestDir)

	sel, err := Select(req.SourceDir, req.Fileset, req.Subset)
	if err != nil {
		return nil, err
	}
	logger.Debug("Migration candidates selected.", "files", len(sel.Files), "dirs", len(sel.Dirs))

	skip := make(map[string]bool)
	for _, rel := range sel.Files {
		identical, err := m.checkCollision(req, rel)
		if err != nil {
			return nil, err
		}
		skip[rel] = identical
	}
	for _, rel := range sel.Dirs {
		if err := m.checkDirCollision(req, rel); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(req.DestDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", req.DestDir, err)
	}
	for _, rel := range sel.Files {
		if skip[rel] {
			continue
		}
		src := filepath.Join(req.SourceDir, filepath.FromSlash(rel))
		dst := filepath.Join(req.DestDir, filepath.FromSlash(rel))
		if err := fsutil.CopyEntry(src, dst); err != nil {
			return nil, fmt.Errorf("failed to migrate %s: %w", rel, err)
		}
	}
	for _, rel := range sel.Dirs {
		if err := os.MkdirAll(filepath.Join(req.DestDir, filepath.FromSlash(rel)), 0o755); err != nil {
			return nil, fmt.Errorf("failed to migrate directory %s: %w", rel, err)
		}
	}

	logger.Debug("Migration complete.", "files", len(sel.Files), "identical", countTrue(skip))
	return &Result{Files: sel.Files, Dirs: sel.Dirs}, nil
}

// checkCollision reports whether rel already exists in the destination with
// identical content, and fails when another part provides different content
// or when a non-directory sits where rel needs a parent directory.
func (m *Migrator) checkCollision(req Request, rel string) (bool, error) {
	if err := checkParents(req, rel); err != nil {
		return false, err
	}
	dst := filepath.Join(req.DestDir, filepath.FromSlash(rel))
	info, err := os.Lstat(dst)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if info.IsDir() {
		return false, collision(req, rel)
	}

	src := filepath.Join(req.SourceDir, filepath.FromSlash(rel))
	same, err := fsutil.SameEntry(src, dst)
	if err != nil {
		return false, err
	}
	if !same && otherOwner(req, rel) != "" {
		return false, collision(req, rel)
	}
	return same, nil
}

// checkDirCollision fails when an empty directory of the part would land on
// or below an existing non-directory.
func (m *Migrator) checkDirCollision(req Request, rel string) error {
	if err := checkParents(req, rel); err != nil {
		return err
	}
	info, err := os.Lstat(filepath.Join(req.DestDir, filepath.FromSlash(rel)))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return collision(req, rel)
	}
	return nil
}

// checkParents walks the ancestors of rel from the top and fails on the
// first one that exists in the destination as anything but a directory.
func checkParents(req Request, rel string) error {
	var ancestors []string
	for p := path.Dir(rel); p != "." && p != "/"; p = path.Dir(p) {
		ancestors = append(ancestors, p)
	}
	for i := len(ancestors) - 1; i >= 0; i-- {
		info, err := os.Lstat(filepath.Join(req.DestDir, filepath.FromSlash(ancestors[i])))
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return collision(req, ancestors[i])
		}
	}
	return nil
}

func otherOwner(req Request, rel string) string {
	for _, owner := range req.Owners[rel] {
		if owner != req.Part {
			return owner
		}
	}
	return ""
}

// collision names the part providing rel, or for a directory the first part
// providing something below it.
func collision(req Request, rel string) *lifecycle.CollisionError {
	other := otherOwner(req, rel)
	if other == "" {
		var below []string
		for p := range req.Owners {
			if strings.HasPrefix(p, rel+"/") && otherOwner(req, p) != "" {
				below = append(below, p)
			}
		}
		sort.Strings(below)
		if len(below) > 0 {
			other = otherOwner(req, below[0])
		} else {
			other = "unknown"
		}
	}
	return &lifecycle.CollisionError{Path: rel, Parts: []string{other, req.Part}}
}

// Mirror replaces dst with the entries of src selected by fileset. It is
// used to prepare a part's build directory from its pulled source.
func Mirror(src, dst string, fileset config.Fileset) error {
	sel, err := Select(src, fileset, nil)
	if err != nil {
		return err
	}
	if err := fsutil.ResetDir(dst); err != nil {
		return err
	}
	for _, rel := range sel.Files {
		if err := fsutil.CopyEntry(filepath.Join(src, filepath.FromSlash(rel)), filepath.Join(dst, filepath.FromSlash(rel))); err != nil {
			return err
		}
	}
	for _, rel := range sel.Dirs {
		if err := os.MkdirAll(filepath.Join(dst, filepath.FromSlash(rel)), 0o755); err != nil {
			return err
		}
	}
	return nil
}

func countTrue(m map[string]bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

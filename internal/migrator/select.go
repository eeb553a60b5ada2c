package migrator

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/vk/snapforge/internal/config"
)

// Selection is the result of applying a fileset to a tree. Paths are
// relative and slash separated.
type Selection struct {
	// Files holds regular files and symlinks.
	Files []string
	// Dirs holds included directories that are empty in the source tree.
	Dirs []string
}

// matcher evaluates a fileset against relative paths. A path is included when
// it or one of its ancestors matches an include pattern and excluded when it
// or one of its ancestors matches an exclude pattern. Exclusion always wins.
type matcher struct {
	include []string
	exclude []string
}

func newMatcher(fileset config.Fileset) *matcher {
	include := fileset.Include
	if len(include) == 0 {
		include = []string{"**"}
	}
	return &matcher{include: include, exclude: fileset.Exclude}
}

func (m *matcher) selected(rel string) bool {
	return matchesSelfOrAncestor(m.include, rel) && !matchesSelfOrAncestor(m.exclude, rel)
}

func matchesSelfOrAncestor(patterns []string, rel string) bool {
	for p := rel; p != "." && p != "/" && p != ""; p = path.Dir(p) {
		for _, pattern := range patterns {
			if ok, _ := doublestar.Match(pattern, p); ok {
				return true
			}
		}
	}
	return false
}

// Select walks root and returns the entries selected by fileset. When subset
// is non-nil only the listed paths are candidates.
func Select(root string, fileset config.Fileset, subset []string) (*Selection, error) {
	m := newMatcher(fileset)
	var only map[string]bool
	if subset != nil {
		only = make(map[string]bool, len(subset))
		for _, p := range subset {
			only[p] = true
		}
	}

	sel := &Selection{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if only != nil && !only[rel] {
			return nil
		}
		if !m.selected(rel) {
			return nil
		}
		if d.IsDir() {
			empty, err := isEmptyDir(p)
			if err != nil {
				return err
			}
			if empty {
				sel.Dirs = append(sel.Dirs, rel)
			}
			return nil
		}
		sel.Files = append(sel.Files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to select files from %s: %w", root, err)
	}
	sort.Strings(sel.Files)
	sort.Strings(sel.Dirs)
	return sel, nil
}

func isEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

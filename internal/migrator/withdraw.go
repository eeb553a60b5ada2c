package migrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/snapforge/internal/ctxlog"
)

// Withdraw removes the files and directories a part migrated into dest,
// keeping every path another part also provides, then prunes directories the
// removal left empty.
func (m *Migrator) Withdraw(ctx context.Context, part, dest string, files, dirs []string, owners map[string][]string) error {
	logger := ctxlog.FromContext(ctx).With("part", part, "dest", dest)

	sharedWithOthers := func(rel string) bool {
		for _, owner := range owners[rel] {
			if owner != part {
				return true
			}
		}
		return false
	}

	parents := make(map[string]struct{})
	removed := 0
	for _, rel := range files {
		if sharedWithOthers(rel) {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to withdraw %s: %w", rel, err)
		}
		removed++
		parents[path.Dir(rel)] = struct{}{}
	}
	for _, rel := range dirs {
		if !sharedWithOthers(rel) {
			parents[rel] = struct{}{}
		}
	}

	pruneEmptyDirs(dest, parents)
	logger.Debug("Withdrew part files.", "removed", removed, "kept", len(files)-removed)
	return nil
}

// pruneEmptyDirs removes the given directories and their ancestors below
// dest while they are empty. Deeper directories are handled first.
func pruneEmptyDirs(dest string, dirs map[string]struct{}) {
	all := make(map[string]struct{})
	for d := range dirs {
		for p := d; p != "." && p != "/" && p != ""; p = path.Dir(p) {
			all[p] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(all))
	for d := range all {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool {
		di, dj := strings.Count(ordered[i], "/"), strings.Count(ordered[j], "/")
		if di != dj {
			return di > dj
		}
		return ordered[i] > ordered[j]
	})
	for _, rel := range ordered {
		// Remove fails on non-empty directories, which is what keeps them.
		_ = os.Remove(filepath.Join(dest, filepath.FromSlash(rel)))
	}
}

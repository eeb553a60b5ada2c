// Package layout describes the on-disk work directory of a project: the
// per-part private directories and the shared staging and priming areas.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDirName is the work directory created inside the project when none
// is configured.
const DefaultDirName = ".snapforge"

// Layout resolves every path the engine writes to. It is passed explicitly to
// the components that need it so tests can root it in a temporary directory.
type Layout struct {
	Root string
}

// New returns a layout rooted at root.
func New(root string) *Layout {
	return &Layout{Root: filepath.Clean(root)}
}

// ForProject returns the default layout for a project directory.
func ForProject(projectDir string) *Layout {
	return New(filepath.Join(projectDir, DefaultDirName))
}

// Parts is the directory holding every part's private directories.
func (l *Layout) Parts() string { return filepath.Join(l.Root, "parts") }

// Stage is the shared staging area.
func (l *Layout) Stage() string { return filepath.Join(l.Root, "stage") }

// Prime is the shared priming area.
func (l *Layout) Prime() string { return filepath.Join(l.Root, "prime") }

// PartDir is the private root of a part.
func (l *Layout) PartDir(part string) string { return filepath.Join(l.Parts(), part) }

// PartSrc holds the pulled source of a part.
func (l *Layout) PartSrc(part string) string { return filepath.Join(l.PartDir(part), "src") }

// PartBuild is the directory the part's plugin builds in.
func (l *Layout) PartBuild(part string) string { return filepath.Join(l.PartDir(part), "build") }

// PartInstall receives the part's build output.
func (l *Layout) PartInstall(part string) string { return filepath.Join(l.PartDir(part), "install") }

// PartState holds the part's persisted step state.
func (l *Layout) PartState(part string) string { return filepath.Join(l.PartDir(part), "state") }

// EnsurePart creates the private directories of a part.
func (l *Layout) EnsurePart(part string) error {
	for _, dir := range []string{l.PartSrc(part), l.PartBuild(part), l.PartInstall(part), l.PartState(part)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureShared creates the staging and priming areas.
func (l *Layout) EnsureShared() error {
	for _, dir := range []string{l.Stage(), l.Prime()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

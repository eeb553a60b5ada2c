package migrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/lifecycle"
)

// writeTree creates files below root; a value starting with "->" creates a
// symlink, an empty key suffix "/" creates a directory.
func writeTree(t *testing.T, root string, entries map[string]string) {
	t.Helper()
	for rel, content := range entries {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if rel[len(rel)-1] == '/' {
			require.NoError(t, os.MkdirAll(p, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		if len(content) > 2 && content[:2] == "->" {
			require.NoError(t, os.Symlink(content[2:], p))
			continue
		}
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestSelect(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"usr/bin/app":              "bin",
		"usr/lib/libapp.a":         "static",
		"usr/lib/libapp.so":        "shared",
		"usr/share/doc/app/README": "doc",
		"var/empty/":               "",
	})

	testCases := []struct {
		name      string
		fileset   config.Fileset
		wantFiles []string
		wantDirs  []string
	}{
		{
			name:      "default selects everything",
			wantFiles: []string{"usr/bin/app", "usr/lib/libapp.a", "usr/lib/libapp.so", "usr/share/doc/app/README"},
			wantDirs:  []string{"var/empty"},
		},
		{
			name:      "exclude wins over include",
			fileset:   config.Fileset{Include: []string{"usr/**"}, Exclude: []string{"usr/lib/*.a"}},
			wantFiles: []string{"usr/bin/app", "usr/lib/libapp.so", "usr/share/doc/app/README"},
		},
		{
			name:      "excluded directory removes its content",
			fileset:   config.Fileset{Exclude: []string{"usr/share/doc"}},
			wantFiles: []string{"usr/bin/app", "usr/lib/libapp.a", "usr/lib/libapp.so"},
			wantDirs:  []string{"var/empty"},
		},
		{
			name:      "included directory selects its content",
			fileset:   config.Fileset{Include: []string{"usr/bin"}},
			wantFiles: []string{"usr/bin/app"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sel, err := Select(root, tc.fileset, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.wantFiles, sel.Files)
			assert.Equal(t, tc.wantDirs, sel.Dirs)
		})
	}
}

func TestMigrateIdenticalFilesFromTwoParts(t *testing.T) {
	// --- Arrange ---
	ctx := ctxlog.Discard(context.Background())
	m := New()
	dest := t.TempDir()
	a, b := t.TempDir(), t.TempDir()
	writeTree(t, a, map[string]string{"etc/shared.conf": "same", "bin/a": "a"})
	writeTree(t, b, map[string]string{"etc/shared.conf": "same", "bin/b": "b"})

	// --- Act ---
	resA, err := m.Migrate(ctx, Request{Part: "a", SourceDir: a, DestDir: dest})
	require.NoError(t, err)
	resB, err := m.Migrate(ctx, Request{
		Part: "b", SourceDir: b, DestDir: dest,
		Owners: map[string][]string{"etc/shared.conf": {"a"}, "bin/a": {"a"}},
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"bin/a", "etc/shared.conf"}, resA.Files)
	assert.Equal(t, []string{"bin/b", "etc/shared.conf"}, resB.Files)
	assert.FileExists(t, filepath.Join(dest, "bin", "a"))
	assert.FileExists(t, filepath.Join(dest, "bin", "b"))
}

func TestMigrateCollisionNamesBothParts(t *testing.T) {
	// --- Arrange ---
	ctx := ctxlog.Discard(context.Background())
	m := New()
	dest := t.TempDir()
	a, b := t.TempDir(), t.TempDir()
	writeTree(t, a, map[string]string{"etc/app.conf": "from a"})
	writeTree(t, b, map[string]string{"etc/app.conf": "from b", "bin/b": "b"})

	_, err := m.Migrate(ctx, Request{Part: "a", SourceDir: a, DestDir: dest})
	require.NoError(t, err)

	// --- Act ---
	_, err = m.Migrate(ctx, Request{
		Part: "b", SourceDir: b, DestDir: dest,
		Owners: map[string][]string{"etc/app.conf": {"a"}},
	})

	// --- Assert ---
	var collision *lifecycle.CollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, "etc/app.conf", collision.Path)
	assert.Equal(t, []string{"a", "b"}, collision.Parts)
	assert.NoFileExists(t, filepath.Join(dest, "bin", "b"), "nothing is written on collision")

	content, err := os.ReadFile(filepath.Join(dest, "etc", "app.conf"))
	require.NoError(t, err)
	assert.Equal(t, "from a", string(content))
}

func TestMigrateFileDirectoryClashes(t *testing.T) {
	testCases := []struct {
		name     string
		first    map[string]string
		second   map[string]string
		wantPath string
	}{
		{
			name:     "file where a parent directory is needed",
			first:    map[string]string{"usr/lib": "a file"},
			second:   map[string]string{"usr/lib/libx.so": "lib", "bin/b": "b"},
			wantPath: "usr/lib",
		},
		{
			name:     "empty directory over a file",
			first:    map[string]string{"etc/conf": "a file"},
			second:   map[string]string{"etc/conf/": "", "bin/b": "b"},
			wantPath: "etc/conf",
		},
		{
			name:     "empty directory below a file",
			first:    map[string]string{"var": "a file"},
			second:   map[string]string{"var/cache/": "", "bin/b": "b"},
			wantPath: "var",
		},
		{
			name:     "file over a directory",
			first:    map[string]string{"share/doc/README": "doc"},
			second:   map[string]string{"share/doc": "a file", "bin/b": "b"},
			wantPath: "share/doc",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			ctx := ctxlog.Discard(context.Background())
			m := New()
			dest := t.TempDir()
			a, b := t.TempDir(), t.TempDir()
			writeTree(t, a, tc.first)
			writeTree(t, b, tc.second)

			resA, err := m.Migrate(ctx, Request{Part: "a", SourceDir: a, DestDir: dest})
			require.NoError(t, err)
			owners := map[string][]string{}
			for _, rel := range append(resA.Files, resA.Dirs...) {
				owners[rel] = []string{"a"}
			}

			// --- Act ---
			_, err = m.Migrate(ctx, Request{Part: "b", SourceDir: b, DestDir: dest, Owners: owners})

			// --- Assert ---
			var collision *lifecycle.CollisionError
			require.ErrorAs(t, err, &collision)
			assert.Equal(t, tc.wantPath, collision.Path)
			assert.Equal(t, []string{"a", "b"}, collision.Parts)
			assert.NoFileExists(t, filepath.Join(dest, "bin", "b"), "nothing is written on collision")
		})
	}
}

func TestMigratePreservesSymlinks(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	src, dest := t.TempDir(), t.TempDir()
	writeTree(t, src, map[string]string{"lib/libfoo.so.1": "elf", "lib/libfoo.so": "->libfoo.so.1"})

	_, err := New().Migrate(ctx, Request{Part: "a", SourceDir: src, DestDir: dest})
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(dest, "lib", "libfoo.so"))
	require.NoError(t, err)
	assert.Equal(t, "libfoo.so.1", target)
}

func TestMigrateSymlinkTargetCollision(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	m := New()
	dest := t.TempDir()
	a, b := t.TempDir(), t.TempDir()
	writeTree(t, a, map[string]string{"bin/sh": "->bash"})
	writeTree(t, b, map[string]string{"bin/sh": "->dash"})

	_, err := m.Migrate(ctx, Request{Part: "a", SourceDir: a, DestDir: dest})
	require.NoError(t, err)
	_, err = m.Migrate(ctx, Request{Part: "b", SourceDir: b, DestDir: dest, Owners: map[string][]string{"bin/sh": {"a"}}})

	var collision *lifecycle.CollisionError
	require.ErrorAs(t, err, &collision)
}

func TestMigrateDoesNotCreateDirectoriesOfExcludedContent(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	src, dest := t.TempDir(), t.TempDir()
	writeTree(t, src, map[string]string{"usr/bin/app": "bin", "usr/share/doc/README": "doc"})

	_, err := New().Migrate(ctx, Request{
		Part: "a", SourceDir: src, DestDir: dest,
		Fileset: config.Fileset{Exclude: []string{"usr/share/**"}},
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dest, "usr", "bin", "app"))
	assert.NoDirExists(t, filepath.Join(dest, "usr", "share"))
}

func TestMigrateSubset(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	stage, prime := t.TempDir(), t.TempDir()
	writeTree(t, stage, map[string]string{"bin/a": "a", "bin/b": "b"})

	res, err := New().Migrate(ctx, Request{Part: "a", SourceDir: stage, DestDir: prime, Subset: []string{"bin/a"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"bin/a"}, res.Files)
	assert.NoFileExists(t, filepath.Join(prime, "bin", "b"))
}

func TestWithdrawKeepsSharedFilesAndPrunes(t *testing.T) {
	// --- Arrange ---
	ctx := ctxlog.Discard(context.Background())
	dest := t.TempDir()
	writeTree(t, dest, map[string]string{
		"usr/bin/app":     "app",
		"usr/lib/x/y.so":  "y",
		"etc/shared.conf": "same",
		"var/empty/":      "",
	})
	owners := map[string][]string{
		"usr/bin/app":     {"app"},
		"usr/lib/x/y.so":  {"app"},
		"etc/shared.conf": {"app", "base"},
		"var/empty":       {"app"},
	}

	// --- Act ---
	err := New().Withdraw(ctx, "app", dest,
		[]string{"usr/bin/app", "usr/lib/x/y.so", "etc/shared.conf"}, []string{"var/empty"}, owners)

	// --- Assert ---
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(dest, "usr"))
	assert.NoDirExists(t, filepath.Join(dest, "var"))
	assert.FileExists(t, filepath.Join(dest, "etc", "shared.conf"))
}

func TestLockSerialisesSameDestination(t *testing.T) {
	m := New()
	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("/work/stage/")
			defer unlock()
			n := atomic.AddInt32(&active, 1)
			for {
				cur := atomic.LoadInt32(&maxActive)
				if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive)
}

func TestMirror(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "build")
	writeTree(t, src, map[string]string{"main.c": "int main(){}", "docs/x.md": "x"})
	writeTree(t, dst, map[string]string{"stale.o": "old"})

	require.NoError(t, Mirror(src, dst, config.Fileset{Exclude: []string{"docs"}}))

	assert.FileExists(t, filepath.Join(dst, "main.c"))
	assert.NoFileExists(t, filepath.Join(dst, "stale.o"))
	assert.NoDirExists(t, filepath.Join(dst, "docs"))
}

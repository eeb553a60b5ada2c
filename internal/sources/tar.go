package sources

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
	"github.com/vk/snapforge/internal/ctxlog"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// decompress wraps r according to its magic bytes.
func decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(xzMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	switch {
	case bytes.HasPrefix(head, xzMagic):
		return xz.NewReader(br)
	case bytes.HasPrefix(head, gzipMagic):
		return gzip.NewReader(br)
	default:
		return br, nil
	}
}

func extractTarball(ctx context.Context, archive, dest string) error {
	logger := ctxlog.FromContext(ctx)

	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	r, err := decompress(f)
	if err != nil {
		return fmt.Errorf("failed to create decompressor for %s: %w", archive, err)
	}

	count := 0
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading tar %s: %w", archive, err)
		}
		if err := extractEntry(tr, hdr, dest); err != nil {
			return err
		}
		count++
	}

	if err := stripCommonPrefix(dest); err != nil {
		return err
	}
	logger.Debug("Archive extracted.", "archive", archive, "entries", count)
	return nil
}

// safeTarget resolves name below dest, rejecting absolute paths, parent
// references and paths that traverse a symlink extracted earlier.
func safeTarget(dest, name string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(name, "./"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("illegal path in archive: %q", name)
	}
	if clean == "." {
		return dest, nil
	}

	current := dest
	parts := strings.Split(clean, "/")
	for _, p := range parts[:len(parts)-1] {
		current = filepath.Join(current, p)
		info, err := os.Lstat(current)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return "", err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return "", fmt.Errorf("illegal path in archive: %q traverses a symlink", name)
		}
	}
	return filepath.Join(dest, filepath.FromSlash(clean)), nil
}

func extractEntry(tr *tar.Reader, hdr *tar.Header, dest string) error {
	target, err := safeTarget(dest, hdr.Name)
	if err != nil {
		return err
	}
	mode := os.FileMode(hdr.Mode).Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, mode|0o700); err != nil {
			return fmt.Errorf("failed to create dir %s: %w", target, err)
		}
	case tar.TypeReg:
		if err := prepareTarget(target, hdr.Name); err != nil {
			return err
		}
		// O_EXCL never follows a link left at target.
		out, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
		if err != nil {
			return fmt.Errorf("failed to create file %s: %w", target, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("failed to write file %s: %w", target, err)
		}
		if err := out.Close(); err != nil {
			return err
		}
		return os.Chmod(target, mode)
	case tar.TypeSymlink:
		if err := prepareTarget(target, hdr.Name); err != nil {
			return err
		}
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			return fmt.Errorf("failed to create symlink %s -> %s: %w", target, hdr.Linkname, err)
		}
	case tar.TypeLink:
		source, err := safeTarget(dest, hdr.Linkname)
		if err != nil {
			return err
		}
		if err := prepareTarget(target, hdr.Name); err != nil {
			return err
		}
		if err := os.Link(source, target); err != nil {
			return fmt.Errorf("failed to create hard link %s: %w", target, err)
		}
	}
	return nil
}

// prepareTarget creates the parent of a non-directory entry and removes any
// file or link an earlier entry left at target, so the write that follows
// lands below dest. A directory at target is an error.
func prepareTarget(target, name string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent dir: %w", err)
	}
	info, err := os.Lstat(target)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("illegal path in archive: %q replaces a directory", name)
	}
	return os.Remove(target)
}

// stripCommonPrefix hoists the content of dest's only child when that child
// is a directory, so "hello-1.0/Makefile" lands at "Makefile".
func stripCommonPrefix(dest string) error {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	top := filepath.Join(dest, entries[0].Name())
	children, err := os.ReadDir(top)
	if err != nil {
		return err
	}
	// Rename through a temporary name in case a child shares the top's name.
	staging := filepath.Join(dest, ".strip-"+entries[0].Name())
	if err := os.Rename(top, staging); err != nil {
		return err
	}
	for _, child := range children {
		if err := os.Rename(filepath.Join(staging, child.Name()), filepath.Join(dest, child.Name())); err != nil {
			return fmt.Errorf("failed to strip archive prefix: %w", err)
		}
	}
	return os.Remove(staging)
}

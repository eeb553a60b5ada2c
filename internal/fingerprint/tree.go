package fingerprint

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// HashFile digests the content of a single file.
func HashFile(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := NewHasher("file")
	content := NewHasher("content")
	if _, err := io.Copy(content.h, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return h.Fingerprint(content.Sum()).Sum(), nil
}

// HashTree digests every entry below root: relative path, type, permission
// bits and content (or link target). Directories listed in skip are not
// descended into.
func HashTree(root string, skip ...string) (Fingerprint, error) {
	skipped := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		abs, err := filepath.Abs(s)
		if err == nil {
			skipped[abs] = struct{}{}
		}
	}

	h := NewHasher("tree")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if abs, err := filepath.Abs(path); err == nil {
			if _, ok := skipped[abs]; ok && d.IsDir() {
				return filepath.SkipDir
			}
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		h.String(filepath.ToSlash(rel)).Int(int(info.Mode().Type())).Int(int(info.Mode().Perm()))

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			h.String(target)
		case d.Type().IsRegular():
			sum, err := HashFile(path)
			if err != nil {
				return err
			}
			h.Fingerprint(sum)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", root, err)
	}
	return h.Sum(), nil
}

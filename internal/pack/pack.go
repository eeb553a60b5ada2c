// Package pack writes the primed tree of a project into a distributable
// .tar.xz archive with generated snap metadata.
package pack

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/lifecycle"
	"gopkg.in/yaml.v3"
)

// MetadataPath is where the generated metadata lives inside the archive.
const MetadataPath = "meta/snap.yaml"

// Metadata is the content of meta/snap.yaml.
type Metadata struct {
	Name          string   `yaml:"name"`
	Version       string   `yaml:"version"`
	Summary       string   `yaml:"summary,omitempty"`
	Description   string   `yaml:"description,omitempty"`
	Base          string   `yaml:"base,omitempty"`
	Grade         string   `yaml:"grade,omitempty"`
	Confinement   string   `yaml:"confinement,omitempty"`
	Architectures []string `yaml:"architectures"`
}

// MetadataFor derives the archive metadata of a project. Name and version
// are required.
func MetadataFor(p *config.Project) (*Metadata, error) {
	if p == nil || p.Name == "" {
		return nil, &lifecycle.ManifestError{Reason: "project name is required to pack"}
	}
	if p.Version == "" {
		return nil, &lifecycle.ManifestError{Reason: "project version is required to pack"}
	}
	return &Metadata{
		Name:          p.Name,
		Version:       p.Version,
		Summary:       p.Summary,
		Description:   p.Description,
		Base:          p.Base,
		Grade:         p.Grade,
		Confinement:   p.Confinement,
		Architectures: []string{runtime.GOARCH},
	}, nil
}

// ArchiveName is the default file name of a packed project.
func ArchiveName(m *Metadata) string {
	return fmt.Sprintf("%s_%s.tar.xz", m.Name, m.Version)
}

// Request describes a pack operation.
type Request struct {
	PrimeDir string
	Project  *config.Project
	// Output is the archive path; empty means ArchiveName in the current
	// directory.
	Output string
}

// epoch is stamped on every entry so identical trees pack identically.
var epoch = time.Unix(0, 0).UTC()

// Pack archives the primed tree and returns the path written. The archive is
// assembled in a temporary file and renamed into place.
func Pack(ctx context.Context, req Request) (string, error) {
	logger := ctxlog.FromContext(ctx)

	meta, err := MetadataFor(req.Project)
	if err != nil {
		return "", err
	}
	metaYAML, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	if _, err := os.Stat(req.PrimeDir); err != nil {
		return "", fmt.Errorf("nothing is primed: %w", err)
	}

	output := req.Output
	if output == "" {
		output = ArchiveName(meta)
	}
	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	count, err := writeArchive(ctx, tmp, req.PrimeDir, metaYAML)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, output); err != nil {
		return "", fmt.Errorf("failed to move archive into place: %w", err)
	}

	logger.Info("Packed project.", "output", output, "entries", count)
	return output, nil
}

func writeArchive(ctx context.Context, w io.Writer, root string, metaYAML []byte) (int, error) {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return 0, err
	}
	tw := tar.NewWriter(xw)

	count := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." || rel == MetadataPath {
			return nil
		}
		if err := addEntry(tw, path, rel, d); err != nil {
			return fmt.Errorf("failed to archive %s: %w", rel, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	if err := addMetadata(tw, root, metaYAML); err != nil {
		return count, err
	}
	count++

	if err := tw.Close(); err != nil {
		return count, err
	}
	return count, xw.Close()
}

func addEntry(tw *tar.Writer, path, rel string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}
	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = rel
	if info.IsDir() {
		hdr.Name += "/"
	}
	normalise(hdr)
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

// addMetadata writes meta/snap.yaml, adding the meta directory entry when
// the primed tree does not already have one.
func addMetadata(tw *tar.Writer, root string, metaYAML []byte) error {
	if _, err := os.Stat(filepath.Join(root, "meta")); os.IsNotExist(err) {
		dir := &tar.Header{Name: "meta/", Typeflag: tar.TypeDir, Mode: 0o755}
		normalise(dir)
		if err := tw.WriteHeader(dir); err != nil {
			return err
		}
	}
	hdr := &tar.Header{Name: MetadataPath, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(metaYAML))}
	normalise(hdr)
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(metaYAML)
	return err
}

func normalise(hdr *tar.Header) {
	hdr.ModTime, hdr.AccessTime, hdr.ChangeTime = epoch, time.Time{}, time.Time{}
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "root", "root"
	hdr.Format = tar.FormatPAX
}

// Package sources fetches a part's source into its private source directory.
// Local directories are copied as-is (symlinks preserved); local tarballs,
// optionally gzip or xz compressed, are unpacked.
package sources

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/fsutil"
)

// Supported source types.
const (
	TypeLocal = "local"
	TypeTar   = "tar"
)

// Request describes what to fetch and where.
type Request struct {
	Source string
	// Type overrides detection when set.
	Type string
	Dest string
	// Exclude lists directories of a local source that must not be copied,
	// such as the work directory living inside the project.
	Exclude []string
}

// DetectType infers the source type from the path.
func DetectType(source string) (string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return "", fmt.Errorf("source %s is not accessible: %w", source, err)
	}
	if info.IsDir() {
		return TypeLocal, nil
	}
	lower := strings.ToLower(source)
	for _, ext := range []string{".tar", ".tar.gz", ".tgz", ".tar.xz", ".txz"} {
		if strings.HasSuffix(lower, ext) {
			return TypeTar, nil
		}
	}
	return "", fmt.Errorf("cannot detect the type of source %s; set source_type", source)
}

// Fetch materialises req.Source into req.Dest, which must exist. An empty
// source fetches nothing.
func Fetch(ctx context.Context, req Request) error {
	logger := ctxlog.FromContext(ctx)
	if req.Source == "" {
		logger.Debug("Part has no source, nothing to fetch.")
		return nil
	}

	kind := req.Type
	if kind == "" {
		var err error
		if kind, err = DetectType(req.Source); err != nil {
			return err
		}
	}
	logger.Debug("Fetching source.", "source", req.Source, "type", kind)

	switch kind {
	case TypeLocal:
		if err := fsutil.CopyTree(req.Source, req.Dest, req.Exclude...); err != nil {
			return fmt.Errorf("failed to copy local source %s: %w", req.Source, err)
		}
		return nil
	case TypeTar:
		return extractTarball(ctx, req.Source, req.Dest)
	default:
		return fmt.Errorf("unsupported source type %q", kind)
	}
}

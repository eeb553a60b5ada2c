package hcl_adapter

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/lifecycle"
)

// partNamePattern keeps part names usable as a single directory name below
// the work directory.
var partNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9+-]*$`)

func validPartName(name string) bool {
	return partNamePattern.MatchString(name)
}

// expandFileset resolves `$name` references and `-pattern` exclusions of a
// part's fileset block into plain include and exclude lists.
func expandFileset(part, step string, block *FilesetBlock, named map[string][]string) (config.Fileset, error) {
	if block == nil {
		return config.Fileset{}, nil
	}

	var fs config.Fileset
	include, err := expandEntries(part, step, block.Include, named)
	if err != nil {
		return fs, err
	}
	exclude, err := expandEntries(part, step, block.Exclude, named)
	if err != nil {
		return fs, err
	}

	for _, entry := range include {
		if strings.HasPrefix(entry, "-") {
			exclude = append(exclude, strings.TrimPrefix(entry, "-"))
			continue
		}
		fs.Include = append(fs.Include, entry)
	}
	fs.Exclude = exclude

	for _, pattern := range append(append([]string{}, fs.Include...), fs.Exclude...) {
		if err := validatePattern(pattern); err != nil {
			return config.Fileset{}, &lifecycle.ManifestError{Part: part, Reason: fmt.Sprintf("invalid %s pattern %q", step, pattern), Err: err}
		}
	}
	return fs, nil
}

// expandEntries replaces every `$name` entry by the named fileset's paths.
func expandEntries(part, step string, entries []string, named map[string][]string) ([]string, error) {
	var out []string
	for _, entry := range entries {
		if !strings.HasPrefix(entry, "$") {
			out = append(out, entry)
			continue
		}
		name := strings.TrimPrefix(entry, "$")
		paths, ok := named[name]
		if !ok {
			return nil, &lifecycle.ManifestError{
				Part:   part,
				Reason: fmt.Sprintf("%s references unknown fileset %q (known: %v)", step, name, namedFilesetNames(named)),
			}
		}
		out = append(out, paths...)
	}
	return out, nil
}

// validatePattern rejects absolute, escaping and malformed glob patterns.
func validatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty pattern")
	}
	if path.IsAbs(pattern) {
		return fmt.Errorf("pattern must be relative")
	}
	if cleaned := path.Clean(pattern); cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("pattern escapes the part directory")
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("malformed glob")
	}
	return nil
}

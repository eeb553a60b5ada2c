// Package statestore persists the completion record of every (part, step)
// under the part's state directory:
//
//	<work>/parts/<part>/state/<step>.yaml
//
// Every write is atomic and durable (file sync + rename + directory sync), so
// a crash leaves the previous record in place. Unreadable records are treated
// as missing, which makes the affected steps stale instead of failing.
package statestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/fingerprint"
	"github.com/vk/snapforge/internal/layout"
	"github.com/vk/snapforge/internal/lifecycle"
	"gopkg.in/yaml.v3"
)

// Entry is the record of a successfully completed step.
type Entry struct {
	Part        string                  `yaml:"part"`
	Step        lifecycle.Step          `yaml:"step"`
	Fingerprint fingerprint.Fingerprint `yaml:"fingerprint"`
	CompletedAt time.Time               `yaml:"completed_at"`
	// Files and Dirs list the slash separated paths the step migrated into
	// the shared staging or priming area.
	Files []string `yaml:"files,omitempty"`
	Dirs  []string `yaml:"dirs,omitempty"`
}

func (e *Entry) validate() error {
	if strings.TrimSpace(e.Part) == "" {
		return errors.New("part is required")
	}
	if !e.Step.Valid() {
		return fmt.Errorf("invalid step %d", int(e.Step))
	}
	if e.Fingerprint.IsZero() {
		return errors.New("fingerprint is required")
	}
	return nil
}

// Store reads and writes step records.
type Store struct {
	layout *layout.Layout
}

// New returns a store writing below the layout's part directories.
func New(l *layout.Layout) *Store {
	return &Store{layout: l}
}

func (s *Store) path(part string, step lifecycle.Step) string {
	return filepath.Join(s.layout.PartState(part), step.String()+".yaml")
}

// Load returns the record of a (part, step). Missing and corrupt records both
// report false; corruption is logged as a warning.
func (s *Store) Load(ctx context.Context, part string, step lifecycle.Step) (*Entry, bool) {
	path := s.path(part, step)
	entry, err := readEntry(path)
	if err == nil {
		if entry.Part != part || entry.Step != step {
			err = fmt.Errorf("record belongs to %s/%s", entry.Part, entry.Step)
		}
	}
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			stateErr := &lifecycle.StateStoreError{Part: part, Step: step, Err: err}
			ctxlog.FromContext(ctx).Warn("Ignoring unreadable step state, the step will re-run.", "path", path, "error", stateErr)
		}
		return nil, false
	}
	return entry, true
}

func readEntry(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry Entry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&entry); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if err := entry.validate(); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}
	return &entry, nil
}

// Save writes a record atomically. CompletedAt defaults to now.
func (s *Store) Save(entry *Entry) error {
	if err := entry.validate(); err != nil {
		return &lifecycle.StateStoreError{Part: entry.Part, Step: entry.Step, Err: err}
	}
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now().UTC()
	}
	data, err := yaml.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal state for %s/%s: %w", entry.Part, entry.Step, err)
	}
	if err := writeFileAtomicDurable(s.path(entry.Part, entry.Step), data, 0o644); err != nil {
		return fmt.Errorf("write state for %s/%s: %w", entry.Part, entry.Step, err)
	}
	return nil
}

// Remove deletes a record. Removing a missing record is not an error.
func (s *Store) Remove(part string, step lifecycle.Step) error {
	err := os.Remove(s.path(part, step))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state for %s/%s: %w", part, step, err)
	}
	return nil
}

// Parts lists, sorted, the parts that have a state directory.
func (s *Store) Parts() ([]string, error) {
	entries, err := os.ReadDir(s.layout.Parts())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var parts []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(s.layout.PartState(e.Name())); err == nil {
			parts = append(parts, e.Name())
		}
	}
	sort.Strings(parts)
	return parts, nil
}

// Owners maps every file recorded for step (stage or prime) to the parts that
// migrated it.
func (s *Store) Owners(ctx context.Context, step lifecycle.Step) (map[string][]string, error) {
	parts, err := s.Parts()
	if err != nil {
		return nil, err
	}
	owners := make(map[string][]string)
	for _, part := range parts {
		entry, ok := s.Load(ctx, part, step)
		if !ok {
			continue
		}
		for _, f := range entry.Files {
			owners[f] = append(owners[f], part)
		}
		for _, d := range entry.Dirs {
			owners[d] = append(owners[d], part)
		}
	}
	return owners, nil
}

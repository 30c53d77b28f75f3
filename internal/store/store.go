package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrEntryNotFound is returned when an entry id does not exist.
var ErrEntryNotFound = errors.New("config entry not found")

// Entry is a stored integration configuration. Entries are created by
// finished config flows and survive restarts; Options holds the
// validated values the flow collected.
type Entry struct {
	EntryID   string         `yaml:"entry_id" json:"entry_id"`
	Domain    string         `yaml:"domain" json:"domain"`
	Title     string         `yaml:"title" json:"title"`
	Options   map[string]any `yaml:"options" json:"options"`
	CreatedAt time.Time      `yaml:"created_at" json:"created_at"`
}

// storeFile is the on-disk shape.
type storeFile struct {
	Version int      `yaml:"version"`
	Entries []*Entry `yaml:"entries"`
}

const storeVersion = 1

// Store holds config entries and persists every mutation to disk.
// Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries []*Entry
}

// Open loads the entry store at path, creating an empty store when the
// file does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read entry store: %w", err)
	}

	var file storeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse entry store: %w", err)
	}
	if file.Version > storeVersion {
		return nil, fmt.Errorf("entry store version %d is newer than supported version %d", file.Version, storeVersion)
	}
	s.entries = file.Entries

	return s, nil
}

// Add creates and persists a new entry.
func (s *Store) Add(domain, title string, options map[string]any) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &Entry{
		EntryID:   uuid.NewString(),
		Domain:    domain,
		Title:     title,
		Options:   options,
		CreatedAt: time.Now().UTC(),
	}
	s.entries = append(s.entries, entry)

	if err := s.save(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return nil, err
	}
	return entry, nil
}

// Get returns the entry with the given id.
func (s *Store) Get(entryID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.EntryID == entryID {
			return e, true
		}
	}
	return nil, false
}

// Remove deletes an entry and persists the change.
func (s *Store) Remove(entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.EntryID == entryID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return s.save()
		}
	}
	return ErrEntryNotFound
}

// UpdateOptions replaces an entry's options and persists the change.
func (s *Store) UpdateOptions(entryID string, options map[string]any) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.EntryID == entryID {
			old := e.Options
			e.Options = options
			if err := s.save(); err != nil {
				e.Options = old
				return nil, err
			}
			return e, nil
		}
	}
	return nil, ErrEntryNotFound
}

// List returns all entries in creation order.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// ListDomain returns all entries for one integration domain.
func (s *Store) ListDomain(domain string) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, e := range s.entries {
		if e.Domain == domain {
			out = append(out, e)
		}
	}
	return out
}

// Matching returns the first entry of the domain whose options contain
// every given key with an equal value. Config flows use this to abort
// when the submitted configuration already exists.
func (s *Store) Matching(domain string, options map[string]any) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.Domain != domain {
			continue
		}
		if optionsMatch(e.Options, options) {
			return e
		}
	}
	return nil
}

func optionsMatch(have, want map[string]any) bool {
	for key, wantVal := range want {
		haveVal, ok := have[key]
		if !ok || !sameValue(haveVal, wantVal) {
			return false
		}
	}
	return true
}

// sameValue compares option values across serialization boundaries:
// YAML loads lists as []any while callers hand in []string, and JSON
// decodes every number as float64.
func sameValue(a, b any) bool {
	an, bn := normalize(a), normalize(b)

	al, aIsList := an.([]any)
	bl, bIsList := bn.([]any)
	if aIsList || bIsList {
		if !aIsList || !bIsList || len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !sameValue(al[i], bl[i]) {
				return false
			}
		}
		return true
	}
	return an == bn
}

func normalize(v any) any {
	switch t := v.(type) {
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []any:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	default:
		return v
	}
}

// save writes the store to disk atomically. Callers must hold s.mu.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := yaml.Marshal(&storeFile{Version: storeVersion, Entries: s.entries})
	if err != nil {
		return fmt.Errorf("failed to marshal entry store: %w", err)
	}

	header := []byte("# Hearth config entries\n# Created by configuration flows; do not edit while hearthd is running.\n\n")
	content := append(header, data...)

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write entry store: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save entry store: %w", err)
	}
	return nil
}

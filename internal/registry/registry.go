package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrEntityNotFound is returned when an entity id is not registered.
var ErrEntityNotFound = errors.New("entity not registered")

// Entry maps a platform-scoped unique id to a stable entity id. Once
// assigned, the entity id survives restarts and renames so automations
// and history keep pointing at the same entity.
type Entry struct {
	EntityID      string `yaml:"entity_id" json:"entity_id"`
	Domain        string `yaml:"domain" json:"domain"` // entity domain, e.g. "sensor"
	Platform      string `yaml:"platform" json:"platform"`
	UniqueID      string `yaml:"unique_id" json:"unique_id"`
	Name          string `yaml:"name" json:"name"`
	ConfigEntryID string `yaml:"config_entry_id" json:"config_entry_id"`
}

type registryFile struct {
	Version int      `yaml:"version"`
	Entries []*Entry `yaml:"entries"`
}

const registryVersion = 1

// Registry assigns and persists entity ids. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	path    string
	entries []*Entry
}

// Open loads the entity registry at path, creating an empty registry
// when the file does not exist yet.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to read entity registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse entity registry: %w", err)
	}
	if file.Version > registryVersion {
		return nil, fmt.Errorf("entity registry version %d is newer than supported version %d", file.Version, registryVersion)
	}
	r.entries = file.Entries

	return r, nil
}

// GetOrCreate returns the registry entry for (domain, platform,
// uniqueID), allocating a new entity id from the suggested name on
// first sight. Re-registering an existing unique id keeps the assigned
// entity id but adopts the new owning config entry.
func (r *Registry) GetOrCreate(domain, platform, uniqueID, name, configEntryID string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.lookup(domain, platform, uniqueID); existing != nil {
		if existing.ConfigEntryID != configEntryID {
			existing.ConfigEntryID = configEntryID
			if err := r.save(); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	entry := &Entry{
		EntityID:      r.allocateEntityID(domain, name),
		Domain:        domain,
		Platform:      platform,
		UniqueID:      uniqueID,
		Name:          name,
		ConfigEntryID: configEntryID,
	}
	r.entries = append(r.entries, entry)

	if err := r.save(); err != nil {
		r.entries = r.entries[:len(r.entries)-1]
		return nil, err
	}
	return entry, nil
}

// Rename updates the display name of a registered entity. The assigned
// entity id is kept as is. An empty name clears the override so the
// entity falls back to its platform-provided name.
func (r *Registry) Rename(entityID, name string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var e *Entry
	for _, cand := range r.entries {
		if cand.EntityID == entityID {
			e = cand
			break
		}
	}
	if e == nil {
		return nil, fmt.Errorf("rename %s: %w", entityID, ErrEntityNotFound)
	}

	old := e.Name
	e.Name = name
	if err := r.save(); err != nil {
		e.Name = old
		return nil, err
	}
	return e, nil
}

// Lookup returns the entry for (domain, platform, uniqueID) if one is
// registered.
func (r *Registry) Lookup(domain, platform, uniqueID string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.lookup(domain, platform, uniqueID)
	return e, e != nil
}

func (r *Registry) lookup(domain, platform, uniqueID string) *Entry {
	for _, e := range r.entries {
		if e.Domain == domain && e.Platform == platform && e.UniqueID == uniqueID {
			return e
		}
	}
	return nil
}

// EntriesForConfigEntry returns the entities owned by a config entry.
func (r *Registry) EntriesForConfigEntry(configEntryID string) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	for _, e := range r.entries {
		if e.ConfigEntryID == configEntryID {
			out = append(out, e)
		}
	}
	return out
}

// RemoveForConfigEntry drops all entities owned by a config entry and
// returns their entity ids.
func (r *Registry) RemoveForConfigEntry(configEntryID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.ConfigEntryID == configEntryID {
			removed = append(removed, e.EntityID)
		} else {
			kept = append(kept, e)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	r.entries = kept

	if err := r.save(); err != nil {
		return nil, err
	}
	return removed, nil
}

// List returns all registry entries in registration order.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// allocateEntityID builds "<domain>.<slug>" from the suggested name,
// appending a numeric suffix when the slug is already taken. Callers
// must hold r.mu.
func (r *Registry) allocateEntityID(domain, name string) string {
	slug := Slugify(name)
	if slug == "" {
		slug = "unnamed"
	}

	candidate := domain + "." + slug
	for n := 2; r.entityIDTaken(candidate); n++ {
		candidate = fmt.Sprintf("%s.%s_%d", domain, slug, n)
	}
	return candidate
}

func (r *Registry) entityIDTaken(entityID string) bool {
	for _, e := range r.entries {
		if e.EntityID == entityID {
			return true
		}
	}
	return false
}

// Slugify lowercases a display name and replaces every run of
// non-alphanumeric characters with a single underscore.
func Slugify(name string) string {
	var b strings.Builder
	lastUnderscore := true // trim leading underscores
	for _, ch := range strings.ToLower(name) {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// save writes the registry to disk atomically. Callers must hold r.mu.
func (r *Registry) save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	data, err := yaml.Marshal(&registryFile{Version: registryVersion, Entries: r.entries})
	if err != nil {
		return fmt.Errorf("failed to marshal entity registry: %w", err)
	}

	header := []byte("# Hearth entity registry\n# Maps platform unique ids to stable entity ids.\n\n")
	content := append(header, data...)

	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write entity registry: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save entity registry: %w", err)
	}
	return nil
}

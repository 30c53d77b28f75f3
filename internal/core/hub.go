package core

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/logging"
	"github.com/hearthd/hearth/internal/metrics"
	"github.com/hearthd/hearth/internal/registry"
	"github.com/hearthd/hearth/internal/store"
)

// Platform sets up and tears down the entities of one integration
// domain. The hub calls SetupEntry once per stored config entry at
// startup and again when a flow creates a new entry.
type Platform interface {
	Domain() string
	SetupEntry(hub *Hub, entry *store.Entry) error
	UnloadEntry(entryID string) error
}

// Hub wires the host services together: configuration, the config
// entry store, the entity registry, the state machine and event bus,
// and the registered platforms.
type Hub struct {
	Config   *config.Config
	Entries  *store.Store
	Registry *registry.Registry
	Bus      *EventBus
	States   *StateMachine

	loc *time.Location

	mu        sync.Mutex
	platforms map[string]Platform
}

// New assembles a hub. The hub timezone is resolved once here; an
// unconfigured or unresolvable timezone falls back to UTC so stored
// entries still come up, and flows surface the condition to the user
// before any new entry is created.
func New(cfg *config.Config, entries *store.Store, reg *registry.Registry) *Hub {
	bus := NewEventBus()

	loc, err := cfg.Location()
	if err != nil {
		logging.Warn("hub timezone unavailable, using UTC", zap.Error(err))
		loc = time.UTC
	}

	return &Hub{
		Config:    cfg,
		Entries:   entries,
		Registry:  reg,
		Bus:       bus,
		States:    NewStateMachine(bus),
		loc:       loc,
		platforms: make(map[string]Platform),
	}
}

// Location returns the hub timezone, UTC when unconfigured.
func (h *Hub) Location() *time.Location {
	return h.loc
}

// RegisterPlatform makes a platform available for entry setup.
func (h *Hub) RegisterPlatform(p Platform) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.platforms[p.Domain()] = p
}

// Platform returns the registered platform for a domain.
func (h *Hub) Platform(domain string) (Platform, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.platforms[domain]
	return p, ok
}

// Start sets up every stored config entry. Setup failures are logged
// and skipped so one broken entry cannot keep the hub down.
func (h *Hub) Start() {
	for _, entry := range h.Entries.List() {
		if err := h.setupEntry(entry); err != nil {
			logging.Error("failed to set up config entry",
				zap.String("entry_id", entry.EntryID),
				zap.String("domain", entry.Domain),
				zap.Error(err))
		}
	}
	h.refreshEntryMetrics()
}

// Stop unloads every loaded config entry.
func (h *Hub) Stop() {
	for _, entry := range h.Entries.List() {
		p, ok := h.Platform(entry.Domain)
		if !ok {
			continue
		}
		if err := p.UnloadEntry(entry.EntryID); err != nil {
			logging.Warn("failed to unload config entry",
				zap.String("entry_id", entry.EntryID),
				zap.Error(err))
		}
	}
}

func (h *Hub) setupEntry(entry *store.Entry) error {
	p, ok := h.Platform(entry.Domain)
	if !ok {
		return fmt.Errorf("no platform registered for domain %q", entry.Domain)
	}
	return p.SetupEntry(h, entry)
}

// AddEntry stores a new config entry and sets it up. This is the path
// a finished config flow takes.
func (h *Hub) AddEntry(domain, title string, options map[string]any) (*store.Entry, error) {
	entry, err := h.Entries.Add(domain, title, options)
	if err != nil {
		return nil, err
	}

	if err := h.setupEntry(entry); err != nil {
		logging.Error("failed to set up new config entry",
			zap.String("entry_id", entry.EntryID),
			zap.Error(err))
	}

	h.Bus.Fire(EventEntryCreated, map[string]any{
		"entry_id": entry.EntryID,
		"domain":   entry.Domain,
		"title":    entry.Title,
	})
	h.refreshEntryMetrics()

	return entry, nil
}

// RemoveEntry unloads an entry, drops its entities from the registry
// and state machine, and deletes it from the store.
func (h *Hub) RemoveEntry(entryID string) error {
	entry, ok := h.Entries.Get(entryID)
	if !ok {
		return store.ErrEntryNotFound
	}

	if p, ok := h.Platform(entry.Domain); ok {
		if err := p.UnloadEntry(entryID); err != nil {
			logging.Warn("failed to unload config entry",
				zap.String("entry_id", entryID),
				zap.Error(err))
		}
	}

	removed, err := h.Registry.RemoveForConfigEntry(entryID)
	if err != nil {
		return err
	}
	for _, entityID := range removed {
		h.States.Remove(entityID)
	}

	if err := h.Entries.Remove(entryID); err != nil {
		return err
	}

	h.Bus.Fire(EventEntryRemoved, map[string]any{
		"entry_id": entryID,
		"domain":   entry.Domain,
	})
	h.refreshEntryMetrics()

	return nil
}

// UpdateEntryOptions persists new options for an entry and reloads it
// so its entities pick up the change. This is the path a finished
// options flow takes.
func (h *Hub) UpdateEntryOptions(entryID string, options map[string]any) (*store.Entry, error) {
	entry, ok := h.Entries.Get(entryID)
	if !ok {
		return nil, store.ErrEntryNotFound
	}

	if p, ok := h.Platform(entry.Domain); ok {
		if err := p.UnloadEntry(entryID); err != nil {
			logging.Warn("failed to unload config entry for reload",
				zap.String("entry_id", entryID),
				zap.Error(err))
		}
	}

	updated, err := h.Entries.UpdateOptions(entryID, options)
	if err != nil {
		return nil, err
	}

	if err := h.setupEntry(updated); err != nil {
		logging.Error("failed to reload config entry",
			zap.String("entry_id", entryID),
			zap.Error(err))
	}

	h.Bus.Fire(EventEntryUpdated, map[string]any{
		"entry_id": updated.EntryID,
		"domain":   updated.Domain,
	})

	return updated, nil
}

// RenameEntity changes the display name of a registry entity and
// reloads the owning config entry so published states carry the new
// name. An empty name restores the platform-provided one.
func (h *Hub) RenameEntity(entityID, name string) (*registry.Entry, error) {
	renamed, err := h.Registry.Rename(entityID, name)
	if err != nil {
		return nil, err
	}

	entry, ok := h.Entries.Get(renamed.ConfigEntryID)
	if !ok {
		return renamed, nil
	}

	if p, ok := h.Platform(entry.Domain); ok {
		if err := p.UnloadEntry(entry.EntryID); err != nil {
			logging.Warn("failed to unload config entry for reload",
				zap.String("entry_id", entry.EntryID),
				zap.Error(err))
		}
	}
	if err := h.setupEntry(entry); err != nil {
		logging.Error("failed to reload config entry",
			zap.String("entry_id", entry.EntryID),
			zap.Error(err))
	}

	return renamed, nil
}

func (h *Hub) refreshEntryMetrics() {
	counts := make(map[string]int)
	for _, entry := range h.Entries.List() {
		counts[entry.Domain]++
	}
	h.mu.Lock()
	domains := make([]string, 0, len(h.platforms))
	for domain := range h.platforms {
		domains = append(domains, domain)
	}
	h.mu.Unlock()

	// Report zero for registered platforms with no entries so the
	// gauge drops when the last entry goes away.
	for _, domain := range domains {
		metrics.SetConfigEntries(domain, counts[domain])
		delete(counts, domain)
	}
	for domain, n := range counts {
		metrics.SetConfigEntries(domain, n)
	}
}

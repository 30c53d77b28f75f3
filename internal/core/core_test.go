package core

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/registry"
	"github.com/hearthd/hearth/internal/store"
)

func TestEventBusSubscribe(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	var got []Event
	unsub := bus.Subscribe(EventStateChanged, func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	bus.Fire(EventStateChanged, map[string]any{"entity_id": "sensor.time"})
	bus.Fire(EventEntryCreated, map[string]any{"entry_id": "x"})

	mu.Lock()
	require.Len(t, got, 1)
	assert.Equal(t, EventStateChanged, got[0].Type)
	assert.Equal(t, "sensor.time", got[0].Data["entity_id"])
	assert.False(t, got[0].TimeFired.IsZero())
	mu.Unlock()

	unsub()
	unsub() // second call is a no-op
	bus.Fire(EventStateChanged, nil)

	mu.Lock()
	assert.Len(t, got, 1)
	mu.Unlock()
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus()

	var count int
	bus.Subscribe("", func(Event) { count++ })

	bus.Fire(EventStateChanged, nil)
	bus.Fire(EventEntryRemoved, nil)

	assert.Equal(t, 2, count)
}

func TestStateMachineSetAndRemove(t *testing.T) {
	bus := NewEventBus()
	sm := NewStateMachine(bus)

	var events []Event
	bus.Subscribe(EventStateChanged, func(ev Event) { events = append(events, ev) })

	sm.Set("sensor.time", "23:10", map[string]any{"icon": "mdi:clock"})

	state, ok := sm.Get("sensor.time")
	require.True(t, ok)
	assert.Equal(t, "23:10", state.State)
	assert.Equal(t, "mdi:clock", state.Attributes["icon"])

	require.Len(t, events, 1)
	assert.Nil(t, events[0].Data["old_state"])

	sm.Set("sensor.time", "23:11", nil)
	require.Len(t, events, 2)
	old, ok := events[1].Data["old_state"].(State)
	require.True(t, ok)
	assert.Equal(t, "23:10", old.State)

	sm.Remove("sensor.time")
	_, ok = sm.Get("sensor.time")
	assert.False(t, ok)
	require.Len(t, events, 3)
	assert.Nil(t, events[2].Data["new_state"])

	// Removing an unknown entity fires nothing.
	sm.Remove("sensor.gone")
	assert.Len(t, events, 3)
}

func TestStateMachineAllSorted(t *testing.T) {
	sm := NewStateMachine(NewEventBus())
	sm.Set("sensor.b", "2", nil)
	sm.Set("sensor.a", "1", nil)

	all := sm.All()
	require.Len(t, all, 2)
	assert.Equal(t, "sensor.a", all[0].EntityID)
	assert.Equal(t, "sensor.b", all[1].EntityID)
}

// fakePlatform records entry lifecycle calls.
type fakePlatform struct {
	domain   string
	setup    []string
	unloaded []string
	setupErr error
}

func (p *fakePlatform) Domain() string { return p.domain }

func (p *fakePlatform) SetupEntry(h *Hub, entry *store.Entry) error {
	if p.setupErr != nil {
		return p.setupErr
	}
	p.setup = append(p.setup, entry.EntryID)
	h.States.Set("sensor."+entry.Title, "up", nil)
	return nil
}

func (p *fakePlatform) UnloadEntry(entryID string) error {
	p.unloaded = append(p.unloaded, entryID)
	return nil
}

func testHub(t *testing.T) (*Hub, *fakePlatform) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.New()
	cfg.TimeZone = "UTC"

	entries, err := store.Open(filepath.Join(dir, "entries.yaml"))
	require.NoError(t, err)
	reg, err := registry.Open(filepath.Join(dir, "entities.yaml"))
	require.NoError(t, err)

	hub := New(cfg, entries, reg)
	platform := &fakePlatform{domain: "time_date"}
	hub.RegisterPlatform(platform)
	return hub, platform
}

func TestHubAddEntry(t *testing.T) {
	hub, platform := testHub(t)

	var created []Event
	hub.Bus.Subscribe(EventEntryCreated, func(ev Event) { created = append(created, ev) })

	entry, err := hub.AddEntry("time_date", "clock", map[string]any{"display_options": []string{"time"}})
	require.NoError(t, err)

	assert.Equal(t, []string{entry.EntryID}, platform.setup)
	require.Len(t, created, 1)
	assert.Equal(t, entry.EntryID, created[0].Data["entry_id"])

	_, ok := hub.States.Get("sensor.clock")
	assert.True(t, ok)
}

func TestHubRemoveEntry(t *testing.T) {
	hub, platform := testHub(t)

	entry, err := hub.AddEntry("time_date", "clock", map[string]any{"display_options": []string{"time"}})
	require.NoError(t, err)

	// Register an entity owned by the entry, as a platform would.
	regEntry, err := hub.Registry.GetOrCreate("sensor", "time_date", "time", "Time", entry.EntryID)
	require.NoError(t, err)
	hub.States.Set(regEntry.EntityID, "12:00", nil)

	var removed []Event
	hub.Bus.Subscribe(EventEntryRemoved, func(ev Event) { removed = append(removed, ev) })

	require.NoError(t, hub.RemoveEntry(entry.EntryID))

	assert.Equal(t, []string{entry.EntryID}, platform.unloaded)
	_, ok := hub.States.Get(regEntry.EntityID)
	assert.False(t, ok, "entity state should be dropped with its entry")
	assert.Empty(t, hub.Registry.EntriesForConfigEntry(entry.EntryID))
	require.Len(t, removed, 1)

	assert.ErrorIs(t, hub.RemoveEntry(entry.EntryID), store.ErrEntryNotFound)
}

func TestHubUpdateEntryOptions(t *testing.T) {
	hub, platform := testHub(t)

	entry, err := hub.AddEntry("time_date", "clock", map[string]any{"display_options": []string{"time"}})
	require.NoError(t, err)

	updated, err := hub.UpdateEntryOptions(entry.EntryID, map[string]any{"display_options": []string{"date"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"date"}, updated.Options["display_options"])
	// Reload means unload then set up again.
	assert.Equal(t, []string{entry.EntryID}, platform.unloaded)
	assert.Equal(t, []string{entry.EntryID, entry.EntryID}, platform.setup)
}

func TestHubStartSetsUpStoredEntries(t *testing.T) {
	dir := t.TempDir()
	entriesPath := filepath.Join(dir, "entries.yaml")

	pre, err := store.Open(entriesPath)
	require.NoError(t, err)
	_, err = pre.Add("time_date", "clock", map[string]any{"display_options": []string{"time"}})
	require.NoError(t, err)

	cfg := config.New()
	cfg.TimeZone = "UTC"
	entries, err := store.Open(entriesPath)
	require.NoError(t, err)
	reg, err := registry.Open(filepath.Join(dir, "entities.yaml"))
	require.NoError(t, err)

	hub := New(cfg, entries, reg)
	platform := &fakePlatform{domain: "time_date"}
	hub.RegisterPlatform(platform)

	hub.Start()
	assert.Len(t, platform.setup, 1)

	hub.Stop()
	assert.Len(t, platform.unloaded, 1)
}

func TestHubLocationFallsBackToUTC(t *testing.T) {
	dir := t.TempDir()
	entries, err := store.Open(filepath.Join(dir, "entries.yaml"))
	require.NoError(t, err)
	reg, err := registry.Open(filepath.Join(dir, "entities.yaml"))
	require.NoError(t, err)

	hub := New(config.New(), entries, reg)
	assert.Equal(t, "UTC", hub.Location().String())
}

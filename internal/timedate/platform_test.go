package timedate

import (
	"path/filepath"
	"testing"

	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/core"
	"github.com/hearthd/hearth/internal/registry"
	"github.com/hearthd/hearth/internal/store"
)

func platformFixture(t *testing.T) (*core.Hub, *Platform) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.New()
	cfg.TimeZone = "UTC"

	entries, err := store.Open(filepath.Join(dir, "entries.yaml"))
	if err != nil {
		t.Fatalf("store.Open(): %v", err)
	}
	reg, err := registry.Open(filepath.Join(dir, "entities.yaml"))
	if err != nil {
		t.Fatalf("registry.Open(): %v", err)
	}

	hub := core.New(cfg, entries, reg)
	platform := NewPlatform()
	hub.RegisterPlatform(platform)
	return hub, platform
}

func TestPlatformSetupEntry(t *testing.T) {
	hub, platform := platformFixture(t)

	entry, err := hub.Entries.Add(Domain, "Time & Date time, beat", map[string]any{
		ConfDisplayOptions: []string{"time", "beat"},
	})
	if err != nil {
		t.Fatalf("Add(): %v", err)
	}

	if err := platform.SetupEntry(hub, entry); err != nil {
		t.Fatalf("SetupEntry(): %v", err)
	}

	state, ok := hub.States.Get("sensor.time")
	if !ok {
		t.Fatal("sensor.time not published")
	}
	if state.Attributes["icon"] != "mdi:clock" {
		t.Errorf("icon = %v", state.Attributes["icon"])
	}
	if state.Attributes["friendly_name"] != "Time" {
		t.Errorf("friendly_name = %v", state.Attributes["friendly_name"])
	}

	if _, ok := hub.States.Get("sensor.internet_time"); !ok {
		t.Fatal("sensor.internet_time not published")
	}

	// Registry entries are owned by the config entry.
	owned := hub.Registry.EntriesForConfigEntry(entry.EntryID)
	if len(owned) != 2 {
		t.Fatalf("registry has %d entries for config entry, want 2", len(owned))
	}

	if err := platform.UnloadEntry(entry.EntryID); err != nil {
		t.Fatalf("UnloadEntry(): %v", err)
	}
	if _, ok := hub.States.Get("sensor.time"); ok {
		t.Error("sensor.time state survived unload")
	}
	if _, ok := hub.States.Get("sensor.internet_time"); ok {
		t.Error("sensor.internet_time state survived unload")
	}
}

func TestPlatformSetupEntryRejectsBadOptions(t *testing.T) {
	hub, platform := platformFixture(t)

	entry := &store.Entry{
		EntryID: "entry-1",
		Domain:  Domain,
		Options: map[string]any{ConfDisplayOptions: []string{}},
	}
	if err := platform.SetupEntry(hub, entry); err == nil {
		t.Error("expected error for empty selection")
	}

	entry.Options = map[string]any{ConfDisplayOptions: []string{"stardate"}}
	if err := platform.SetupEntry(hub, entry); err == nil {
		t.Error("expected error for unknown option")
	}

	entry.Options = map[string]any{}
	if err := platform.SetupEntry(hub, entry); err == nil {
		t.Error("expected error for missing options")
	}
}

func TestPlatformUnloadUnknownEntry(t *testing.T) {
	_, platform := platformFixture(t)
	if err := platform.UnloadEntry("missing"); err != nil {
		t.Errorf("UnloadEntry(missing) = %v, want nil", err)
	}
}

func TestPlatformStableEntityIDsAcrossReload(t *testing.T) {
	hub, platform := platformFixture(t)

	entry, err := hub.Entries.Add(Domain, "Time & Date time", map[string]any{
		ConfDisplayOptions: []string{"time"},
	})
	if err != nil {
		t.Fatalf("Add(): %v", err)
	}

	if err := platform.SetupEntry(hub, entry); err != nil {
		t.Fatalf("SetupEntry(): %v", err)
	}
	first, ok := hub.Registry.Lookup(SensorDomain, Domain, "time")
	if !ok {
		t.Fatal("registry entry missing")
	}

	if err := platform.UnloadEntry(entry.EntryID); err != nil {
		t.Fatalf("UnloadEntry(): %v", err)
	}
	if err := platform.SetupEntry(hub, entry); err != nil {
		t.Fatalf("SetupEntry() after reload: %v", err)
	}

	second, ok := hub.Registry.Lookup(SensorDomain, Domain, "time")
	if !ok {
		t.Fatal("registry entry missing after reload")
	}
	if first.EntityID != second.EntityID {
		t.Errorf("entity id changed across reload: %q vs %q", first.EntityID, second.EntityID)
	}
}

func TestRenameEntityReloadsStates(t *testing.T) {
	hub, _ := platformFixture(t)

	if _, err := hub.AddEntry(Domain, "Time & Date time", map[string]any{
		ConfDisplayOptions: []string{"time"},
	}); err != nil {
		t.Fatalf("AddEntry(): %v", err)
	}

	renamed, err := hub.RenameEntity("sensor.time", "Wall Clock")
	if err != nil {
		t.Fatalf("RenameEntity(): %v", err)
	}
	if renamed.Name != "Wall Clock" {
		t.Errorf("Name = %q, want Wall Clock", renamed.Name)
	}

	state, ok := hub.States.Get("sensor.time")
	if !ok {
		t.Fatal("sensor.time not published after rename")
	}
	if state.Attributes["friendly_name"] != "Wall Clock" {
		t.Errorf("friendly_name = %v, want Wall Clock", state.Attributes["friendly_name"])
	}

	if _, err := hub.RenameEntity("sensor.time", ""); err != nil {
		t.Fatalf("RenameEntity(reset): %v", err)
	}
	state, ok = hub.States.Get("sensor.time")
	if !ok {
		t.Fatal("sensor.time not published after reset")
	}
	if state.Attributes["friendly_name"] != "Time" {
		t.Errorf("friendly_name after reset = %v, want Time", state.Attributes["friendly_name"])
	}
}

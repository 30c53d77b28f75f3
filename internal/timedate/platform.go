package timedate

import (
	"fmt"
	"sync"

	"github.com/hearthd/hearth/internal/core"
	"github.com/hearthd/hearth/internal/store"
)

// Platform loads time and date sensors for config entries.
type Platform struct {
	mu     sync.Mutex
	loaded map[string][]*loadedSensor
}

type loadedSensor struct {
	entityID string
	run      *runner
	states   *core.StateMachine
}

// NewPlatform creates the time_date platform.
func NewPlatform() *Platform {
	return &Platform{loaded: make(map[string][]*loadedSensor)}
}

// Domain implements core.Platform.
func (p *Platform) Domain() string { return Domain }

// SetupEntry implements core.Platform: it registers one sensor entity
// per configured display option and starts publishing states.
func (p *Platform) SetupEntry(hub *core.Hub, entry *store.Entry) error {
	options, err := DisplayOptions(entry.Options)
	if err != nil {
		return err
	}
	if len(options) == 0 {
		return fmt.Errorf("config entry %s selects no display options", entry.EntryID)
	}

	var loaded []*loadedSensor
	fail := func(err error) error {
		for _, ls := range loaded {
			ls.run.stop()
		}
		return err
	}

	for _, option := range options {
		sensor, err := NewSensor(option, hub.Location())
		if err != nil {
			return fail(err)
		}

		regEntry, err := hub.Registry.GetOrCreate(
			SensorDomain, Domain, sensor.UniqueID(), sensor.Name(), entry.EntryID)
		if err != nil {
			return fail(err)
		}

		name := regEntry.Name
		if name == "" {
			name = sensor.Name()
		}

		entityID := regEntry.EntityID
		attrs := sensor.Attributes(name)
		run := startRunner(sensor, func(state string) {
			hub.States.Set(entityID, state, attrs)
		})
		loaded = append(loaded, &loadedSensor{entityID: entityID, run: run, states: hub.States})
	}

	p.mu.Lock()
	p.loaded[entry.EntryID] = loaded
	p.mu.Unlock()
	return nil
}

// UnloadEntry implements core.Platform: it stops the entry's sensors
// and withdraws their states. Registry cleanup belongs to the hub so
// entity ids survive an options reload.
func (p *Platform) UnloadEntry(entryID string) error {
	p.mu.Lock()
	loaded := p.loaded[entryID]
	delete(p.loaded, entryID)
	p.mu.Unlock()

	for _, ls := range loaded {
		ls.run.stop()
		ls.states.Remove(ls.entityID)
	}
	return nil
}

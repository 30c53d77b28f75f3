package core

import (
	"sort"
	"sync"
	"time"
)

// State is the current value of one entity plus its attributes.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastUpdated time.Time      `json:"last_updated"`
}

// StateMachine tracks entity states and fires state_changed events on
// every transition. Safe for concurrent use.
type StateMachine struct {
	mu     sync.RWMutex
	states map[string]State
	bus    *EventBus
}

// NewStateMachine creates a state machine that reports changes to bus.
func NewStateMachine(bus *EventBus) *StateMachine {
	return &StateMachine{
		states: make(map[string]State),
		bus:    bus,
	}
}

// Set records a new state for an entity and fires state_changed. The
// event carries the old state (nil on first sight) and the new one.
func (sm *StateMachine) Set(entityID, state string, attributes map[string]any) {
	now := time.Now().UTC()
	newState := State{
		EntityID:    entityID,
		State:       state,
		Attributes:  attributes,
		LastUpdated: now,
	}

	sm.mu.Lock()
	old, hadOld := sm.states[entityID]
	sm.states[entityID] = newState
	sm.mu.Unlock()

	data := map[string]any{
		"entity_id": entityID,
		"new_state": newState,
	}
	if hadOld {
		data["old_state"] = old
	} else {
		data["old_state"] = nil
	}
	sm.bus.Fire(EventStateChanged, data)
}

// Get returns the state of an entity.
func (sm *StateMachine) Get(entityID string) (State, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	s, ok := sm.states[entityID]
	return s, ok
}

// Remove drops an entity's state, firing state_changed with a nil new
// state so subscribers see the removal.
func (sm *StateMachine) Remove(entityID string) {
	sm.mu.Lock()
	old, ok := sm.states[entityID]
	if ok {
		delete(sm.states, entityID)
	}
	sm.mu.Unlock()

	if !ok {
		return
	}
	sm.bus.Fire(EventStateChanged, map[string]any{
		"entity_id": entityID,
		"old_state": old,
		"new_state": nil,
	})
}

// All returns every known state sorted by entity id.
func (sm *StateMachine) All() []State {
	sm.mu.RLock()
	out := make([]State, 0, len(sm.states))
	for _, s := range sm.states {
		out = append(out, s)
	}
	sm.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

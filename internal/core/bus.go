package core

import (
	"sync"
	"time"
)

// Event types fired by the hub.
const (
	EventStateChanged = "state_changed"
	EventEntryCreated = "config_entry_created"
	EventEntryRemoved = "config_entry_removed"
	EventEntryUpdated = "config_entry_updated"
)

// Event is a hub event delivered to bus subscribers and, through the
// API, to subscribed clients.
type Event struct {
	Type      string         `json:"event_type"`
	Data      map[string]any `json:"data"`
	TimeFired time.Time      `json:"time_fired"`
}

type subscription struct {
	eventType string // empty subscribes to all events
	fn        func(Event)
}

// EventBus fans hub events out to subscribers. Callbacks run on the
// firing goroutine, so they must not block.
type EventBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]subscription
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]subscription)}
}

// Subscribe registers fn for events of the given type. An empty
// eventType subscribes to everything. The returned function removes
// the subscription and is safe to call more than once.
func (b *EventBus) Subscribe(eventType string, fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{eventType: eventType, fn: fn}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Fire delivers an event to all matching subscribers.
func (b *EventBus) Fire(eventType string, data map[string]any) {
	ev := Event{Type: eventType, Data: data, TimeFired: time.Now().UTC()}

	// Snapshot under lock; deliver outside it so a callback can
	// subscribe or unsubscribe without deadlocking.
	b.mu.Lock()
	targets := make([]func(Event), 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.eventType == "" || sub.eventType == ev.Type {
			targets = append(targets, sub.fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range targets {
		fn(ev)
	}
}

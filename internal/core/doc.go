// Package core implements the hub runtime.
//
// The hub is the long-lived object everything else hangs off: it owns
// the config entry store, the entity registry, the entity state
// machine, and the event bus, and it drives integration platforms
// through their config entry lifecycle (setup at startup and on flow
// completion, unload on removal, reload on options change).
//
// State changes and entry lifecycle transitions are published on the
// event bus. The websocket API bridges bus events to subscribed
// clients; platforms and previews write entity states through the
// state machine, which fires state_changed for every transition.
//
// Bus callbacks run synchronously on the firing goroutine. Anything
// that can block (like a websocket send) must hand off to its own
// writer rather than stalling the bus.
package core

package client

import (
	"encoding/json"
	"time"
)

// Frame types on the wire.
const (
	frameAuthRequired = "auth_required"
	frameAuthOK       = "auth_ok"
	frameAuthInvalid  = "auth_invalid"
	frameResult       = "result"
	frameEvent        = "event"
	framePong         = "pong"
)

// Flow kinds accepted by flow commands and previews.
const (
	FlowTypeConfig  = "config_flow"
	FlowTypeOptions = "options_flow"
)

// Flow result types.
const (
	ResultTypeForm        = "form"
	ResultTypeCreateEntry = "create_entry"
	ResultTypeAbort       = "abort"
)

// EventStateChanged is the event type fired when an entity state
// changes.
const EventStateChanged = "state_changed"

// serverFrame is the superset of every frame the hub sends.
type serverFrame struct {
	ID      uint64          `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *CommandError   `json:"error"`
	Event   json.RawMessage `json:"event"`
	Message string          `json:"message"`
	Version string          `json:"version"`
}

// HubConfig is the hub's get_config response.
type HubConfig struct {
	Version  string `json:"version"`
	TimeZone string `json:"time_zone"`
	Port     int    `json:"port"`
}

// State is one entity state as reported by get_states.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastUpdated time.Time      `json:"last_updated"`
}

// FriendlyName returns the display name from the state attributes,
// falling back to the entity id.
func (s State) FriendlyName() string {
	if name, ok := s.Attributes["friendly_name"].(string); ok && name != "" {
		return name
	}
	return s.EntityID
}

// ConfigEntry is one stored configuration as reported by
// config_entries/list.
type ConfigEntry struct {
	EntryID   string         `json:"entry_id"`
	Domain    string         `json:"domain"`
	Title     string         `json:"title"`
	Options   map[string]any `json:"options"`
	CreatedAt time.Time      `json:"created_at"`
}

// RegistryEntry is one entity registry record as reported by
// entity_registry/list.
type RegistryEntry struct {
	EntityID      string `json:"entity_id"`
	Domain        string `json:"domain"`
	Platform      string `json:"platform"`
	UniqueID      string `json:"unique_id"`
	Name          string `json:"name"`
	ConfigEntryID string `json:"config_entry_id"`
}

// Event is one bus event delivered to a subscription.
type Event struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
	TimeFired time.Time      `json:"time_fired"`
}

// FlowResult is one step response from a config or options flow. Type
// is "form" while input is needed, "create_entry" or "abort" when the
// flow ends.
type FlowResult struct {
	Type     string            `json:"type"`
	FlowID   string            `json:"flow_id"`
	Handler  string            `json:"handler"`
	StepID   string            `json:"step_id"`
	Schema   []map[string]any  `json:"schema"`
	Defaults map[string]any    `json:"defaults"`
	Errors   map[string]string `json:"errors"`
	Preview  string            `json:"preview"`
	Title    string            `json:"title"`
	EntryID  string            `json:"entry_id"`
	Options  map[string]any    `json:"options"`
	Reason   string            `json:"reason"`
}

// PreviewItem is one sensor value in a preview update.
type PreviewItem struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// FriendlyName returns the display name from the item attributes.
func (p PreviewItem) FriendlyName() string {
	if name, ok := p.Attributes["friendly_name"].(string); ok {
		return name
	}
	return ""
}

// PreviewUpdate is one live preview event carrying the current value
// of every previewed sensor.
type PreviewUpdate struct {
	Items []PreviewItem `json:"items"`
}

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// Ping checks that the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.result(ctx, map[string]any{"type": "ping"}, nil)
}

// GetConfig returns the hub configuration summary.
func (c *Client) GetConfig(ctx context.Context) (*HubConfig, error) {
	var cfg HubConfig
	if err := c.result(ctx, map[string]any{"type": "get_config"}, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetStates returns all current entity states.
func (c *Client) GetStates(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.result(ctx, map[string]any{"type": "get_states"}, &states); err != nil {
		return nil, err
	}
	return states, nil
}

// ListEntries returns all stored config entries.
func (c *Client) ListEntries(ctx context.Context) ([]ConfigEntry, error) {
	var entries []ConfigEntry
	if err := c.result(ctx, map[string]any{"type": "config_entries/list"}, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// RemoveEntry deletes a config entry and tears its entities down.
func (c *Client) RemoveEntry(ctx context.Context, entryID string) error {
	return c.result(ctx, map[string]any{
		"type":     "config_entries/remove",
		"entry_id": entryID,
	}, nil)
}

// ListEntities returns the entity registry.
func (c *Client) ListEntities(ctx context.Context) ([]RegistryEntry, error) {
	var entities []RegistryEntry
	if err := c.result(ctx, map[string]any{"type": "entity_registry/list"}, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// RenameEntity changes an entity's display name. An empty name restores
// the default one.
func (c *Client) RenameEntity(ctx context.Context, entityID, name string) (*RegistryEntry, error) {
	var renamed RegistryEntry
	if err := c.result(ctx, map[string]any{
		"type":      "entity_registry/rename",
		"entity_id": entityID,
		"name":      name,
	}, &renamed); err != nil {
		return nil, err
	}
	return &renamed, nil
}

// StartConfigFlow begins a setup wizard for the given handler and
// returns its first step.
func (c *Client) StartConfigFlow(ctx context.Context, handler string) (*FlowResult, error) {
	var res FlowResult
	if err := c.result(ctx, map[string]any{
		"type":    "config_entries/flow/start",
		"handler": handler,
	}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// StartOptionsFlow begins an options wizard for an existing entry. The
// first form comes prefilled with the entry's current options.
func (c *Client) StartOptionsFlow(ctx context.Context, entryID string) (*FlowResult, error) {
	var res FlowResult
	if err := c.result(ctx, map[string]any{
		"type":     "config_entries/options_flow/start",
		"entry_id": entryID,
	}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SubmitFlow sends user input for the current step of a flow.
func (c *Client) SubmitFlow(ctx context.Context, flowID string, input map[string]any) (*FlowResult, error) {
	var res FlowResult
	if err := c.result(ctx, map[string]any{
		"type":       "config_entries/flow/submit",
		"flow_id":    flowID,
		"user_input": input,
	}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FlowProgress re-fetches the current step of a flow.
func (c *Client) FlowProgress(ctx context.Context, flowID string) (*FlowResult, error) {
	var res FlowResult
	if err := c.result(ctx, map[string]any{
		"type":    "config_entries/flow/progress",
		"flow_id": flowID,
	}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AbortFlow cancels an in-progress flow.
func (c *Client) AbortFlow(ctx context.Context, flowID string) error {
	return c.result(ctx, map[string]any{
		"type":    "config_entries/flow/abort",
		"flow_id": flowID,
	}, nil)
}

// SubscribeEvents subscribes to bus events of the given type, or to
// all events when eventType is empty. fn runs on the read loop.
func (c *Client) SubscribeEvents(ctx context.Context, eventType string, fn func(Event)) (*Subscription, error) {
	cmd := map[string]any{"type": "subscribe_events"}
	if eventType != "" {
		cmd["event_type"] = eventType
	}
	return c.subscribe(ctx, cmd, func(raw json.RawMessage) {
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return
		}
		fn(ev)
	})
}

// StartPreview subscribes to the live preview offered by a form step,
// feeding prospective user input to the hub. fn receives a fresh
// update whenever any previewed sensor changes. flowType says whether
// the flow is a config or an options flow.
func (c *Client) StartPreview(ctx context.Context, form *FlowResult, flowType string, input map[string]any, fn func(PreviewUpdate)) (*Subscription, error) {
	if form.Preview == "" {
		return nil, fmt.Errorf("step %q does not offer a preview", form.StepID)
	}
	cmd := map[string]any{
		"type":       form.Preview + "/start_preview",
		"flow_id":    form.FlowID,
		"flow_type":  flowType,
		"user_input": input,
	}
	return c.subscribe(ctx, cmd, func(raw json.RawMessage) {
		var update PreviewUpdate
		if err := json.Unmarshal(raw, &update); err != nil {
			return
		}
		fn(update)
	})
}

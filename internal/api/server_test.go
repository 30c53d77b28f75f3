package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthd/hearth/internal/api"
	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/core"
	"github.com/hearthd/hearth/internal/flow"
	"github.com/hearthd/hearth/internal/registry"
	"github.com/hearthd/hearth/internal/store"
	"github.com/hearthd/hearth/internal/timedate"
)

const readTimeout = 5 * time.Second

func newTestServer(t *testing.T, token string) (*httptest.Server, *core.Hub) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.New()
	cfg.TimeZone = "UTC"
	cfg.APIToken = token

	entries, err := store.Open(filepath.Join(dir, "entries.yaml"))
	require.NoError(t, err)
	reg, err := registry.Open(filepath.Join(dir, "entities.yaml"))
	require.NoError(t, err)

	hub := core.New(cfg, entries, reg)
	hub.RegisterPlatform(timedate.NewPlatform())

	flows := flow.NewManager(hub)
	flows.Register(timedate.NewFlowHandler())

	srv := api.NewServer(hub, flows)
	timedate.RegisterWebsocketCommands(srv, hub, flows)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, hub
}

type wsClient struct {
	t      *testing.T
	conn   *websocket.Conn
	nextID uint64
}

func dialWS(t *testing.T, ts *httptest.Server, token string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &wsClient{t: t, conn: conn}
	first := c.readFrame()
	switch first["type"] {
	case "auth_ok":
	case "auth_required":
		require.NoError(t, conn.WriteJSON(map[string]any{
			"type":         "auth",
			"access_token": token,
		}))
		ok := c.readFrame()
		require.Equal(t, "auth_ok", ok["type"])
	default:
		t.Fatalf("unexpected first frame: %v", first)
	}
	return c
}

func (c *wsClient) readFrame() map[string]any {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)

	var frame map[string]any
	require.NoError(c.t, json.Unmarshal(data, &frame))
	return frame
}

// send writes a command with the next id and returns the id used.
func (c *wsClient) send(cmd map[string]any) uint64 {
	c.t.Helper()
	c.nextID++
	cmd["id"] = c.nextID
	require.NoError(c.t, c.conn.WriteJSON(cmd))
	return c.nextID
}

// resultFor reads frames until the response for id arrives, collecting
// any event frames seen along the way.
func (c *wsClient) resultFor(id uint64) (map[string]any, []map[string]any) {
	c.t.Helper()
	var events []map[string]any
	for i := 0; i < 50; i++ {
		frame := c.readFrame()
		if frame["type"] == "event" {
			events = append(events, frame)
			continue
		}
		if uint64(frame["id"].(float64)) == id {
			return frame, events
		}
	}
	c.t.Fatalf("no response for command %d", id)
	return nil, nil
}

// roundtrip sends a command and returns its result frame.
func (c *wsClient) roundtrip(cmd map[string]any) map[string]any {
	c.t.Helper()
	id := c.send(cmd)
	frame, _ := c.resultFor(id)
	return frame
}

func errorCode(t *testing.T, frame map[string]any) string {
	t.Helper()
	require.Equal(t, false, frame["success"], "expected a failed result: %v", frame)
	errObj, ok := frame["error"].(map[string]any)
	require.True(t, ok, "error payload missing: %v", frame)
	return errObj["code"].(string)
}

func TestAuthWithoutToken(t *testing.T) {
	ts, _ := newTestServer(t, "")
	c := dialWS(t, ts, "")

	frame := c.roundtrip(map[string]any{"type": "ping"})
	assert.Equal(t, "pong", frame["type"])
}

func TestAuthWithToken(t *testing.T) {
	ts, _ := newTestServer(t, "secret")

	// Wrong token is rejected and the connection closed.
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "auth_required", frame["type"])

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":         "auth",
		"access_token": "wrong",
	}))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "auth_invalid", frame["type"])

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "connection should be closed after auth_invalid")

	// The right token gets through.
	c := dialWS(t, ts, "secret")
	pong := c.roundtrip(map[string]any{"type": "ping"})
	assert.Equal(t, "pong", pong["type"])
}

func TestCommandIDsMustIncrease(t *testing.T) {
	ts, _ := newTestServer(t, "")
	c := dialWS(t, ts, "")

	require.NoError(t, c.conn.WriteJSON(map[string]any{"id": 5, "type": "ping"}))
	frame := c.readFrame()
	assert.Equal(t, "pong", frame["type"])

	// Reusing or going backwards is refused.
	require.NoError(t, c.conn.WriteJSON(map[string]any{"id": 5, "type": "ping"}))
	frame = c.readFrame()
	assert.Equal(t, api.ErrIDReuse, errorCode(t, frame))

	require.NoError(t, c.conn.WriteJSON(map[string]any{"id": 4, "type": "ping"}))
	frame = c.readFrame()
	assert.Equal(t, api.ErrIDReuse, errorCode(t, frame))

	require.NoError(t, c.conn.WriteJSON(map[string]any{"id": 6, "type": "ping"}))
	frame = c.readFrame()
	assert.Equal(t, "pong", frame["type"])
}

func TestUnknownCommand(t *testing.T) {
	ts, _ := newTestServer(t, "")
	c := dialWS(t, ts, "")

	frame := c.roundtrip(map[string]any{"type": "warp_drive/engage"})
	assert.Equal(t, api.ErrUnknownCommand, errorCode(t, frame))
}

func TestMissingIDOrType(t *testing.T) {
	ts, _ := newTestServer(t, "")
	c := dialWS(t, ts, "")

	require.NoError(t, c.conn.WriteJSON(map[string]any{"type": "ping"}))
	frame := c.readFrame()
	assert.Equal(t, api.ErrInvalidFormat, errorCode(t, frame))

	require.NoError(t, c.conn.WriteJSON(map[string]any{"id": 1}))
	frame = c.readFrame()
	assert.Equal(t, api.ErrInvalidFormat, errorCode(t, frame))
}

func TestInvalidJSONClosesConnection(t *testing.T) {
	ts, _ := newTestServer(t, "")
	c := dialWS(t, ts, "")

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	frame := c.readFrame()
	assert.Equal(t, api.ErrInvalidFormat, errorCode(t, frame))

	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, _, err := c.conn.ReadMessage()
	assert.Error(t, err, "connection should close after unparseable frame")
}

func TestGetConfig(t *testing.T) {
	ts, _ := newTestServer(t, "")
	c := dialWS(t, ts, "")

	frame := c.roundtrip(map[string]any{"type": "get_config"})
	require.Equal(t, true, frame["success"])
	result := frame["result"].(map[string]any)
	assert.Equal(t, "UTC", result["time_zone"])
}

func TestConfigFlowOverWebsocket(t *testing.T) {
	ts, hub := newTestServer(t, "")
	c := dialWS(t, ts, "")

	// Start the wizard.
	frame := c.roundtrip(map[string]any{
		"type":    "config_entries/flow/start",
		"handler": "time_date",
	})
	require.Equal(t, true, frame["success"], "start failed: %v", frame)
	form := frame["result"].(map[string]any)
	assert.Equal(t, "form", form["type"])
	assert.Equal(t, "user", form["step_id"])
	assert.Equal(t, "time_date", form["preview"])
	flowID := form["flow_id"].(string)
	require.NotEmpty(t, flowID)
	require.NotEmpty(t, form["schema"])

	// Submit a selection.
	frame = c.roundtrip(map[string]any{
		"type":       "config_entries/flow/submit",
		"flow_id":    flowID,
		"user_input": map[string]any{"display_options": []string{"time"}},
	})
	require.Equal(t, true, frame["success"])
	created := frame["result"].(map[string]any)
	assert.Equal(t, "create_entry", created["type"])
	assert.Equal(t, "Time & Date time", created["title"])
	entryID := created["entry_id"].(string)

	// The entry exists and its sensor runs.
	frame = c.roundtrip(map[string]any{"type": "config_entries/list"})
	entries := frame["result"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, entryID, entries[0].(map[string]any)["entry_id"])

	frame = c.roundtrip(map[string]any{"type": "get_states"})
	states := frame["result"].([]any)
	require.Len(t, states, 1)
	assert.Equal(t, "sensor.time", states[0].(map[string]any)["entity_id"])

	_, ok := hub.Entries.Get(entryID)
	assert.True(t, ok)
}

func TestFlowSubmitUnknownFlow(t *testing.T) {
	ts, _ := newTestServer(t, "")
	c := dialWS(t, ts, "")

	frame := c.roundtrip(map[string]any{
		"type":       "config_entries/flow/submit",
		"flow_id":    "bogus",
		"user_input": map[string]any{},
	})
	assert.Equal(t, api.ErrNotFound, errorCode(t, frame))
}

func TestFlowStartUnknownHandler(t *testing.T) {
	ts, _ := newTestServer(t, "")
	c := dialWS(t, ts, "")

	frame := c.roundtrip(map[string]any{
		"type":    "config_entries/flow/start",
		"handler": "sun",
	})
	assert.Equal(t, api.ErrNotFound, errorCode(t, frame))
}

func TestFlowAbortAndProgress(t *testing.T) {
	ts, _ := newTestServer(t, "")
	c := dialWS(t, ts, "")

	frame := c.roundtrip(map[string]any{
		"type":    "config_entries/flow/start",
		"handler": "time_date",
	})
	flowID := frame["result"].(map[string]any)["flow_id"].(string)

	frame = c.roundtrip(map[string]any{
		"type":    "config_entries/flow/progress",
		"flow_id": flowID,
	})
	require.Equal(t, true, frame["success"])
	assert.Equal(t, "form", frame["result"].(map[string]any)["type"])

	frame = c.roundtrip(map[string]any{
		"type":    "config_entries/flow/abort",
		"flow_id": flowID,
	})
	require.Equal(t, true, frame["success"])

	frame = c.roundtrip(map[string]any{
		"type":    "config_entries/flow/progress",
		"flow_id": flowID,
	})
	assert.Equal(t, api.ErrNotFound, errorCode(t, frame))
}

func TestOptionsFlowOverWebsocket(t *testing.T) {
	ts, hub := newTestServer(t, "")
	c := dialWS(t, ts, "")

	entry, err := hub.AddEntry("time_date", "Time & Date time",
		map[string]any{"display_options": []string{"time"}})
	require.NoError(t, err)

	frame := c.roundtrip(map[string]any{
		"type":     "config_entries/options_flow/start",
		"entry_id": entry.EntryID,
	})
	require.Equal(t, true, frame["success"], "start failed: %v", frame)
	form := frame["result"].(map[string]any)
	assert.Equal(t, "form", form["type"])
	assert.Equal(t, "init", form["step_id"])
	defaults := form["defaults"].(map[string]any)
	assert.Equal(t, []any{"time"}, defaults["display_options"])

	frame = c.roundtrip(map[string]any{
		"type":     "config_entries/options_flow/start",
		"entry_id": "missing",
	})
	assert.Equal(t, api.ErrNotFound, errorCode(t, frame))
}

func TestRemoveEntry(t *testing.T) {
	ts, hub := newTestServer(t, "")
	c := dialWS(t, ts, "")

	entry, err := hub.AddEntry("time_date", "Time & Date date",
		map[string]any{"display_options": []string{"date"}})
	require.NoError(t, err)

	frame := c.roundtrip(map[string]any{
		"type":     "config_entries/remove",
		"entry_id": entry.EntryID,
	})
	require.Equal(t, true, frame["success"])

	frame = c.roundtrip(map[string]any{"type": "get_states"})
	assert.Empty(t, frame["result"])

	frame = c.roundtrip(map[string]any{
		"type":     "config_entries/remove",
		"entry_id": entry.EntryID,
	})
	assert.Equal(t, api.ErrNotFound, errorCode(t, frame))
}

func TestEntityRegistryCommands(t *testing.T) {
	ts, hub := newTestServer(t, "")
	c := dialWS(t, ts, "")

	_, err := hub.AddEntry("time_date", "Time & Date time",
		map[string]any{"display_options": []string{"time"}})
	require.NoError(t, err)

	frame := c.roundtrip(map[string]any{"type": "entity_registry/list"})
	require.Equal(t, true, frame["success"])
	entities := frame["result"].([]any)
	require.Len(t, entities, 1)
	assert.Equal(t, "sensor.time", entities[0].(map[string]any)["entity_id"])

	frame = c.roundtrip(map[string]any{
		"type":      "entity_registry/rename",
		"entity_id": "sensor.time",
		"name":      "Wall Clock",
	})
	require.Equal(t, true, frame["success"], "rename failed: %v", frame)
	renamed := frame["result"].(map[string]any)
	assert.Equal(t, "Wall Clock", renamed["name"])

	// The rename reloads the entry, so the republished state carries
	// the new name.
	state, ok := hub.States.Get("sensor.time")
	require.True(t, ok)
	assert.Equal(t, "Wall Clock", state.Attributes["friendly_name"])

	frame = c.roundtrip(map[string]any{
		"type":      "entity_registry/rename",
		"entity_id": "sensor.nope",
		"name":      "X",
	})
	assert.Equal(t, api.ErrNotFound, errorCode(t, frame))

	frame = c.roundtrip(map[string]any{
		"type": "entity_registry/rename",
		"name": "X",
	})
	assert.Equal(t, api.ErrInvalidFormat, errorCode(t, frame))
}

func TestSubscribeEvents(t *testing.T) {
	ts, hub := newTestServer(t, "")
	c := dialWS(t, ts, "")

	subID := c.send(map[string]any{
		"type":       "subscribe_events",
		"event_type": "state_changed",
	})
	frame, _ := c.resultFor(subID)
	require.Equal(t, true, frame["success"])

	hub.States.Set("sensor.test", "on", nil)

	event := c.readFrame()
	require.Equal(t, "event", event["type"])
	assert.Equal(t, float64(subID), event["id"])
	payload := event["event"].(map[string]any)
	assert.Equal(t, "state_changed", payload["event_type"])

	// Unsubscribing stops the stream.
	frame = c.roundtrip(map[string]any{
		"type":         "unsubscribe_events",
		"subscription": subID,
	})
	require.Equal(t, true, frame["success"])

	// Unknown subscription id.
	frame = c.roundtrip(map[string]any{
		"type":         "unsubscribe_events",
		"subscription": 9999,
	})
	assert.Equal(t, api.ErrNotFound, errorCode(t, frame))

	// No event frames arrive for changes after the unsubscribe. The
	// read timeout poisons the connection, so this check comes last.
	hub.States.Set("sensor.test", "off", nil)
	c.conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := c.conn.ReadMessage()
	assert.Error(t, err, "no frames expected after unsubscribe")
}

func TestStartPreviewConfigFlow(t *testing.T) {
	ts, _ := newTestServer(t, "")
	c := dialWS(t, ts, "")

	frame := c.roundtrip(map[string]any{
		"type":    "config_entries/flow/start",
		"handler": "time_date",
	})
	flowID := frame["result"].(map[string]any)["flow_id"].(string)

	previewID := c.send(map[string]any{
		"type":      "time_date/start_preview",
		"flow_id":   flowID,
		"flow_type": "config_flow",
		"user_input": map[string]any{
			"display_options": []string{"time", "date"},
		},
	})
	frame, _ = c.resultFor(previewID)
	require.Equal(t, true, frame["success"], "preview refused: %v", frame)

	// Events accumulate until both sensors are present.
	var items []any
	for i := 0; i < 10; i++ {
		event := c.readFrame()
		require.Equal(t, "event", event["type"])
		require.Equal(t, float64(previewID), event["id"])
		items = event["event"].(map[string]any)["items"].([]any)
		if len(items) == 2 {
			break
		}
	}
	require.Len(t, items, 2)

	first := items[0].(map[string]any)
	attrs := first["attributes"].(map[string]any)
	assert.Equal(t, "Time", attrs["friendly_name"])
	assert.Equal(t, "mdi:clock", attrs["icon"])
	assert.Regexp(t, `^\d{2}:\d{2}$`, first["state"])

	second := items[1].(map[string]any)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, second["state"])

	// The preview is a normal subscription.
	frame = c.roundtrip(map[string]any{
		"type":         "unsubscribe_events",
		"subscription": previewID,
	})
	require.Equal(t, true, frame["success"])
}

func TestStartPreviewValidation(t *testing.T) {
	ts, _ := newTestServer(t, "")
	c := dialWS(t, ts, "")

	// beat is not offered by the form, so previewing it is refused.
	frame := c.roundtrip(map[string]any{
		"type":      "time_date/start_preview",
		"flow_id":   "anything",
		"flow_type": "config_flow",
		"user_input": map[string]any{
			"display_options": []string{"beat"},
		},
	})
	assert.Equal(t, api.ErrInvalidFormat, errorCode(t, frame))

	frame = c.roundtrip(map[string]any{
		"type":       "time_date/start_preview",
		"flow_id":    "anything",
		"flow_type":  "sideways_flow",
		"user_input": map[string]any{"display_options": []string{"time"}},
	})
	assert.Equal(t, api.ErrInvalidFormat, errorCode(t, frame))
}

func TestStartPreviewOptionsFlow(t *testing.T) {
	ts, hub := newTestServer(t, "")
	c := dialWS(t, ts, "")

	entry, err := hub.AddEntry("time_date", "Time & Date time",
		map[string]any{"display_options": []string{"time"}})
	require.NoError(t, err)

	// Rename the registered entity to prove the preview picks the
	// registry name up.
	_, err = hub.Registry.Rename("sensor.time", "Wall Clock")
	require.NoError(t, err)

	frame := c.roundtrip(map[string]any{
		"type":     "config_entries/options_flow/start",
		"entry_id": entry.EntryID,
	})
	flowID := frame["result"].(map[string]any)["flow_id"].(string)

	previewID := c.send(map[string]any{
		"type":      "time_date/start_preview",
		"flow_id":   flowID,
		"flow_type": "options_flow",
		"user_input": map[string]any{
			"display_options": []string{"time"},
		},
	})
	frame, events := c.resultFor(previewID)
	require.Equal(t, true, frame["success"], "preview refused: %v", frame)

	if len(events) == 0 {
		events = append(events, c.readFrame())
	}
	payload := events[0]["event"].(map[string]any)
	items := payload["items"].([]any)
	require.Len(t, items, 1)
	attrs := items[0].(map[string]any)["attributes"].(map[string]any)
	assert.Equal(t, "Wall Clock", attrs["friendly_name"])

	// A preview against a vanished options flow is refused.
	frame = c.roundtrip(map[string]any{
		"type":       "time_date/start_preview",
		"flow_id":    "bogus",
		"flow_type":  "options_flow",
		"user_input": map[string]any{"display_options": []string{"time"}},
	})
	assert.Equal(t, api.ErrNotFound, errorCode(t, frame))
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hearth_api_connections_active")
}

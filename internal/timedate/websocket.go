package timedate

import (
	"go.uber.org/zap"

	"github.com/hearthd/hearth/internal/api"
	"github.com/hearthd/hearth/internal/core"
	"github.com/hearthd/hearth/internal/flow"
	"github.com/hearthd/hearth/internal/logging"
)

// PreviewCommand is the websocket command that starts a live preview.
const PreviewCommand = Domain + "/start_preview"

// RegisterWebsocketCommands contributes the integration's websocket
// commands to the API server.
func RegisterWebsocketCommands(srv *api.Server, hub *core.Hub, flows *flow.Manager) {
	srv.RegisterCommand(PreviewCommand, startPreviewCommand(hub, flows))
}

// startPreviewCommand streams rendered sensor values for a flow's
// current form input. The subscription lives under the command id
// until the client unsubscribes or disconnects.
func startPreviewCommand(hub *core.Hub, flows *flow.Manager) api.CommandHandler {
	return func(conn *api.Connection, msg *api.Message) error {
		var params struct {
			FlowID    string         `json:"flow_id"`
			FlowType  string         `json:"flow_type"`
			UserInput map[string]any `json:"user_input"`
		}
		if err := msg.Decode(&params); err != nil {
			return api.NewCmdError(api.ErrInvalidFormat, err.Error())
		}
		if params.FlowID == "" {
			return api.NewCmdError(api.ErrInvalidFormat, "flow_id is required")
		}
		if params.FlowType != flow.KindConfig && params.FlowType != flow.KindOptions {
			return api.NewCmdError(api.ErrInvalidFormat, "flow_type must be config_flow or options_flow")
		}
		if params.UserInput == nil {
			return api.NewCmdError(api.ErrInvalidFormat, "user_input is required")
		}

		validated, err := UserSchema().Validate(params.UserInput)
		if err != nil {
			return api.NewCmdError(api.ErrInvalidFormat, err.Error())
		}
		options, err := DisplayOptions(validated)
		if err != nil {
			return api.NewCmdError(api.ErrInvalidFormat, err.Error())
		}

		// Options flow previews show the entity names the registry
		// already assigned to the entry being reconfigured. The flow
		// must exist so it can be tied back to its entry; config flow
		// previews render from input alone.
		names := make(map[string]string)
		if params.FlowType == flow.KindOptions {
			info, ok := flows.Get(params.FlowID)
			if !ok || info.Kind != flow.KindOptions {
				return api.NewCmdError(api.ErrNotFound, "options flow not found")
			}
			entry, ok := hub.Entries.Get(info.EntryID)
			if !ok {
				return api.NewCmdError(api.ErrHubError, "config entry not found")
			}
			for _, regEntry := range hub.Registry.EntriesForConfigEntry(entry.EntryID) {
				names[regEntry.UniqueID] = regEntry.Name
			}
		}

		id := msg.ID
		conn.SendResult(id, nil)

		stop, err := StartPreview(options, hub.Location(), names, func(items []PreviewItem) {
			conn.SendEvent(id, map[string]any{"items": items})
		})
		if err != nil {
			// Options passed schema validation, so sensor creation
			// cannot fail; guard anyway.
			logging.Error("failed to start preview", zap.Error(err))
			return nil
		}
		conn.Subscribe(id, stop)
		return nil
	}
}

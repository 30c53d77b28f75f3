package api

import (
	"errors"

	"github.com/hearthd/hearth/internal/core"
	"github.com/hearthd/hearth/internal/flow"
	"github.com/hearthd/hearth/internal/registry"
	"github.com/hearthd/hearth/internal/store"
	"github.com/hearthd/hearth/internal/version"
)

func (s *Server) registerBuiltinCommands() {
	s.commands["ping"] = s.cmdPing
	s.commands["get_config"] = s.cmdGetConfig
	s.commands["get_states"] = s.cmdGetStates
	s.commands["subscribe_events"] = s.cmdSubscribeEvents
	s.commands["unsubscribe_events"] = s.cmdUnsubscribeEvents
	s.commands["config_entries/list"] = s.cmdEntriesList
	s.commands["config_entries/remove"] = s.cmdEntriesRemove
	s.commands["config_entries/flow/start"] = s.cmdFlowStart
	s.commands["config_entries/flow/submit"] = s.cmdFlowSubmit
	s.commands["config_entries/flow/progress"] = s.cmdFlowProgress
	s.commands["config_entries/flow/abort"] = s.cmdFlowAbort
	s.commands["config_entries/options_flow/start"] = s.cmdOptionsFlowStart
	s.commands["entity_registry/list"] = s.cmdEntityList
	s.commands["entity_registry/rename"] = s.cmdEntityRename
}

func (s *Server) cmdPing(conn *Connection, msg *Message) error {
	conn.sendJSON(pongMessage{ID: msg.ID, Type: "pong"})
	return nil
}

func (s *Server) cmdGetConfig(conn *Connection, msg *Message) error {
	conn.SendResult(msg.ID, map[string]any{
		"version":   version.Version,
		"time_zone": s.hub.Config.TimeZone,
		"port":      s.hub.Config.Server.Port,
	})
	return nil
}

func (s *Server) cmdGetStates(conn *Connection, msg *Message) error {
	conn.SendResult(msg.ID, s.hub.States.All())
	return nil
}

func (s *Server) cmdSubscribeEvents(conn *Connection, msg *Message) error {
	var params struct {
		EventType string `json:"event_type"`
	}
	if err := msg.Decode(&params); err != nil {
		return NewCmdError(ErrInvalidFormat, err.Error())
	}

	id := msg.ID
	cancel := s.hub.Bus.Subscribe(params.EventType, func(ev core.Event) {
		conn.SendEvent(id, ev)
	})
	conn.Subscribe(id, cancel)
	conn.SendResult(id, nil)
	return nil
}

func (s *Server) cmdUnsubscribeEvents(conn *Connection, msg *Message) error {
	var params struct {
		Subscription uint64 `json:"subscription"`
	}
	if err := msg.Decode(&params); err != nil {
		return NewCmdError(ErrInvalidFormat, err.Error())
	}
	if params.Subscription == 0 {
		return NewCmdError(ErrInvalidFormat, "subscription is required")
	}

	if !conn.Unsubscribe(params.Subscription) {
		return NewCmdError(ErrNotFound, "subscription not found")
	}
	conn.SendResult(msg.ID, nil)
	return nil
}

func (s *Server) cmdEntriesList(conn *Connection, msg *Message) error {
	conn.SendResult(msg.ID, s.hub.Entries.List())
	return nil
}

func (s *Server) cmdEntriesRemove(conn *Connection, msg *Message) error {
	var params struct {
		EntryID string `json:"entry_id"`
	}
	if err := msg.Decode(&params); err != nil {
		return NewCmdError(ErrInvalidFormat, err.Error())
	}
	if params.EntryID == "" {
		return NewCmdError(ErrInvalidFormat, "entry_id is required")
	}

	if err := s.hub.RemoveEntry(params.EntryID); err != nil {
		if errors.Is(err, store.ErrEntryNotFound) {
			return NewCmdError(ErrNotFound, "config entry not found")
		}
		return err
	}
	conn.SendResult(msg.ID, nil)
	return nil
}

func (s *Server) cmdFlowStart(conn *Connection, msg *Message) error {
	var params struct {
		Handler string `json:"handler"`
	}
	if err := msg.Decode(&params); err != nil {
		return NewCmdError(ErrInvalidFormat, err.Error())
	}
	if params.Handler == "" {
		return NewCmdError(ErrInvalidFormat, "handler is required")
	}

	result, err := s.flows.StartConfig(params.Handler)
	if err != nil {
		if errors.Is(err, flow.ErrUnknownHandler) {
			return NewCmdError(ErrNotFound, "no config flow for "+params.Handler)
		}
		return err
	}
	conn.SendResult(msg.ID, result)
	return nil
}

func (s *Server) cmdFlowSubmit(conn *Connection, msg *Message) error {
	var params struct {
		FlowID    string         `json:"flow_id"`
		UserInput map[string]any `json:"user_input"`
	}
	if err := msg.Decode(&params); err != nil {
		return NewCmdError(ErrInvalidFormat, err.Error())
	}
	if params.FlowID == "" {
		return NewCmdError(ErrInvalidFormat, "flow_id is required")
	}
	if params.UserInput == nil {
		params.UserInput = map[string]any{}
	}

	result, err := s.flows.Submit(params.FlowID, params.UserInput)
	if err != nil {
		if errors.Is(err, flow.ErrFlowNotFound) {
			return NewCmdError(ErrNotFound, "flow not found")
		}
		return err
	}
	conn.SendResult(msg.ID, result)
	return nil
}

func (s *Server) cmdFlowProgress(conn *Connection, msg *Message) error {
	var params struct {
		FlowID string `json:"flow_id"`
	}
	if err := msg.Decode(&params); err != nil {
		return NewCmdError(ErrInvalidFormat, err.Error())
	}
	if params.FlowID == "" {
		return NewCmdError(ErrInvalidFormat, "flow_id is required")
	}

	result, err := s.flows.Progress(params.FlowID)
	if err != nil {
		if errors.Is(err, flow.ErrFlowNotFound) {
			return NewCmdError(ErrNotFound, "flow not found")
		}
		return err
	}
	conn.SendResult(msg.ID, result)
	return nil
}

func (s *Server) cmdFlowAbort(conn *Connection, msg *Message) error {
	var params struct {
		FlowID string `json:"flow_id"`
	}
	if err := msg.Decode(&params); err != nil {
		return NewCmdError(ErrInvalidFormat, err.Error())
	}
	if params.FlowID == "" {
		return NewCmdError(ErrInvalidFormat, "flow_id is required")
	}

	if err := s.flows.Abort(params.FlowID); err != nil {
		if errors.Is(err, flow.ErrFlowNotFound) {
			return NewCmdError(ErrNotFound, "flow not found")
		}
		return err
	}
	conn.SendResult(msg.ID, nil)
	return nil
}

func (s *Server) cmdOptionsFlowStart(conn *Connection, msg *Message) error {
	var params struct {
		EntryID string `json:"entry_id"`
	}
	if err := msg.Decode(&params); err != nil {
		return NewCmdError(ErrInvalidFormat, err.Error())
	}
	if params.EntryID == "" {
		return NewCmdError(ErrInvalidFormat, "entry_id is required")
	}

	result, err := s.flows.StartOptions(params.EntryID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEntryNotFound):
			return NewCmdError(ErrNotFound, "config entry not found")
		case errors.Is(err, flow.ErrUnknownHandler):
			return NewCmdError(ErrNotFound, "no handler for entry")
		case errors.Is(err, flow.ErrNoOptionsFlow):
			return NewCmdError(ErrHubError, err.Error())
		}
		return err
	}
	conn.SendResult(msg.ID, result)
	return nil
}

func (s *Server) cmdEntityList(conn *Connection, msg *Message) error {
	conn.SendResult(msg.ID, s.hub.Registry.List())
	return nil
}

func (s *Server) cmdEntityRename(conn *Connection, msg *Message) error {
	var params struct {
		EntityID string `json:"entity_id"`
		Name     string `json:"name"`
	}
	if err := msg.Decode(&params); err != nil {
		return NewCmdError(ErrInvalidFormat, err.Error())
	}
	if params.EntityID == "" {
		return NewCmdError(ErrInvalidFormat, "entity_id is required")
	}

	renamed, err := s.hub.RenameEntity(params.EntityID, params.Name)
	if err != nil {
		if errors.Is(err, registry.ErrEntityNotFound) {
			return NewCmdError(ErrNotFound, "entity not found")
		}
		return err
	}
	conn.SendResult(msg.ID, renamed)
	return nil
}

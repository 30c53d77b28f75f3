package api

import (
	"encoding/json"
	"fmt"
)

// Message is one decoded client command. Raw keeps the full payload so
// handlers can decode their own parameters.
type Message struct {
	ID   uint64 `json:"id"`
	Type string `json:"type"`

	raw json.RawMessage
}

// Decode unmarshals the full command payload into v.
func (m *Message) Decode(v any) error {
	if err := json.Unmarshal(m.raw, v); err != nil {
		return fmt.Errorf("malformed command payload: %w", err)
	}
	return nil
}

func parseMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m.raw = data
	return &m, nil
}

// Server to client frames. Every reply to a command carries the
// command's id; subscription events reuse the subscribing command's id.
type resultMessage struct {
	ID      uint64     `json:"id"`
	Type    string     `json:"type"`
	Success bool       `json:"success"`
	Result  any        `json:"result,omitempty"`
	Error   *wireError `json:"error,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type eventMessage struct {
	ID    uint64 `json:"id"`
	Type  string `json:"type"`
	Event any    `json:"event"`
}

type pongMessage struct {
	ID   uint64 `json:"id"`
	Type string `json:"type"`
}

// Authentication phase frames.
type authRequiredMessage struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

type authOKMessage struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

type authInvalidMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

package client

import (
	"errors"
	"fmt"
)

// ErrAuthInvalid is returned by Dial when the hub rejects the access
// token.
var ErrAuthInvalid = errors.New("hub rejected the access token")

// ErrConnectionClosed is returned for commands issued after the
// connection dropped or Close was called.
var ErrConnectionClosed = errors.New("websocket connection closed")

// CommandError is a command failure reported by the hub. Code is one
// of the hub's stable error codes ("not_found", "invalid_format", ...).
type CommandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

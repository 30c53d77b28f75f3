package api

import "fmt"

// Error codes sent to clients in result messages.
const (
	ErrInvalidFormat  = "invalid_format"
	ErrUnknownCommand = "unknown_command"
	ErrNotFound       = "not_found"
	ErrIDReuse        = "id_reuse"
	ErrUnauthorized   = "unauthorized"
	ErrHubError       = "hub_error"
	ErrUnknownError   = "unknown_error"
)

// CmdError is a command failure with a wire error code. Handlers
// return it to have the dispatcher send the error result; any other
// error becomes unknown_error.
type CmdError struct {
	Code    string
	Message string
}

func (e *CmdError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewCmdError builds a CmdError.
func NewCmdError(code, message string) *CmdError {
	return &CmdError{Code: code, Message: message}
}

package flow

// Result types. A form asks the client for input, create_entry and
// abort are terminal.
const (
	TypeForm        = "form"
	TypeCreateEntry = "create_entry"
	TypeAbort       = "abort"
)

// Flow kinds, matching the flow_type strings clients send.
const (
	KindConfig  = "config_flow"
	KindOptions = "options_flow"
)

// Result is one flow response, serialized to clients as-is.
type Result struct {
	Type    string `json:"type"`
	FlowID  string `json:"flow_id,omitempty"`
	Handler string `json:"handler,omitempty"`

	// Form fields.
	StepID   string            `json:"step_id,omitempty"`
	Schema   []map[string]any  `json:"schema,omitempty"`
	Defaults map[string]any    `json:"defaults,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
	Preview  string            `json:"preview,omitempty"`

	// Create entry fields.
	Title   string         `json:"title,omitempty"`
	EntryID string         `json:"entry_id,omitempty"`
	Options map[string]any `json:"options,omitempty"`

	// Abort fields.
	Reason string `json:"reason,omitempty"`
}

// Error is a user-facing validation failure. The code is a stable
// token the client maps to a translated message and shows on the form
// (for example "timezone_not_exist").
type Error struct {
	Code string
}

// NewError creates a flow validation error with the given code.
func NewError(code string) *Error {
	return &Error{Code: code}
}

func (e *Error) Error() string {
	return e.Code
}

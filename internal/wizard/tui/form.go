package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hearthd/hearth/internal/client"
)

// Messages for the form screen
type previewEventMsg struct {
	gen    int
	update client.PreviewUpdate
}

type previewStartedMsg struct {
	gen int
	sub *client.Subscription
	err error
}

// submitRequestMsg asks the app to submit the current selection. The
// active preview subscription rides along so it can be retired first.
type submitRequestMsg struct {
	flowID string
	input  map[string]any
	sub    *client.Subscription
}

// Key bindings on the form
type formKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
	Submit key.Binding
	Quit   key.Binding
}

func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Submit, k.Quit}
}

func (k formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle},
		{k.Submit, k.Quit},
	}
}

// optionChoice is one selectable display option from the form schema.
type optionChoice struct {
	Value string
	Label string
}

// multiSelectField finds the first multi-select field in a form schema
// and returns its name and options.
func multiSelectField(fields []map[string]any) (string, []optionChoice, bool) {
	for _, f := range fields {
		name, _ := f["name"].(string)
		sel, _ := f["selector"].(map[string]any)
		sub, _ := sel["select"].(map[string]any)
		if sub == nil {
			continue
		}
		if multiple, _ := sub["multiple"].(bool); !multiple {
			continue
		}

		raw, _ := sub["options"].([]any)
		choices := make([]optionChoice, 0, len(raw))
		for _, o := range raw {
			opt, _ := o.(map[string]any)
			if opt == nil {
				continue
			}
			value, _ := opt["value"].(string)
			label, _ := opt["label"].(string)
			if label == "" {
				label = value
			}
			choices = append(choices, optionChoice{Value: value, Label: label})
		}
		return name, choices, true
	}
	return "", nil, false
}

// defaultSelection extracts the prefilled values for a field from the
// form defaults. Options flows arrive with the entry's current
// selection here.
func defaultSelection(defaults map[string]any, field string) []string {
	switch v := defaults[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

// ErrorText maps machine error codes from the hub to operator facing
// messages. Unknown codes pass through unchanged. The non-interactive
// commands share this map so both surfaces word failures the same way.
func ErrorText(code string) string {
	switch code {
	case "timezone_not_exist":
		return "Timezone is not set in the hub configuration."
	case "already_configured":
		return "Service is already configured."
	case "invalid_option":
		return "One of the selected options is not available."
	case "required":
		return "Select at least one display option."
	case "invalid_format", "unknown_field":
		return "The hub rejected the form input."
	}
	return code
}

// FormModel is the display option form: a checklist built from the
// flow's schema next to a live preview of the sensors the current
// selection would create. Every toggle restarts the preview stream
// with the new selection.
type FormModel struct {
	Client   *client.Client
	Form     *client.FlowResult
	FlowType string

	Choices    []optionChoice
	ErrMsg     string
	Submitting bool
	Width      int
	Height     int
	Help       help.Model

	PreviewItems []client.PreviewItem

	field      string
	selected   map[string]bool
	cursor     int
	previewCh  chan previewEventMsg
	previewGen int
	sub        *client.Subscription
	keys       formKeyMap
}

// NewFormModel builds the form screen from a form step result.
func NewFormModel(c *client.Client, form *client.FlowResult, flowType string) FormModel {
	field, choices, _ := multiSelectField(form.Schema)

	selected := make(map[string]bool)
	for _, v := range defaultSelection(form.Defaults, field) {
		selected[v] = true
	}

	return FormModel{
		Client:     c,
		Form:       form,
		FlowType:   flowType,
		Choices:    choices,
		Help:       help.New(),
		field:      field,
		selected:   selected,
		previewCh:  make(chan previewEventMsg, 8),
		previewGen: 1,
		keys: formKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
			Toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
			Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
			Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		},
	}
}

// Init arms the preview listener and subscribes for the prefilled
// selection, if any.
func (m FormModel) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForPreview(m.previewCh)}
	if sel := m.selection(); len(sel) > 0 {
		cmds = append(cmds, startPreviewCmd(m.Client, m.Form, m.FlowType, m.field, sel, m.previewGen, m.previewCh, nil))
	}
	return tea.Batch(cmds...)
}

// selection returns the checked options in schema order.
func (m FormModel) selection() []string {
	out := make([]string, 0, len(m.Choices))
	for _, c := range m.Choices {
		if m.selected[c.Value] {
			out = append(out, c.Value)
		}
	}
	return out
}

// waitForPreview delivers the next preview event to the program. It
// re-arms itself from Update after every message.
func waitForPreview(ch <-chan previewEventMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// startPreviewCmd retires the previous preview subscription and opens
// a new one for the given selection. Events land on ch tagged with gen
// so stale streams can be ignored after rapid toggles.
func startPreviewCmd(c *client.Client, form *client.FlowResult, flowType, field string, selection []string, gen int, ch chan<- previewEventMsg, old *client.Subscription) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
		defer cancel()

		if old != nil {
			old.Unsubscribe(ctx)
		}
		if len(selection) == 0 {
			return previewStartedMsg{gen: gen}
		}

		input := map[string]any{field: selection}
		sub, err := c.StartPreview(ctx, form, flowType, input, func(update client.PreviewUpdate) {
			// Runs on the client read loop. Drop rather than block when
			// the program is not draining fast enough.
			select {
			case ch <- previewEventMsg{gen: gen, update: update}:
			default:
			}
		})
		return previewStartedMsg{gen: gen, sub: sub, err: err}
	}
}

// unsubscribeCmd retires a subscription in the background.
func unsubscribeCmd(sub *client.Subscription) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
		defer cancel()
		sub.Unsubscribe(ctx)
		return nil
	}
}

// restartPreview invalidates the running preview stream and starts one
// for the current selection.
func (m FormModel) restartPreview() (FormModel, tea.Cmd) {
	m.previewGen++
	old := m.sub
	m.sub = nil
	m.PreviewItems = nil
	return m, startPreviewCmd(m.Client, m.Form, m.FlowType, m.field, m.selection(), m.previewGen, m.previewCh, old)
}

// ApplyServerErrors re-arms the form after the hub rejected a
// submission, surfacing the step's error message.
func (m FormModel) ApplyServerErrors(res *client.FlowResult) (FormModel, tea.Cmd) {
	m.Submitting = false
	if code, ok := res.Errors["base"]; ok {
		m.ErrMsg = ErrorText(code)
	} else {
		m.ErrMsg = "The hub rejected the submission."
	}
	return m.restartPreview()
}

func (m FormModel) Update(msg tea.Msg) (FormModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case previewEventMsg:
		if msg.gen == m.previewGen {
			m.PreviewItems = msg.update.Items
		}
		return m, waitForPreview(m.previewCh)

	case previewStartedMsg:
		if msg.gen != m.previewGen {
			// A newer toggle superseded this stream before it opened.
			if msg.sub != nil {
				return m, unsubscribeCmd(msg.sub)
			}
			return m, nil
		}
		if msg.err != nil {
			m.ErrMsg = previewErrorText(msg.err)
			return m, nil
		}
		m.sub = msg.sub
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m FormModel) updateKeys(msg tea.KeyMsg) (FormModel, tea.Cmd) {
	if m.Submitting {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.Choices)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		if len(m.Choices) == 0 {
			return m, nil
		}
		choice := m.Choices[m.cursor]
		m.selected[choice.Value] = !m.selected[choice.Value]
		m.ErrMsg = ""
		return m.restartPreview()

	case key.Matches(msg, m.keys.Submit):
		sel := m.selection()
		if len(sel) == 0 {
			m.ErrMsg = "Select at least one display option."
			return m, nil
		}
		m.Submitting = true
		m.ErrMsg = ""
		sub := m.sub
		m.sub = nil
		req := submitRequestMsg{flowID: m.Form.FlowID, input: map[string]any{m.field: sel}, sub: sub}
		return m, func() tea.Msg { return req }
	}

	return m, nil
}

// previewErrorText renders a preview failure for the error box.
func previewErrorText(err error) string {
	var cmdErr *client.CommandError
	if errors.As(err, &cmdErr) {
		return ErrorText(cmdErr.Code)
	}
	return fmt.Sprintf("Preview unavailable: %v", err)
}

func (m FormModel) View() string {
	title := "Configure Time & Date"
	if m.FlowType == client.FlowTypeOptions {
		title = "Adjust Time & Date options"
	}

	left := lipgloss.JoinVertical(
		lipgloss.Left,
		RenderTitle(title),
		RenderSubtitle("Select the sensors to create:"),
		"",
		m.renderChecklist(),
	)

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, m.renderPreview())

	parts := []string{body}
	if m.ErrMsg != "" {
		parts = append(parts, "", WarningBoxStyle.Render(m.ErrMsg))
	}
	if m.Submitting {
		parts = append(parts, "", RenderSubtitle("Saving..."))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// HelpView returns the footer help line.
func (m FormModel) HelpView() string {
	return m.Help.View(m.keys)
}

func (m FormModel) renderChecklist() string {
	if len(m.Choices) == 0 {
		return RenderSubtitle("The hub offered no options for this step.")
	}

	rows := make([]string, 0, len(m.Choices))
	for i, choice := range m.Choices {
		box := "[ ]"
		if m.selected[choice.Value] {
			box = "[x]"
		}
		line := fmt.Sprintf("%s %s", box, choice.Label)
		if i == m.cursor {
			rows = append(rows, SelectedMenuItemStyle.Render("› "+line))
		} else {
			rows = append(rows, MenuItemStyle.Render(line))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m FormModel) renderPreview() string {
	header := lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true).Render("Live preview")
	rows := []string{header, ""}

	switch {
	case len(m.selection()) == 0:
		rows = append(rows, RenderSubtitle("Select an option to preview it."))
	case len(m.PreviewItems) == 0:
		rows = append(rows, RenderSubtitle("Waiting for the hub..."))
	default:
		for _, item := range m.PreviewItems {
			name := item.FriendlyName()
			state := lipgloss.NewStyle().Bold(true).Render(item.State)
			rows = append(rows, fmt.Sprintf("%-16s %s", name, state))
		}
	}

	return PreviewBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hearthd/hearth/internal/client"
)

// Mode selects which kind of flow the wizard drives.
type Mode int

const (
	// ModeSetup runs a config flow and creates a new entry.
	ModeSetup Mode = iota
	// ModeOptions adjusts an existing entry through its options flow.
	ModeOptions
)

// Config carries connection and flow parameters into the wizard.
type Config struct {
	// Addr is the hub address. Empty enables mDNS discovery.
	Addr string
	// Token is the API access token. May be empty for open hubs.
	Token string
	// Handler is the integration domain to set up.
	Handler string
	// EntryID names the entry to adjust in ModeOptions.
	EntryID string
	// Mode selects setup or options.
	Mode Mode
}

// Screen represents the different screens in the wizard
type Screen int

const (
	ScreenConnect Screen = iota
	ScreenConnecting
	ScreenForm
	ScreenSuccess
	ScreenFailure
)

// Messages for app-level transitions
type connectedMsg struct {
	client *client.Client
	form   *client.FlowResult
}

type connectFailedMsg struct {
	addr string
	err  error
}

type submitResultMsg struct {
	res *client.FlowResult
	err error
}

// Key bindings on the success screen
type successKeyMap struct {
	Options key.Binding
	Quit    key.Binding
}

func (k successKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Options, k.Quit}
}

func (k successKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Options, k.Quit}}
}

// Key bindings on the failure screen
type failureKeyMap struct {
	Retry key.Binding
	Quit  key.Binding
}

func (k failureKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Retry, k.Quit}
}

func (k failureKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Retry, k.Quit}}
}

// Key bindings while connecting
type connectingKeyMap struct {
	Quit key.Binding
}

func (k connectingKeyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Quit} }
func (k connectingKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{{k.Quit}} }

// AppModel is the top level model coordinating the wizard screens.
type AppModel struct {
	CurrentScreen Screen
	Connect       ConnectModel
	Form          FormModel
	Client        *client.Client
	Result        *client.FlowResult

	FailureText string
	Err         error

	Width   int
	Height  int
	Help    help.Model
	Spinner spinner.Model

	cfg            Config
	connectingAddr string
	successKeys    successKeyMap
	failureKeys    failureKeyMap
	connectingKeys connectingKeyMap
}

// NewAppModel creates the wizard model. With an address preset the
// wizard skips discovery and dials immediately.
func NewAppModel(cfg Config) AppModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	m := AppModel{
		CurrentScreen: ScreenConnect,
		Connect:       NewConnectModel(),
		Help:          help.New(),
		Spinner:       sp,
		cfg:           cfg,
		successKeys: successKeyMap{
			Options: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "adjust options")),
			Quit:    key.NewBinding(key.WithKeys("q", "enter"), key.WithHelp("q", "quit")),
		},
		failureKeys: failureKeyMap{
			Retry: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
			Quit:  key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		},
		connectingKeys: connectingKeyMap{
			Quit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		},
	}

	if cfg.Addr != "" {
		m.CurrentScreen = ScreenConnecting
		m.connectingAddr = cfg.Addr
	}
	return m
}

func (m AppModel) Init() tea.Cmd {
	if m.CurrentScreen == ScreenConnecting {
		return tea.Batch(m.Spinner.Tick, connectCmd(m.cfg, m.connectingAddr))
	}
	return m.Connect.Init()
}

// startFlow begins the configured flow on an open connection.
func startFlow(ctx context.Context, c *client.Client, cfg Config) (*client.FlowResult, error) {
	if cfg.Mode == ModeOptions {
		return c.StartOptionsFlow(ctx, cfg.EntryID)
	}
	return c.StartConfigFlow(ctx, cfg.Handler)
}

// connectCmd dials the hub and starts the flow.
func connectCmd(cfg Config, addr string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
		defer cancel()

		c, err := client.Dial(ctx, addr, cfg.Token)
		if err != nil {
			return connectFailedMsg{addr: addr, err: err}
		}
		form, err := startFlow(ctx, c, cfg)
		if err != nil {
			c.Close()
			return connectFailedMsg{addr: addr, err: err}
		}
		return connectedMsg{client: c, form: form}
	}
}

// restartFlowCmd starts a fresh flow on the existing connection.
func restartFlowCmd(c *client.Client, cfg Config, addr string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
		defer cancel()

		form, err := startFlow(ctx, c, cfg)
		if err != nil {
			return connectFailedMsg{addr: addr, err: err}
		}
		return connectedMsg{client: c, form: form}
	}
}

// submitCmd retires the preview stream and submits the selection.
func submitCmd(c *client.Client, req submitRequestMsg) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
		defer cancel()

		if req.sub != nil {
			req.sub.Unsubscribe(ctx)
		}
		res, err := c.SubmitFlow(ctx, req.flowID, req.input)
		return submitResultMsg{res: res, err: err}
	}
}

// abortFlowCmd retires the preview stream, aborts the flow on the hub
// and quits the program.
func abortFlowCmd(c *client.Client, flowID string, sub *client.Subscription) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
		defer cancel()

		if sub != nil {
			sub.Unsubscribe(ctx)
		}
		c.AbortFlow(ctx, flowID)
		return tea.QuitMsg{}
	}
}

// connectFailureText renders a dial or flow start failure.
func connectFailureText(addr string, err error) string {
	if errors.Is(err, client.ErrAuthInvalid) {
		return fmt.Sprintf("The hub at %s rejected the access token.", addr)
	}
	var cmdErr *client.CommandError
	if errors.As(err, &cmdErr) {
		return ErrorText(cmdErr.Code)
	}
	return fmt.Sprintf("Could not connect to %s: %v", addr, err)
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		var cmd1, cmd2 tea.Cmd
		m.Connect, cmd1 = m.Connect.Update(msg)
		m.Form, cmd2 = m.Form.Update(msg)
		return m, tea.Batch(cmd1, cmd2)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quitCmd()
		}
		return m.updateKeys(msg)

	case connectedMsg:
		m.Client = msg.client
		return m.applyFlowResult(msg.form)

	case connectFailedMsg:
		return m.fail(connectFailureText(msg.addr, msg.err), msg.err), nil

	case submitRequestMsg:
		return m, submitCmd(m.Client, msg)

	case submitResultMsg:
		if msg.err != nil {
			var cmdErr *client.CommandError
			if errors.As(msg.err, &cmdErr) {
				return m.fail(ErrorText(cmdErr.Code), msg.err), nil
			}
			return m.fail(fmt.Sprintf("Submission failed: %v", msg.err), msg.err), nil
		}
		return m.applyFlowResult(msg.res)

	case spinner.TickMsg:
		if m.CurrentScreen == ScreenConnecting {
			var cmd tea.Cmd
			m.Spinner, cmd = m.Spinner.Update(msg)
			return m, cmd
		}
		return m.updateCurrentScreen(msg)
	}

	return m.updateCurrentScreen(msg)
}

// applyFlowResult routes a flow step result to the right screen.
func (m AppModel) applyFlowResult(res *client.FlowResult) (tea.Model, tea.Cmd) {
	switch res.Type {
	case client.ResultTypeForm:
		if m.CurrentScreen == ScreenForm && len(res.Errors) > 0 {
			// Same step rejected with errors. Keep the selection.
			var cmd tea.Cmd
			m.Form, cmd = m.Form.ApplyServerErrors(res)
			return m, cmd
		}
		flowType := client.FlowTypeConfig
		if m.cfg.Mode == ModeOptions {
			flowType = client.FlowTypeOptions
		}
		m.Form = NewFormModel(m.Client, res, flowType)
		m.Form.Width = m.Width
		m.Form.Height = m.Height
		m.CurrentScreen = ScreenForm
		return m, m.Form.Init()

	case client.ResultTypeCreateEntry:
		m.Result = res
		m.Err = nil
		m.CurrentScreen = ScreenSuccess
		return m, nil

	case client.ResultTypeAbort:
		failed := m.fail(ErrorText(res.Reason), fmt.Errorf("flow aborted: %s", res.Reason))
		return failed, nil
	}

	return m.fail(fmt.Sprintf("The hub sent an unexpected step type %q.", res.Type),
		fmt.Errorf("unexpected flow result type %q", res.Type)), nil
}

// fail switches to the failure screen. err becomes the wizard's exit
// error unless a later retry succeeds.
func (m AppModel) fail(text string, err error) AppModel {
	m.FailureText = text
	m.Err = err
	m.CurrentScreen = ScreenFailure
	return m
}

// quitCmd exits the wizard. Quitting mid-form first aborts the open
// flow so the hub releases it instead of waiting out the handle TTL.
func (m AppModel) quitCmd() tea.Cmd {
	if m.CurrentScreen == ScreenForm && m.Client != nil && m.Form.Form != nil {
		return abortFlowCmd(m.Client, m.Form.Form.FlowID, m.Form.sub)
	}
	return tea.Quit
}

func (m AppModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.CurrentScreen {
	case ScreenSuccess:
		switch {
		case key.Matches(msg, m.successKeys.Options):
			if m.Result == nil || m.Result.EntryID == "" {
				return m, nil
			}
			m.cfg.Mode = ModeOptions
			m.cfg.EntryID = m.Result.EntryID
			m.CurrentScreen = ScreenConnecting
			return m, tea.Batch(m.Spinner.Tick, restartFlowCmd(m.Client, m.cfg, m.connectingAddr))
		case key.Matches(msg, m.successKeys.Quit):
			return m, tea.Quit
		}
		return m, nil

	case ScreenFailure:
		switch {
		case key.Matches(msg, m.failureKeys.Retry):
			return m.retry()
		case key.Matches(msg, m.failureKeys.Quit):
			return m, tea.Quit
		}
		return m, nil

	case ScreenForm:
		if msg.String() == "q" {
			return m, m.quitCmd()
		}
		return m.updateCurrentScreen(msg)

	case ScreenConnect:
		if msg.String() == "q" && !m.Connect.ManualMode {
			return m, tea.Quit
		}
		return m.updateCurrentScreen(msg)
	}

	return m.updateCurrentScreen(msg)
}

// retry reruns the step that failed, reusing the connection when it is
// still up.
func (m AppModel) retry() (tea.Model, tea.Cmd) {
	m.FailureText = ""
	m.Err = nil

	if m.Client != nil {
		select {
		case <-m.Client.Done():
			m.Client = nil
		default:
			m.CurrentScreen = ScreenConnecting
			return m, tea.Batch(m.Spinner.Tick, restartFlowCmd(m.Client, m.cfg, m.connectingAddr))
		}
	}

	if m.cfg.Addr != "" {
		m.CurrentScreen = ScreenConnecting
		m.connectingAddr = m.cfg.Addr
		return m, tea.Batch(m.Spinner.Tick, connectCmd(m.cfg, m.cfg.Addr))
	}

	m.Connect = NewConnectModel()
	m.Connect.Width = m.Width
	m.Connect.Height = m.Height
	m.CurrentScreen = ScreenConnect
	return m, m.Connect.Init()
}

func (m AppModel) updateCurrentScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.CurrentScreen {
	case ScreenConnect:
		var cmd tea.Cmd
		m.Connect, cmd = m.Connect.Update(msg)
		if addr := m.Connect.ChosenAddr(); addr != "" {
			m.CurrentScreen = ScreenConnecting
			m.connectingAddr = addr
			return m, tea.Batch(m.Spinner.Tick, connectCmd(m.cfg, addr))
		}
		return m, cmd

	case ScreenForm:
		var cmd tea.Cmd
		m.Form, cmd = m.Form.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m AppModel) View() string {
	if m.Width == 0 {
		return "Initializing..."
	}

	var content, helpText string
	switch m.CurrentScreen {
	case ScreenConnect:
		content = m.Connect.View()
		helpText = m.Connect.HelpView()
	case ScreenConnecting:
		content = m.renderConnecting()
		helpText = m.Help.View(m.connectingKeys)
	case ScreenForm:
		content = m.Form.View()
		helpText = m.Form.HelpView()
	case ScreenSuccess:
		content = m.renderSuccess()
		helpText = m.Help.View(m.successKeys)
	case ScreenFailure:
		content = m.renderFailure()
		helpText = m.Help.View(m.failureKeys)
	}

	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

func (m AppModel) renderConnecting() string {
	body := lipgloss.JoinVertical(
		lipgloss.Left,
		RenderTitle("Connecting"),
		fmt.Sprintf("%s Reaching the hub at %s...", m.Spinner.View(), m.connectingAddr),
	)
	return lipgloss.NewStyle().Padding(1, 2).Render(body)
}

func (m AppModel) renderSuccess() string {
	verb := "created"
	if m.cfg.Mode == ModeOptions {
		verb = "updated"
	}

	lines := []string{fmt.Sprintf("✓ Entry %s: %s", verb, m.Result.Title)}
	if sel := defaultSelection(m.Result.Options, m.Form.field); len(sel) > 0 {
		lines = append(lines, "Display options: "+strings.Join(sel, ", "))
	}
	lines = append(lines, "Entry id: "+m.Result.EntryID)

	box := SuccessStyle.Render(strings.Join(lines, "\n"))
	hint := RenderSubtitle("The sensors are live on the hub. Press o to adjust the options, q to quit.")

	body := lipgloss.JoinVertical(lipgloss.Left, RenderTitle("Done"), box, "", hint)
	return lipgloss.NewStyle().Padding(1, 2).Render(body)
}

func (m AppModel) renderFailure() string {
	box := ErrorBoxStyle.Render("✗ " + m.FailureText)
	hint := RenderSubtitle("Press r to retry or q to quit.")

	body := lipgloss.JoinVertical(lipgloss.Left, RenderTitle("Setup failed"), box, "", hint)
	return lipgloss.NewStyle().Padding(1, 2).Render(body)
}

// Run starts the interactive wizard and blocks until it exits. The
// returned error reflects the final screen: quitting from the failure
// screen surfaces that failure to the caller.
func Run(cfg Config) error {
	p := tea.NewProgram(NewAppModel(cfg), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}

	if app, ok := final.(AppModel); ok {
		if app.Client != nil {
			app.Client.Close()
		}
		return app.Err
	}
	return nil
}

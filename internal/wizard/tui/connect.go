package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/discovery"
)

// Messages for hub discovery
type scanStartMsg struct{}

type scanCompleteMsg struct {
	hubs []*discovery.Hub
	err  error
}

// Key bindings while scanning
type scanningKeyMap struct {
	Manual key.Binding
	Quit   key.Binding
}

func (k scanningKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Manual, k.Quit}
}

func (k scanningKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Manual, k.Quit}}
}

// Key bindings on the results list
type resultsKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

func (k resultsKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Rescan, k.Manual, k.Quit}
}

func (k resultsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// Key bindings in manual entry mode
type manualKeyMap struct {
	Connect key.Binding
	Back    key.Binding
	Quit    key.Binding
}

func (k manualKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Back, k.Quit}
}

func (k manualKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Connect, k.Back, k.Quit}}
}

// hubItem wraps a discovered hub for the results list.
type hubItem struct {
	hub *discovery.Hub
}

func (i hubItem) FilterValue() string { return i.hub.Name }

// Card styles for hub entries in the results list
var (
	hubCardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SubtleColor).
			Padding(0, 2).
			MarginLeft(2)

	selectedHubCardStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(HighlightColor).
				Padding(0, 2).
				MarginLeft(2)
)

// hubDelegate renders each discovered hub as a two line card.
type hubDelegate struct{}

func (d hubDelegate) Height() int                             { return 4 }
func (d hubDelegate) Spacing() int                            { return 1 }
func (d hubDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d hubDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(hubItem)
	if !ok {
		return
	}

	name := lipgloss.NewStyle().Bold(true).Render(item.hub.Name)
	detail := item.hub.Addr()
	if item.hub.Version != "" {
		detail += "  ·  v" + item.hub.Version
	}
	card := lipgloss.JoinVertical(lipgloss.Left, name, detail)

	if index == m.Index() {
		fmt.Fprint(w, selectedHubCardStyle.Render(card))
	} else {
		fmt.Fprint(w, hubCardStyle.Render(card))
	}
}

// ConnectModel is the hub selection screen. It scans the local network
// for hubs over mDNS and also accepts a manual host:port address.
type ConnectModel struct {
	Scanning      bool
	HubList       list.Model
	Selected      *discovery.Hub
	ManualAddr    string
	Err           error
	ManualMode    bool
	AddrInput     textinput.Model
	Spinner       spinner.Model
	ProgressBar   progress.Model
	ScanStartTime time.Time
	Width         int
	Height        int
	Help          help.Model

	manualErr  string
	scanKeys   scanningKeyMap
	resultKeys resultsKeyMap
	manualKeys manualKeyMap
}

// NewConnectModel creates the hub selection screen.
func NewConnectModel() ConnectModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	ti := textinput.New()
	ti.Placeholder = fmt.Sprintf("192.168.1.50:%d", config.DefaultPort)
	ti.CharLimit = 64
	ti.Width = 40

	hubList := list.New([]list.Item{}, hubDelegate{}, 0, 0)
	hubList.SetShowTitle(false)
	hubList.SetShowStatusBar(false)
	hubList.SetFilteringEnabled(false)
	hubList.SetShowHelp(false)

	return ConnectModel{
		HubList:     hubList,
		AddrInput:   ti,
		Spinner:     sp,
		ProgressBar: progress.New(progress.WithDefaultGradient()),
		Help:        help.New(),
		scanKeys: scanningKeyMap{
			Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manual address")),
			Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		},
		resultKeys: resultsKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
			Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
			Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
			Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manual address")),
			Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		},
		manualKeys: manualKeyMap{
			Connect: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
			Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
			Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		},
	}
}

// Init starts the first network scan.
func (m ConnectModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		scanHubs,
		m.Spinner.Tick,
	)
}

// scanHubs browses the local network for hub announcements.
func scanHubs() tea.Msg {
	hubs, err := discovery.Scan(context.Background(), discovery.DefaultScanTimeout)
	return scanCompleteMsg{hubs: hubs, err: err}
}

// ChosenAddr returns the address the operator picked, either from the
// results list or from manual entry. Empty until a choice is made.
func (m ConnectModel) ChosenAddr() string {
	if m.ManualAddr != "" {
		return m.ManualAddr
	}
	if m.Selected != nil {
		return m.Selected.Addr()
	}
	return ""
}

func (m ConnectModel) Update(msg tea.Msg) (ConnectModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.HubList.SetSize(msg.Width-8, msg.Height-14)
		return m, nil

	case scanStartMsg:
		m.Scanning = true
		m.Err = nil
		m.Selected = nil
		m.ScanStartTime = time.Now()
		return m, nil

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		items := make([]list.Item, 0, len(msg.hubs))
		for _, hub := range msg.hubs {
			items = append(items, hubItem{hub: hub})
		}
		m.HubList.SetItems(items)
		return m, nil

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		return m.updateNormalMode(msg)
	}

	return m, nil
}

func (m ConnectModel) updateNormalMode(msg tea.KeyMsg) (ConnectModel, tea.Cmd) {
	if m.Scanning {
		if key.Matches(msg, m.scanKeys.Manual) {
			return m.enterManualMode()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.resultKeys.Manual):
		return m.enterManualMode()

	case key.Matches(msg, m.resultKeys.Rescan):
		return m, tea.Batch(
			func() tea.Msg { return scanStartMsg{} },
			scanHubs,
			m.Spinner.Tick,
		)

	case key.Matches(msg, m.resultKeys.Select):
		if item, ok := m.HubList.SelectedItem().(hubItem); ok {
			m.Selected = item.hub
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.HubList, cmd = m.HubList.Update(msg)
	return m, cmd
}

func (m ConnectModel) updateManualMode(msg tea.KeyMsg) (ConnectModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.manualKeys.Back):
		m.ManualMode = false
		m.manualErr = ""
		m.AddrInput.Blur()
		return m, nil

	case key.Matches(msg, m.manualKeys.Connect):
		addr := strings.TrimSpace(m.AddrInput.Value())
		if addr == "" {
			m.manualErr = "Enter a host or host:port address."
			return m, nil
		}
		if !strings.Contains(addr, ":") {
			addr = fmt.Sprintf("%s:%d", addr, config.DefaultPort)
		}
		m.ManualAddr = addr
		return m, nil
	}

	var cmd tea.Cmd
	m.AddrInput, cmd = m.AddrInput.Update(msg)
	return m, cmd
}

func (m ConnectModel) enterManualMode() (ConnectModel, tea.Cmd) {
	m.ManualMode = true
	m.manualErr = ""
	m.AddrInput.SetValue("")
	return m, m.AddrInput.Focus()
}

func (m ConnectModel) View() string {
	if m.ManualMode {
		return m.renderManualEntry()
	}
	if m.Scanning {
		return m.renderScanning()
	}
	return m.renderResults()
}

// HelpView returns the footer help line for the current state.
func (m ConnectModel) HelpView() string {
	switch {
	case m.ManualMode:
		return m.Help.View(m.manualKeys)
	case m.Scanning:
		return m.Help.View(m.scanKeys)
	default:
		return m.Help.View(m.resultKeys)
	}
}

func (m ConnectModel) renderScanning() string {
	elapsed := time.Since(m.ScanStartTime)
	pct := elapsed.Seconds() / discovery.DefaultScanTimeout.Seconds()
	if pct > 1.0 {
		pct = 1.0
	}

	title := RenderTitle("Looking for Hearth hubs")
	status := fmt.Sprintf("%s Scanning the local network over mDNS... %.0fs",
		m.Spinner.View(), elapsed.Seconds())
	bar := m.ProgressBar.ViewAs(pct)

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		status,
		"",
		bar,
	)
	return lipgloss.NewStyle().Padding(1, 2).Render(content)
}

func (m ConnectModel) renderResults() string {
	title := RenderTitle("Select a hub")

	if m.Err != nil {
		body := lipgloss.JoinVertical(
			lipgloss.Left,
			title,
			RenderError(fmt.Sprintf("Scan failed: %v", m.Err)),
			"",
			"Troubleshooting:",
			"  • Check that the hub is powered on and on the same network",
			"  • Some networks block mDNS, press m to enter the address manually",
			"  • Press r to scan again",
		)
		return lipgloss.NewStyle().Padding(1, 2).Render(body)
	}

	if len(m.HubList.Items()) == 0 {
		body := lipgloss.JoinVertical(
			lipgloss.Left,
			title,
			RenderSubtitle("No hubs found on the local network."),
			"",
			"  • Press r to scan again",
			"  • Press m to enter the hub address manually",
		)
		return lipgloss.NewStyle().Padding(1, 2).Render(body)
	}

	body := lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		RenderSubtitle(fmt.Sprintf("%d hub(s) found:", len(m.HubList.Items()))),
		"",
		m.HubList.View(),
	)
	return lipgloss.NewStyle().Padding(1, 2).Render(body)
}

func (m ConnectModel) renderManualEntry() string {
	title := RenderTitle("Connect to a hub")
	prompt := "Hub address (host or host:port):"

	parts := []string{title, prompt, "", m.AddrInput.View()}
	if m.manualErr != "" {
		parts = append(parts, "", ErrorStyle.Render(m.manualErr))
	}

	body := lipgloss.JoinVertical(lipgloss.Left, parts...)
	return lipgloss.NewStyle().Padding(1, 2).Render(body)
}

package flow

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthd/hearth/internal/core"
	"github.com/hearthd/hearth/internal/logging"
	"github.com/hearthd/hearth/internal/metrics"
	"github.com/hearthd/hearth/internal/store"
)

// Manager errors.
var (
	ErrUnknownHandler = errors.New("no config flow handler for domain")
	ErrFlowNotFound   = errors.New("flow not found")
)

// flowTTL is how long an untouched flow survives before lazy pruning
// discards it. Matches the attention span of someone who opened a
// wizard and walked away.
const flowTTL = 15 * time.Minute

// Info describes an in-progress flow for callers outside the manager,
// such as the preview command that must bind an options flow to its
// config entry.
type Info struct {
	FlowID  string
	Handler string
	Kind    string
	EntryID string // set for options flows
}

// activeFlow guards its instance with its own mutex so two connections
// driving the same flow id cannot race the step state.
type activeFlow struct {
	mu       sync.Mutex
	info     Info
	instance Instance
	touched  time.Time
}

// Manager owns all in-progress configuration flows.
type Manager struct {
	hub *core.Hub

	mu       sync.Mutex
	handlers map[string]Handler
	flows    map[string]*activeFlow
}

// NewManager creates a flow manager bound to the hub.
func NewManager(hub *core.Hub) *Manager {
	return &Manager{
		hub:      hub,
		handlers: make(map[string]Handler),
		flows:    make(map[string]*activeFlow),
	}
}

// Register makes a handler available for flows.
func (m *Manager) Register(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[h.Domain()] = h
}

// Handlers returns the registered domains, sorted.
func (m *Manager) Handlers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.handlers))
	for domain := range m.handlers {
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}

// StartConfig begins a config flow for a domain and returns its first
// form.
func (m *Manager) StartConfig(domain string) (Result, error) {
	m.mu.Lock()
	handler, ok := m.handlers[domain]
	m.mu.Unlock()
	if !ok {
		return Result{}, ErrUnknownHandler
	}

	instance, err := handler.NewConfigFlow(m.hub)
	if err != nil {
		return Result{}, err
	}
	return m.begin(Info{Handler: domain, Kind: KindConfig}, instance)
}

// StartOptions begins an options flow for an existing config entry and
// returns its first form.
func (m *Manager) StartOptions(entryID string) (Result, error) {
	entry, ok := m.hub.Entries.Get(entryID)
	if !ok {
		return Result{}, store.ErrEntryNotFound
	}

	m.mu.Lock()
	handler, ok := m.handlers[entry.Domain]
	m.mu.Unlock()
	if !ok {
		return Result{}, ErrUnknownHandler
	}

	instance, err := handler.NewOptionsFlow(m.hub, entry)
	if err != nil {
		return Result{}, err
	}
	return m.begin(Info{Handler: entry.Domain, Kind: KindOptions, EntryID: entryID}, instance)
}

func (m *Manager) begin(info Info, instance Instance) (Result, error) {
	result, err := instance.Begin()
	if err != nil {
		return Result{}, err
	}

	info.FlowID = uuid.NewString()
	m.mu.Lock()
	m.prune()
	m.flows[info.FlowID] = &activeFlow{
		info:     info,
		instance: instance,
		touched:  time.Now(),
	}
	m.mu.Unlock()

	metrics.RecordFlowStarted()
	logging.LogFlowEvent(info.FlowID, info.Handler, "started")

	return m.decorate(info, result), nil
}

// Submit feeds user input to a flow. Terminal results remove the flow.
func (m *Manager) Submit(flowID string, input map[string]any) (Result, error) {
	m.mu.Lock()
	m.prune()
	f, ok := m.flows[flowID]
	if ok {
		f.touched = time.Now()
	}
	m.mu.Unlock()
	if !ok {
		return Result{}, ErrFlowNotFound
	}

	f.mu.Lock()
	result, err := f.instance.Submit(input)
	f.mu.Unlock()
	if err != nil {
		return Result{}, err
	}

	if result.Type != TypeForm {
		m.remove(flowID)
		metrics.RecordFlowFinished(f.info.Handler, result.Type)
		logging.LogFlowEvent(flowID, f.info.Handler, result.Type)
	}
	return m.decorate(f.info, result), nil
}

// Progress re-renders the current form of a flow without submitting.
func (m *Manager) Progress(flowID string) (Result, error) {
	m.mu.Lock()
	f, ok := m.flows[flowID]
	m.mu.Unlock()
	if !ok {
		return Result{}, ErrFlowNotFound
	}

	f.mu.Lock()
	result, err := f.instance.Current()
	f.mu.Unlock()
	if err != nil {
		return Result{}, err
	}
	return m.decorate(f.info, result), nil
}

// Abort discards an in-progress flow.
func (m *Manager) Abort(flowID string) error {
	m.mu.Lock()
	f, ok := m.flows[flowID]
	if ok {
		delete(m.flows, flowID)
	}
	m.mu.Unlock()
	if !ok {
		return ErrFlowNotFound
	}

	metrics.RecordFlowFinished(f.info.Handler, "aborted")
	logging.LogFlowEvent(flowID, f.info.Handler, "aborted")
	return nil
}

// Get returns the metadata of an in-progress flow.
func (m *Manager) Get(flowID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flows[flowID]
	if !ok {
		return Info{}, false
	}
	return f.info, true
}

func (m *Manager) remove(flowID string) {
	m.mu.Lock()
	delete(m.flows, flowID)
	m.mu.Unlock()
}

// prune drops expired flows. Callers must hold m.mu.
func (m *Manager) prune() {
	cutoff := time.Now().Add(-flowTTL)
	for id, f := range m.flows {
		if f.touched.Before(cutoff) {
			delete(m.flows, id)
			metrics.RecordFlowFinished(f.info.Handler, "expired")
			logging.LogFlowEvent(id, f.info.Handler, "expired")
		}
	}
}

func (m *Manager) decorate(info Info, result Result) Result {
	result.Handler = info.Handler
	if result.Type == TypeForm {
		result.FlowID = info.FlowID
	}
	return result
}

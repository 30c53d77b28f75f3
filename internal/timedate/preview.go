package timedate

import (
	"sync"
	"time"

	"github.com/hearthd/hearth/internal/metrics"
)

// PreviewItem is one rendered sensor inside a preview event.
type PreviewItem struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// preview accumulates the latest state of every previewed sensor and
// pushes the full item list on each update, so a client can render the
// whole set from any single event.
type preview struct {
	send func(items []PreviewItem)

	mu     sync.Mutex
	order  []string
	states map[string]PreviewItem

	runners  []*runner
	stopOnce sync.Once
}

// StartPreview renders the given display options live. Every sensor
// publishes immediately and then on its own schedule; each publish
// sends the accumulated item list through send. names overrides the
// default display name per option, which options flows use to show the
// names the registry already assigned. The returned stop function
// cancels all updates and is safe to call more than once.
func StartPreview(options []string, loc *time.Location, names map[string]string, send func(items []PreviewItem)) (func(), error) {
	var sensors []*Sensor
	seen := make(map[string]bool)
	for _, option := range options {
		if seen[option] {
			continue
		}
		seen[option] = true
		sensor, err := NewSensor(option, loc)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, sensor)
	}

	p := &preview{send: send, states: make(map[string]PreviewItem)}
	metrics.RecordPreviewStarted()

	for _, sensor := range sensors {
		key := sensor.Option()
		name := sensor.Name()
		if custom, ok := names[key]; ok && custom != "" {
			name = custom
		}
		attrs := sensor.Attributes(name)

		p.mu.Lock()
		p.order = append(p.order, key)
		p.mu.Unlock()

		p.runners = append(p.runners, startRunner(sensor, func(state string) {
			p.update(key, state, attrs)
		}))
	}
	return p.stop, nil
}

func (p *preview) update(key, state string, attrs map[string]any) {
	p.mu.Lock()
	p.states[key] = PreviewItem{State: state, Attributes: attrs}
	items := make([]PreviewItem, 0, len(p.order))
	for _, k := range p.order {
		if item, ok := p.states[k]; ok {
			items = append(items, item)
		}
	}
	p.mu.Unlock()

	p.send(items)
}

func (p *preview) stop() {
	p.stopOnce.Do(func() {
		for _, r := range p.runners {
			r.stop()
		}
		metrics.RecordPreviewStopped()
	})
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "hearth"
)

var (
	// ConnectionsActive tracks currently open websocket API connections.
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "connections_active",
			Help:      "Number of active websocket API connections",
		},
	)

	// CommandsTotal counts processed API commands by type and result.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "commands_total",
			Help:      "Total number of websocket API commands processed",
		},
		[]string{"type", "result"},
	)

	// FlowsActive tracks configuration flows currently in progress.
	FlowsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "flows",
			Name:      "active",
			Help:      "Number of configuration flows in progress",
		},
	)

	// FlowsTotal counts finished configuration flows by handler and outcome.
	FlowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flows",
			Name:      "total",
			Help:      "Total number of configuration flows finished",
		},
		[]string{"handler", "result"},
	)

	// ConfigEntries tracks stored config entries per integration domain.
	ConfigEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "config_entries",
			Help:      "Number of stored config entries",
		},
		[]string{"domain"},
	)

	// PreviewSubscriptionsActive tracks live preview subscriptions.
	PreviewSubscriptionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "preview",
			Name:      "subscriptions_active",
			Help:      "Number of active entity preview subscriptions",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		CommandsTotal,
		FlowsActive,
		FlowsTotal,
		ConfigEntries,
		PreviewSubscriptionsActive,
	)
}

// Command results recorded by RecordCommand.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// RecordCommand counts one processed API command.
func RecordCommand(cmdType, result string) {
	CommandsTotal.WithLabelValues(cmdType, result).Inc()
}

// RecordFlowStarted marks a configuration flow as in progress.
func RecordFlowStarted() {
	FlowsActive.Inc()
}

// RecordFlowFinished marks a flow as done with its outcome
// (create_entry, abort, or the abort reason).
func RecordFlowFinished(handler, result string) {
	FlowsActive.Dec()
	FlowsTotal.WithLabelValues(handler, result).Inc()
}

// SetConfigEntries records the current entry count for a domain.
func SetConfigEntries(domain string, count int) {
	ConfigEntries.WithLabelValues(domain).Set(float64(count))
}

// RecordConnectionOpened and RecordConnectionClosed track the websocket
// connection gauge.
func RecordConnectionOpened() { ConnectionsActive.Inc() }

// RecordConnectionClosed decrements the websocket connection gauge.
func RecordConnectionClosed() { ConnectionsActive.Dec() }

// RecordPreviewStarted and RecordPreviewStopped track the preview
// subscription gauge.
func RecordPreviewStarted() { PreviewSubscriptionsActive.Inc() }

// RecordPreviewStopped decrements the preview subscription gauge.
func RecordPreviewStopped() { PreviewSubscriptionsActive.Dec() }

// Package metrics defines the Prometheus instrumentation for hearthd.
//
// All collectors register with the default registry at init time and
// are exposed by the API server on /metrics. Callers record through
// the helper functions rather than touching collectors directly.
package metrics

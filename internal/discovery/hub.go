package discovery

import (
	"fmt"
	"time"
)

// Hub represents a discovered hub on the network.
type Hub struct {
	// Name is the mDNS service instance name (e.g., "hearth")
	Name string

	// Hostname is the mDNS hostname (e.g., "den.local.")
	Hostname string

	// IP is the address the hub resolved to, preferring IPv4
	IP string

	// Port is the websocket API port
	Port int

	// Version is the hub version from the TXT records, if announced
	Version string

	// Metadata contains the remaining mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the hub was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable description of the hub.
func (h *Hub) String() string {
	if h.Version != "" {
		return fmt.Sprintf("%s (v%s) at %s:%d", h.Name, h.Version, h.IP, h.Port)
	}
	return fmt.Sprintf("%s at %s:%d", h.Name, h.IP, h.Port)
}

// Addr returns the host:port the websocket client should dial.
func (h *Hub) Addr() string {
	return fmt.Sprintf("%s:%d", h.IP, h.Port)
}

// GetMetadata retrieves a TXT record value by key, or returns an empty
// string if not present.
func (h *Hub) GetMetadata(key string) string {
	if h.Metadata == nil {
		return ""
	}
	return h.Metadata[key]
}

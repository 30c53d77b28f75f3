package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoTimeZone is returned by Location when the hub has no timezone configured.
// Integrations that render wall-clock values treat this as a validation failure.
var ErrNoTimeZone = errors.New("hub timezone is not configured")

// Config represents the hub configuration file.
// This stores host-level settings shared by every integration: the hub
// timezone, the API server address, and operator preferences.
type Config struct {
	Version     int          `yaml:"version"`
	TimeZone    string       `yaml:"time_zone,omitempty"` // IANA zone name; empty = not configured
	Server      ServerConfig `yaml:"server"`
	APIToken    string       `yaml:"api_token,omitempty"` // empty = unauthenticated API
	Preferences *Preferences `yaml:"preferences,omitempty"`

	// path records where the config was loaded from so Save writes back
	// to the same location. Not serialized.
	path string `yaml:"-"`
}

// ServerConfig holds the websocket API listen address.
type ServerConfig struct {
	Host string `yaml:"host"` // empty = all interfaces
	Port int    `yaml:"port"`
}

// Preferences represents hub-wide operator preferences.
type Preferences struct {
	AutoDiscover bool `yaml:"auto_discover"` // Announce the hub over mDNS on startup
}

// DefaultPort is the default websocket API port for the hub.
const DefaultPort = 8423

// New creates a new Config with default values. The timezone is left
// unset on purpose: configuring it is an explicit operator step, and
// integrations validate its presence.
func New() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Port: DefaultPort,
		},
		Preferences: &Preferences{
			AutoDiscover: true,
		},
	}
}

// TimeZoneConfigured reports whether the hub has a timezone set.
func (c *Config) TimeZoneConfigured() bool {
	return c.TimeZone != ""
}

// AutoDiscover reports whether the hub should announce itself over
// mDNS. Files without a preferences block default to announcing.
func (c *Config) AutoDiscover() bool {
	if c.Preferences == nil {
		return true
	}
	return c.Preferences.AutoDiscover
}

// Location resolves the configured timezone to a *time.Location.
// Returns ErrNoTimeZone when unset; resolution failures wrap the
// underlying error so callers can distinguish "missing" from "broken".
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return nil, ErrNoTimeZone
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// ListenAddr returns the host:port string the API server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

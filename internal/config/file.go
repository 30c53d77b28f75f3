package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName        = "hearth"
	configFileName = "hearth.yaml"

	// currentVersion is the config file format version this build reads
	// and writes. Files from newer builds are refused rather than
	// silently rewritten.
	currentVersion = 1
)

// fileMutex serializes config file writes.
var fileMutex sync.Mutex

// GetConfigDir returns the platform-appropriate configuration directory.
//
// Linux/BSD: $XDG_CONFIG_HOME/hearth or ~/.config/hearth
// macOS: ~/Library/Application Support/hearth
// Windows: %APPDATA%\hearth
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, "Library", "Application Support")
	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			baseDir = filepath.Join(home, "AppData", "Roaming")
		}
	default:
		// Linux and other Unix-like systems follow XDG
		baseDir = os.Getenv("XDG_CONFIG_HOME")
		if baseDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			baseDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(baseDir, appName), nil
}

// GetConfigPath returns the full path to the hub config file.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// ensureConfigDir creates the directory holding path if needed.
// Uses 0700 since the config may contain the API token.
func ensureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// Load reads the hub config from the default location. A missing file
// is not an error: a fresh default config is returned, and the first
// Save creates the file.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the hub config from an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := New()
			cfg.path = path
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Version > currentVersion {
		return nil, fmt.Errorf("config file version %d is newer than supported version %d", cfg.Version, currentVersion)
	}
	if cfg.Version == 0 {
		cfg.Version = currentVersion
	}
	cfg.path = path

	return cfg, nil
}

// Path returns where the config was loaded from, or the default
// location for configs that have never touched disk.
func (c *Config) Path() (string, error) {
	if c.path != "" {
		return c.path, nil
	}
	return GetConfigPath()
}

// Save writes the config back to its source path atomically: the file
// is written to a temporary name in the same directory and renamed
// into place, so a crash mid-write never leaves a torn config.
func (c *Config) Save() error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	path, err := c.Path()
	if err != nil {
		return err
	}
	if err := ensureConfigDir(path); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Hearth hub configuration
#
# Security Note: the API token in this file grants full hub access.
# Keep the file private (it is written with mode 0600).

`)
	content := append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	c.path = path
	return nil
}

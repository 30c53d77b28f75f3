// Package config manages the persistent hub configuration file.
//
// The config stores host-level settings that belong to the hub rather
// than to any one integration: the hub timezone, the websocket API
// listen address and token, and operator preferences. Integration-specific
// settings live in config entries (see the store package), not here.
//
// The file lives in the platform configuration directory:
//
//   - Linux/BSD: ~/.config/hearth/hearth.yaml (respects XDG_CONFIG_HOME)
//   - macOS: ~/Library/Application Support/hearth/hearth.yaml
//   - Windows: %APPDATA%\hearth\hearth.yaml
//
// Saves are atomic (temp file and rename) so a crash mid-write cannot
// corrupt the config. The directory is created with mode 0700 and the
// file with 0600 because the config may contain the API token.
//
// The timezone is stored as an IANA zone name ("Europe/Stockholm") and
// resolved on demand with Location, which returns ErrNoTimeZone when
// unset. An unset timezone is a valid state for a freshly installed
// hub: flows surface the condition to the user before creating any
// entry, and the daemon checks TimeZoneConfigured at startup to tell
// the operator how to set it.
package config

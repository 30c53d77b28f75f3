// Package store persists config entries.
//
// A config entry is the durable result of a finished configuration
// flow: the integration domain it belongs to, a human-readable title,
// and the validated option values the flow collected. The hub sets up
// an integration instance for every entry at startup and tears it down
// when the entry is removed.
//
// The store keeps entries in a YAML file next to the hub config and
// writes the whole file atomically on every mutation, so the entry set
// on disk always reflects a consistent state. Lookups used by flows
// (Matching, for duplicate detection) compare option values across
// serialization boundaries, since the same list arrives as []string
// from handlers, []any from YAML, and []any of JSON-decoded values
// from the websocket API.
package store

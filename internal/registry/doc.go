// Package registry assigns stable entity ids.
//
// Platforms identify their entities by a unique id that never changes
// (for the time_date platform this is the display option, e.g. "time"
// or "date_time_utc"). The registry maps each (domain, platform,
// unique id) triple to an entity id like "sensor.time" on first
// registration and returns the same id forever after, so dashboards
// and clients keep working across restarts and re-configuration.
//
// Entity ids are derived from the entity's display name via Slugify,
// with a numeric suffix on collision. The mapping persists to a YAML
// file with the same atomic-write discipline as the config store.
//
// Operators can override an entity's display name with Rename. The
// override sticks across re-registration (GetOrCreate never touches an
// existing name) while the entity id stays as first assigned; an empty
// name hands naming back to the platform.
package registry

// Package timedate implements the time_date integration: sensors that
// render the current time and date in a handful of formats.
//
// A config entry selects one or more display options (time, date,
// combined forms, UTC variants, and Swatch Internet Time). The
// platform loads a sensor per option; each sensor publishes its value
// and then sleeps until the value would actually change, which is the
// next minute boundary for clock-style options, local midnight for
// date, and the next 86.4 second beat for Internet Time.
//
// The config flow asks a single question, the display option dropdown,
// and refuses to finish while the hub has no usable timezone
// (timezone_not_exist). Submitting a selection that matches an
// existing entry aborts with already_configured. An options flow
// offers the same form prefilled to reconfigure an entry in place.
//
// While either form is open, clients can start a live preview: the
// same sensors run without touching the state machine and stream their
// values as an accumulated item list, so the wizard shows exactly what
// the entry will create. Options flow previews reuse the display names
// the entity registry has already assigned.
package timedate

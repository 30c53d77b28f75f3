// Package schema describes configuration forms.
//
// A Schema is an ordered list of fields, each constrained by a
// Selector. Flow handlers declare their steps as schemas; the flow
// engine validates submitted input with Schema.Validate, and clients
// render the form from Schema.Describe, which mirrors the structure
// over the wire (field name, required flag, selector description).
//
// Selectors both validate and coerce: Coerce returns the canonical
// value stored in the config entry, so handlers downstream never see
// raw client input. Validation failures carry a machine-readable code
// (required, unknown_field, invalid_type, invalid_option) that flow
// handlers surface as form errors.
package schema

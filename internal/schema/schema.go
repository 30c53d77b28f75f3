package schema

import (
	"fmt"
)

// FieldError describes a validation failure for a single field. Code is
// a machine-readable token suitable for use as a form error key.
type FieldError struct {
	Field string
	Code  string
	msg   string
}

func (e *FieldError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Code)
}

// Error codes produced by Validate.
const (
	CodeRequired      = "required"
	CodeUnknownField  = "unknown_field"
	CodeInvalidType   = "invalid_type"
	CodeInvalidOption = "invalid_option"
)

// Selector constrains and coerces the value of a single form field.
// Implementations also describe themselves so clients can render an
// appropriate input widget.
type Selector interface {
	// Coerce validates raw input and returns the canonical value.
	Coerce(field string, value any) (any, error)
	// describe returns the wire representation, keyed by selector type.
	describe() map[string]any
}

// Field is one entry in a form schema.
type Field struct {
	Name     string
	Required bool
	Default  any
	Selector Selector
}

// Schema describes a form: an ordered list of fields.
type Schema struct {
	Fields []Field
}

// Validate checks raw user input against the schema and returns the
// canonical values. Unknown keys are rejected, missing optional fields
// pick up their defaults, and each present value is coerced by its
// field's selector.
func (s *Schema) Validate(input map[string]any) (map[string]any, error) {
	known := make(map[string]*Field, len(s.Fields))
	for i := range s.Fields {
		known[s.Fields[i].Name] = &s.Fields[i]
	}

	for key := range input {
		if _, ok := known[key]; !ok {
			return nil, &FieldError{Field: key, Code: CodeUnknownField}
		}
	}

	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		raw, present := input[f.Name]
		if !present {
			if f.Required {
				return nil, &FieldError{Field: f.Name, Code: CodeRequired}
			}
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}
		val, err := f.Selector.Coerce(f.Name, raw)
		if err != nil {
			return nil, err
		}
		// A required multi-select needs at least one choice.
		if list, ok := val.([]string); ok && f.Required && len(list) == 0 {
			return nil, &FieldError{Field: f.Name, Code: CodeRequired}
		}
		out[f.Name] = val
	}
	return out, nil
}

// Describe returns the wire representation of the schema, in field
// order, for clients that render forms.
func (s *Schema) Describe() []map[string]any {
	fields := make([]map[string]any, 0, len(s.Fields))
	for _, f := range s.Fields {
		d := map[string]any{
			"name":     f.Name,
			"required": f.Required,
			"selector": f.Selector.describe(),
		}
		if f.Default != nil {
			d["default"] = f.Default
		}
		fields = append(fields, d)
	}
	return fields
}

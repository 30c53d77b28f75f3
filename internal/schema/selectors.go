package schema

// SelectOption is one choice offered by a SelectSelector.
type SelectOption struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Select rendering modes.
const (
	ModeDropdown = "dropdown"
	ModeList     = "list"
)

// SelectSelector restricts a field to one of a fixed set of options,
// or to a subset of them when Multiple is set.
type SelectSelector struct {
	Options        []SelectOption
	Multiple       bool
	Mode           string // dropdown or list; rendering hint only
	TranslationKey string // key clients use to localize option labels
}

// Coerce implements Selector. Single-select accepts a string; multi-
// select accepts a string slice (or []any of strings, which is what
// JSON decoding produces). Every value must be a declared option.
func (s *SelectSelector) Coerce(field string, value any) (any, error) {
	if !s.Multiple {
		str, ok := value.(string)
		if !ok {
			return nil, &FieldError{Field: field, Code: CodeInvalidType,
				msg: "field " + field + ": expected a string"}
		}
		if !s.hasOption(str) {
			return nil, &FieldError{Field: field, Code: CodeInvalidOption,
				msg: "field " + field + ": " + str + " is not a valid option"}
		}
		return str, nil
	}

	var values []string
	switch v := value.(type) {
	case []string:
		values = v
	case []any:
		values = make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, &FieldError{Field: field, Code: CodeInvalidType,
					msg: "field " + field + ": expected a list of strings"}
			}
			values = append(values, str)
		}
	case string:
		// A bare string is accepted as a one-element list.
		values = []string{v}
	default:
		return nil, &FieldError{Field: field, Code: CodeInvalidType,
			msg: "field " + field + ": expected a list of strings"}
	}

	for _, str := range values {
		if !s.hasOption(str) {
			return nil, &FieldError{Field: field, Code: CodeInvalidOption,
				msg: "field " + field + ": " + str + " is not a valid option"}
		}
	}
	return values, nil
}

func (s *SelectSelector) hasOption(value string) bool {
	for _, opt := range s.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

func (s *SelectSelector) describe() map[string]any {
	mode := s.Mode
	if mode == "" {
		mode = ModeDropdown
	}
	sel := map[string]any{
		"options":  s.Options,
		"multiple": s.Multiple,
		"mode":     mode,
	}
	if s.TranslationKey != "" {
		sel["translation_key"] = s.TranslationKey
	}
	return map[string]any{"select": sel}
}

// Label returns the display label for an option value, falling back to
// the raw value for options the selector does not know.
func (s *SelectSelector) Label(value string) string {
	for _, opt := range s.Options {
		if opt.Value == value {
			return opt.Label
		}
	}
	return value
}

// TextSelector accepts any free-form string.
type TextSelector struct {
	// Multiline is a rendering hint for clients.
	Multiline bool
}

// Coerce implements Selector.
func (s *TextSelector) Coerce(field string, value any) (any, error) {
	str, ok := value.(string)
	if !ok {
		return nil, &FieldError{Field: field, Code: CodeInvalidType,
			msg: "field " + field + ": expected a string"}
	}
	return str, nil
}

func (s *TextSelector) describe() map[string]any {
	return map[string]any{"text": map[string]any{"multiline": s.Multiline}}
}

package timedate

import "fmt"

// Domain is the integration domain.
const Domain = "time_date"

// SensorDomain is the entity domain time and date sensors live in.
const SensorDomain = "sensor"

// ConfDisplayOptions is the option key holding the selected display formats.
const ConfDisplayOptions = "display_options"

// Display option types.
const (
	OptionTime        = "time"
	OptionDate        = "date"
	OptionDateTime    = "date_time"
	OptionDateTimeUTC = "date_time_utc"
	OptionDateTimeISO = "date_time_iso"
	OptionTimeDate    = "time_date"
	OptionTimeUTC     = "time_utc"
	OptionBeat        = "beat"
)

// OptionTypes lists every display option in presentation order. The
// beat option is supported for stored entries but is not offered by
// the configuration form.
var OptionTypes = []string{
	OptionTime,
	OptionDate,
	OptionDateTime,
	OptionDateTimeUTC,
	OptionDateTimeISO,
	OptionTimeDate,
	OptionTimeUTC,
	OptionBeat,
}

// ValidOption reports whether option is a known display option.
func ValidOption(option string) bool {
	for _, o := range OptionTypes {
		if o == option {
			return true
		}
	}
	return false
}

// DisplayOptions extracts the canonical option list from entry options
// or validated flow input. It tolerates every shape the value takes
// across boundaries: []string from handlers, []any from YAML and JSON
// decoding, and a bare string from old single-option entries.
func DisplayOptions(options map[string]any) ([]string, error) {
	raw, ok := options[ConfDisplayOptions]
	if !ok {
		return nil, fmt.Errorf("options are missing %s", ConfDisplayOptions)
	}

	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s contains a non-string value: %v", ConfDisplayOptions, item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("%s has unexpected type %T", ConfDisplayOptions, raw)
	}
}

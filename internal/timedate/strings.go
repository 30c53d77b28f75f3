package timedate

// optionLabels maps display options to their English display names.
var optionLabels = map[string]string{
	OptionTime:        "Time",
	OptionDate:        "Date",
	OptionDateTime:    "Date & Time",
	OptionDateTimeUTC: "Date & Time (UTC)",
	OptionDateTimeISO: "Date & Time (ISO)",
	OptionTimeDate:    "Time & Date",
	OptionTimeUTC:     "Time (UTC)",
	OptionBeat:        "Internet Time",
}

// OptionLabel returns the display name for an option, falling back to
// the raw option for unknown values.
func OptionLabel(option string) string {
	if label, ok := optionLabels[option]; ok {
		return label
	}
	return option
}

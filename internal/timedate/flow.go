package timedate

import (
	"strings"

	"github.com/hearthd/hearth/internal/core"
	"github.com/hearthd/hearth/internal/flow"
	"github.com/hearthd/hearth/internal/schema"
	"github.com/hearthd/hearth/internal/store"
)

// Flow error and abort codes shown to the user.
const (
	errTimezoneNotExist    = "timezone_not_exist"
	abortAlreadyConfigured = "already_configured"
)

// UserSchema builds the display option form: a dropdown over every
// option except beat. The same schema validates preview input.
func UserSchema() *schema.Schema {
	opts := make([]schema.SelectOption, 0, len(OptionTypes)-1)
	for _, option := range OptionTypes {
		if option == OptionBeat {
			continue
		}
		opts = append(opts, schema.SelectOption{Value: option, Label: OptionLabel(option)})
	}
	return &schema.Schema{Fields: []schema.Field{{
		Name:     ConfDisplayOptions,
		Required: true,
		Selector: &schema.SelectSelector{
			Options:        opts,
			Multiple:       true,
			Mode:           schema.ModeDropdown,
			TranslationKey: ConfDisplayOptions,
		},
	}}}
}

// Title builds the config entry title from the selected options.
func Title(options []string) string {
	return "Time & Date " + strings.Join(options, ", ")
}

// NewFlowHandler returns the config and options flow handler for the
// time_date integration.
func NewFlowHandler() flow.Handler {
	return flowHandler{}
}

type flowHandler struct{}

func (flowHandler) Domain() string { return Domain }

// validateTimeZone vetoes any submission while the hub has no usable
// timezone, since every option except the UTC ones would render
// nonsense.
func validateTimeZone(hub *core.Hub) func(map[string]any) (map[string]any, error) {
	return func(input map[string]any) (map[string]any, error) {
		if _, err := hub.Config.Location(); err != nil {
			return nil, flow.NewError(errTimezoneNotExist)
		}
		return input, nil
	}
}

// NewConfigFlow implements flow.Handler. One form step; finishing
// aborts when an identical entry already exists.
func (flowHandler) NewConfigFlow(hub *core.Hub) (flow.Instance, error) {
	return &flow.SchemaFlow{
		Steps: []flow.FormStep{{
			StepID:   "user",
			Preview:  Domain,
			Schema:   UserSchema,
			Validate: validateTimeZone(hub),
		}},
		Finish: func(collected map[string]any) (flow.Result, error) {
			options, err := DisplayOptions(collected)
			if err != nil {
				return flow.Result{}, err
			}
			canonical := map[string]any{ConfDisplayOptions: options}

			if existing := hub.Entries.Matching(Domain, canonical); existing != nil {
				return flow.Result{Type: flow.TypeAbort, Reason: abortAlreadyConfigured}, nil
			}

			title := Title(options)
			entry, err := hub.AddEntry(Domain, title, canonical)
			if err != nil {
				return flow.Result{}, err
			}
			return flow.Result{
				Type:    flow.TypeCreateEntry,
				Title:   title,
				EntryID: entry.EntryID,
				Options: canonical,
			}, nil
		},
	}, nil
}

// NewOptionsFlow implements flow.Handler. The same form, prefilled
// with the entry's current selection; finishing updates the entry in
// place and reloads its sensors.
func (flowHandler) NewOptionsFlow(hub *core.Hub, entry *store.Entry) (flow.Instance, error) {
	entryID := entry.EntryID
	current := entry.Options

	return &flow.SchemaFlow{
		Steps: []flow.FormStep{{
			StepID:   "init",
			Preview:  Domain,
			Schema:   UserSchema,
			Defaults: func() map[string]any { return current },
			Validate: validateTimeZone(hub),
		}},
		Finish: func(collected map[string]any) (flow.Result, error) {
			options, err := DisplayOptions(collected)
			if err != nil {
				return flow.Result{}, err
			}
			canonical := map[string]any{ConfDisplayOptions: options}

			// Resubmitting the entry's own selection is a no-op save;
			// colliding with a different entry is a duplicate.
			if existing := hub.Entries.Matching(Domain, canonical); existing != nil && existing.EntryID != entryID {
				return flow.Result{Type: flow.TypeAbort, Reason: abortAlreadyConfigured}, nil
			}

			updated, err := hub.UpdateEntryOptions(entryID, canonical)
			if err != nil {
				return flow.Result{}, err
			}
			return flow.Result{
				Type:    flow.TypeCreateEntry,
				Title:   updated.Title,
				EntryID: updated.EntryID,
				Options: canonical,
			}, nil
		},
	}, nil
}

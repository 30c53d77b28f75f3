package flow

import (
	"errors"
	"fmt"

	"github.com/hearthd/hearth/internal/core"
	"github.com/hearthd/hearth/internal/schema"
	"github.com/hearthd/hearth/internal/store"
)

// Handler spawns flow instances for one integration domain.
type Handler interface {
	Domain() string
	// NewConfigFlow starts a flow that will create a config entry.
	NewConfigFlow(hub *core.Hub) (Instance, error)
	// NewOptionsFlow starts a flow that reconfigures an existing
	// entry. Handlers without an options flow return ErrNoOptionsFlow.
	NewOptionsFlow(hub *core.Hub, entry *store.Entry) (Instance, error)
}

// ErrNoOptionsFlow is returned by handlers whose entries are not
// reconfigurable.
var ErrNoOptionsFlow = errors.New("integration does not support an options flow")

// Instance is one in-progress flow. The manager renders the first form
// with Begin, re-renders it with Current, and feeds submissions to
// Submit until a terminal result comes back.
type Instance interface {
	Begin() (Result, error)
	Current() (Result, error)
	Submit(input map[string]any) (Result, error)
}

// FormStep is one schema-driven step of a SchemaFlow.
type FormStep struct {
	StepID string
	// Preview names the integration domain that offers a live preview
	// while this form is on screen, empty for none.
	Preview string
	// Schema builds the form schema. Called per render so options
	// flows can reflect current values.
	Schema func() *schema.Schema
	// Defaults prefills the form, typically from a config entry's
	// stored options. Optional.
	Defaults func() map[string]any
	// Validate runs after schema validation and may veto the input by
	// returning a *Error; its code is shown on the re-rendered form.
	// Optional. Returning different values rewrites the input.
	Validate func(input map[string]any) (map[string]any, error)
}

// SchemaFlow walks FormSteps in order, accumulating validated input
// from every step, then hands the collected values to Finish. It is
// the common shape of guided configuration: most handlers only ever
// need to declare steps and a finish function.
type SchemaFlow struct {
	Steps []FormStep
	// Finish turns the collected input into a terminal result, either
	// creating an entry or aborting.
	Finish func(collected map[string]any) (Result, error)

	idx       int
	collected map[string]any
}

// Begin implements Instance.
func (f *SchemaFlow) Begin() (Result, error) {
	if len(f.Steps) == 0 {
		return Result{}, fmt.Errorf("flow has no steps")
	}
	f.idx = 0
	f.collected = make(map[string]any)
	return f.render(nil), nil
}

// Current implements Instance.
func (f *SchemaFlow) Current() (Result, error) {
	if f.collected == nil {
		return f.Begin()
	}
	return f.render(nil), nil
}

// Submit implements Instance. Validation failures re-render the form
// with the error keyed under "base"; valid input advances the flow.
func (f *SchemaFlow) Submit(input map[string]any) (Result, error) {
	if f.collected == nil {
		if _, err := f.Begin(); err != nil {
			return Result{}, err
		}
	}
	step := f.Steps[f.idx]

	validated, err := step.Schema().Validate(input)
	if err != nil {
		var ferr *schema.FieldError
		if errors.As(err, &ferr) {
			return f.render(map[string]string{"base": ferr.Code}), nil
		}
		return Result{}, err
	}

	if step.Validate != nil {
		validated, err = step.Validate(validated)
		if err != nil {
			var flowErr *Error
			if errors.As(err, &flowErr) {
				return f.render(map[string]string{"base": flowErr.Code}), nil
			}
			return Result{}, err
		}
	}

	for k, v := range validated {
		f.collected[k] = v
	}

	if f.idx < len(f.Steps)-1 {
		f.idx++
		return f.render(nil), nil
	}
	return f.Finish(f.collected)
}

func (f *SchemaFlow) render(errs map[string]string) Result {
	step := f.Steps[f.idx]
	res := Result{
		Type:    TypeForm,
		StepID:  step.StepID,
		Schema:  step.Schema().Describe(),
		Errors:  errs,
		Preview: step.Preview,
	}
	if step.Defaults != nil {
		res.Defaults = step.Defaults()
	}
	return res
}

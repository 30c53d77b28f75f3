// Package flow runs guided configuration flows.
//
// A flow is a short-lived dialog between the hub and a client: the hub
// renders a form (a schema plus optional prefilled defaults), the
// client submits input, and the flow either re-renders the form with
// validation errors, asks for the next step, or finishes by creating
// a config entry or aborting with a reason.
//
// Integrations contribute a Handler that spawns flow Instances; most
// only need a SchemaFlow, which walks declared FormSteps and hands the
// collected input to a finish function. Validation failures travel as
// *Error values whose code the client shows next to the form, so
// handlers never format user-facing text.
//
// The Manager tracks in-progress flows by id, enforces a 15 minute
// idle lifetime, and exposes flow metadata so other subsystems (the
// live preview command) can associate a flow with its config entry.
package flow

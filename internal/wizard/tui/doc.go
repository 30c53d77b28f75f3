// Package tui implements the interactive terminal wizard for setting
// up and adjusting integrations on a Hearth hub.
//
// # Architecture
//
// The package follows the Elm architecture as implemented by Bubble
// Tea. A single top level AppModel owns the active screen and routes
// messages to per screen models:
//
//   - ConnectModel: discovers hubs over mDNS and accepts a manual
//     address, producing the address to dial
//   - FormModel: renders the flow's form step as a checklist beside a
//     live preview of the sensors the selection would create
//   - success and failure screens rendered by AppModel itself
//
// # Screen Flow
//
//	ScreenConnect -> ScreenConnecting -> ScreenForm -> ScreenSuccess
//	                        |                |              |
//	                        v                v              o (options)
//	                  ScreenFailure <---- (abort)  ->  ScreenConnecting
//
// Passing Config.Addr skips discovery and dials immediately. ModeOptions
// starts at the options flow of an existing entry instead of a new
// config flow.
//
// # Live Preview
//
// While the form is open the wizard holds a preview subscription on the
// hub. Toggling an option retires the old stream and opens a new one
// for the changed selection; a generation counter discards events from
// superseded streams so rapid toggles cannot interleave stale values.
// Preview events arrive on a channel drained by a self re-arming
// command, the usual Bubble Tea pattern for external event sources.
//
// # Usage Example
//
//	err := tui.Run(tui.Config{
//	    Addr:    "192.168.1.50:8423",
//	    Token:   token,
//	    Handler: "time_date",
//	})
//
// Run blocks until the wizard exits and returns the failure shown on
// the final screen, if any, so callers can set their exit code.
//
// # Key Bindings
//
// Every screen publishes its bindings through bubbles/help, so the
// footer always reflects the keys that are active. Ctrl+C quits from
// anywhere; q quits wherever text entry is not capturing keystrokes.
//
// # Styling
//
// styles.go centralizes the color palette and lipgloss styles. All
// screens render through RenderApplicationContainer, which wraps the
// content in the shared bordered layout with the application header
// and a help footer.
package tui

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hearthd/hearth/internal/client"
	"github.com/hearthd/hearth/internal/discovery"
	"github.com/hearthd/hearth/internal/wizard/tui"
)

// Command flags
var (
	hubAddr     string
	hubToken    string
	cmdTimeout  int
	scanTimeout int
	integration string
)

func init() {
	// Common flags for hub commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&hubAddr, "host", "", "Hub address as host:port (skips discovery)")
	rootCmd.PersistentFlags().StringVar(&hubToken, "token", "", "API access token")
	rootCmd.PersistentFlags().IntVar(&cmdTimeout, "timeout", 15, "Command timeout in seconds")

	// Add subcommands directly to root
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statesCmd)
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(optionsCmd)
	rootCmd.AddCommand(removeCmd)
}

// scanCmd discovers hubs on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Hearth hubs on the network",
	Long: `Scan for Hearth hubs using mDNS/DNS-SD discovery.

This command listens for mDNS announcements from running hubs and
displays all discovered hubs with their addresses and versions.`,
	Example: `  # Scan with the default 5 second timeout
  hearth-cfg scan

  # Longer scan for slow networks
  hearth-cfg scan --scan-timeout 15`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "scan-timeout", 5, "Scan timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for Hearth hubs (timeout: %ds)...\n\n", scanTimeout)

	hubs, err := discovery.Scan(context.Background(), time.Duration(scanTimeout)*time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(hubs) == 0 {
		fmt.Println("No hubs found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the hub daemon is running (hearthd server)")
		fmt.Println("  - Check that this machine is on the same network as the hub")
		fmt.Println("  - Some networks block mDNS; use --host to connect directly")
		fmt.Println("  - Try increasing --scan-timeout for slower networks")
		return nil
	}

	fmt.Printf("Found %d hub(s):\n\n", len(hubs))

	for i, hub := range hubs {
		fmt.Printf("%d. %s\n", i+1, hub.Name)
		fmt.Printf("   Address: %s\n", hub.Addr())
		if hub.Version != "" {
			fmt.Printf("   Version: %s\n", hub.Version)
		}
		if path := hub.GetMetadata("api"); path != "" {
			fmt.Printf("   API:     ws://%s%s\n", hub.Addr(), path)
		}
		fmt.Println()
	}

	fmt.Println("Use 'hearth-cfg --host <address>' to connect to a specific hub")
	fmt.Println("Use 'hearth-cfg wizard' for interactive setup")

	return nil
}

// wizardCmd launches the interactive setup wizard
var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Launch the interactive setup wizard",
	Long: `Launch an interactive TUI wizard for setting up an integration.

The wizard walks through:
- Discovering hubs on the network (or connecting directly with --host)
- Selecting the display options for the integration
- Watching a live preview of the sensors before anything is created
- Creating the config entry on the hub

This is the recommended way to set up integrations for most users.`,
	Example: `  # Launch wizard with hub discovery
  hearth-cfg wizard
  # Or simply (wizard is default):
  hearth-cfg

  # Launch wizard against a specific hub
  hearth-cfg wizard --host 192.168.1.50:8423
  hearth-cfg --host 192.168.1.50:8423`,
	RunE: runWizard,
}

func init() {
	wizardCmd.Flags().StringVar(&integration, "integration", "time_date", "Integration to set up")
}

func runWizard(cmd *cobra.Command, args []string) error {
	if err := requireTTY(); err != nil {
		return err
	}
	if integration == "" {
		integration = "time_date"
	}

	return tui.Run(tui.Config{
		Addr:    hubAddr,
		Token:   hubToken,
		Handler: integration,
		Mode:    tui.ModeSetup,
	})
}

// addCmd creates a config entry without the wizard
var addCmd = &cobra.Command{
	Use:   "add <display-option>...",
	Short: "Create a config entry non-interactively",
	Long: `Create a config entry directly from the command line.

This drives the same config flow as the wizard but submits the given
display options in one shot, which suits scripts and terminals where
the TUI cannot run.

Valid display options: time, date, date_time, date_time_utc,
date_time_iso, time_date, time_utc.`,
	Example: `  # Create an entry showing the local time and date
  hearth-cfg add time date

  # Create an entry on a specific hub
  hearth-cfg add date_time_iso --host 192.168.1.50:8423`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&integration, "integration", "time_date", "Integration to set up")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	c, err := dialClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	form, err := c.StartConfigFlow(ctx, integration)
	if err != nil {
		return fmt.Errorf("failed to start config flow: %w", err)
	}

	return submitOptions(ctx, c, form, args, "Created")
}

// infoCmd shows the hub configuration summary
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show hub information",
	Long: `Display the hub's version, timezone, and API port.

A hub without a configured timezone will refuse to create entries for
clock integrations; this command makes that state visible.`,
	Example: `  # Show info with auto-discovery
  hearth-cfg info

  # Show info for a specific hub
  hearth-cfg info --host 192.168.1.50:8423`,
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	c, err := dialClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg, err := c.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to get hub config: %w", err)
	}

	fmt.Printf("Hub version: %s\n", cfg.Version)
	if cfg.TimeZone != "" {
		fmt.Printf("Timezone:    %s\n", cfg.TimeZone)
	} else {
		fmt.Printf("Timezone:    (not configured)\n")
	}
	fmt.Printf("API port:    %d\n", cfg.Port)

	if cfg.TimeZone == "" {
		fmt.Println("\nThe hub timezone is not set. Clock integrations will refuse to")
		fmt.Println("create entries until it is configured:")
		fmt.Println("  hearthd server --timezone <IANA name>")
	}

	return nil
}

// listCmd lists the hub's config entries
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List config entries on the hub",
	Long: `List every config entry stored on the hub with its entry id,
domain, and options. The entry id is what 'options' and 'remove' take.`,
	Example: `  # List entries with auto-discovery
  hearth-cfg list

  # List entries on a specific hub
  hearth-cfg list --host 192.168.1.50:8423`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	c, err := dialClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	entries, err := c.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No config entries.")
		fmt.Println("\nUse 'hearth-cfg wizard' to set up an integration.")
		return nil
	}

	fmt.Printf("%d config entr%s:\n\n", len(entries), plural(len(entries), "y", "ies"))

	for i, entry := range entries {
		fmt.Printf("%d. %s\n", i+1, entry.Title)
		fmt.Printf("   Entry ID: %s\n", entry.EntryID)
		fmt.Printf("   Domain:   %s\n", entry.Domain)
		if len(entry.Options) > 0 {
			fmt.Printf("   Options:  %v\n", entry.Options)
		}
		fmt.Printf("   Created:  %s\n", entry.CreatedAt.Local().Format(time.RFC822))
		fmt.Println()
	}

	fmt.Println("Use 'hearth-cfg options <entry-id>' to adjust an entry")
	fmt.Println("Use 'hearth-cfg remove <entry-id>' to delete an entry")

	return nil
}

// statesCmd dumps the current entity states
var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "Show current entity states",
	Long:  `Display the current state of every entity on the hub.`,
	Example: `  # Show states with auto-discovery
  hearth-cfg states

  # Show states on a specific hub
  hearth-cfg states --host 192.168.1.50:8423`,
	RunE: runStates,
}

func runStates(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	c, err := dialClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	states, err := c.GetStates(ctx)
	if err != nil {
		return fmt.Errorf("failed to get states: %w", err)
	}

	if len(states) == 0 {
		fmt.Println("No entities.")
		return nil
	}

	fmt.Printf("%-30s %-24s %s\n", "ENTITY", "STATE", "NAME")
	for _, s := range states {
		fmt.Printf("%-30s %-24s %s\n", s.EntityID, s.State, s.FriendlyName())
	}

	return nil
}

// entitiesCmd lists the entity registry
var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List registered entities",
	Long: `List every entity in the hub's registry with its entity id,
display name, and owning config entry. The entity id is what 'rename'
takes, and it stays stable across renames and option changes.`,
	Example: `  # List entities with auto-discovery
  hearth-cfg entities

  # List entities on a specific hub
  hearth-cfg entities --host 192.168.1.50:8423`,
	RunE: runEntities,
}

func runEntities(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	c, err := dialClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	entities, err := c.ListEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list entities: %w", err)
	}

	if len(entities) == 0 {
		fmt.Println("No registered entities.")
		return nil
	}

	fmt.Printf("%-30s %-24s %s\n", "ENTITY", "NAME", "ENTRY ID")
	for _, e := range entities {
		fmt.Printf("%-30s %-24s %s\n", e.EntityID, e.Name, e.ConfigEntryID)
	}

	fmt.Println("\nUse 'hearth-cfg rename <entity-id> <name>' to rename an entity")

	return nil
}

// renameCmd changes an entity's display name
var renameCmd = &cobra.Command{
	Use:   "rename <entity-id> <name>",
	Short: "Rename an entity",
	Long: `Change the display name of an entity.

The new name shows up as the entity's friendly_name in states and in
flow previews. The entity id itself never changes, so automations keep
working. Pass an empty name ("") to restore the default one.`,
	Example: `  # Rename an entity (find the id with 'hearth-cfg entities')
  hearth-cfg rename sensor.time "Wall Clock"

  # Restore the default name
  hearth-cfg rename sensor.time ""`,
	Args: cobra.ExactArgs(2),
	RunE: runRename,
}

func runRename(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	c, err := dialClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	renamed, err := c.RenameEntity(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to rename entity: %w", err)
	}

	if args[1] == "" {
		fmt.Printf("✓ Restored the default name of %s\n", renamed.EntityID)
	} else {
		fmt.Printf("✓ Renamed %s to %q\n", renamed.EntityID, renamed.Name)
	}
	return nil
}

// optionsCmd adjusts an existing entry, interactively or directly
var optionsCmd = &cobra.Command{
	Use:   "options <entry-id> [display-option...]",
	Short: "Adjust the options of a config entry",
	Long: `Adjust the options of an existing config entry.

With only an entry id, this launches the interactive wizard prefilled
with the entry's current options and the same live preview as initial
setup. With display options after the entry id, the new selection is
submitted directly without the TUI. Saving updates the entry in place
and reloads its sensors.`,
	Example: `  # Adjust an entry interactively (find the id with 'hearth-cfg list')
  hearth-cfg options 4f1c9a52-8e71-4d33-b6a4-2f3d19c0f3aa

  # Replace the selection without the TUI
  hearth-cfg options 4f1c9a52-8e71-4d33-b6a4-2f3d19c0f3aa time date

  # Adjust an entry on a specific hub
  hearth-cfg options 4f1c9a52-8e71-4d33-b6a4-2f3d19c0f3aa --host 192.168.1.50:8423`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOptions,
}

func runOptions(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return runOptionsDirect(args[0], args[1:])
	}

	if err := requireTTY(); err != nil {
		return err
	}

	return tui.Run(tui.Config{
		Addr:    hubAddr,
		Token:   hubToken,
		EntryID: args[0],
		Mode:    tui.ModeOptions,
	})
}

func runOptionsDirect(entryID string, options []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	c, err := dialClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	form, err := c.StartOptionsFlow(ctx, entryID)
	if err != nil {
		return fmt.Errorf("failed to start options flow: %w", err)
	}

	return submitOptions(ctx, c, form, options, "Updated")
}

// removeCmd deletes a config entry
var removeCmd = &cobra.Command{
	Use:   "remove <entry-id>",
	Short: "Remove a config entry",
	Long: `Remove a config entry from the hub.

The entry's sensors are torn down and their registry entries deleted.
This cannot be undone; the entry can be recreated with the wizard.`,
	Example: `  # Remove an entry (find the id with 'hearth-cfg list')
  hearth-cfg remove 4f1c9a52-8e71-4d33-b6a4-2f3d19c0f3aa`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	c, err := dialClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.RemoveEntry(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to remove entry: %w", err)
	}

	fmt.Printf("✓ Removed entry %s\n", args[0])
	return nil
}

// cmdContext returns the deadline context for a direct command.
func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(cmdTimeout)*time.Second)
}

// dialClient connects to the hub, discovering one when no --host was
// given.
func dialClient(ctx context.Context) (*client.Client, error) {
	addr := hubAddr
	if addr == "" {
		fmt.Println("No hub address specified, discovering...")
		hub, err := discovery.NewScanner().FindFirst(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w (use --host to specify the hub address)", err)
		}
		fmt.Printf("Found %s\n\n", hub)
		addr = hub.Addr()
	}

	return client.Dial(ctx, addr, hubToken)
}

// submitOptions answers a form result with the given display options
// and reports the outcome. verb is "Created" or "Updated".
func submitOptions(ctx context.Context, c *client.Client, form *client.FlowResult, options []string, verb string) error {
	switch form.Type {
	case client.ResultTypeForm:
	case client.ResultTypeAbort:
		return fmt.Errorf("%s", tui.ErrorText(form.Reason))
	default:
		return fmt.Errorf("unexpected flow result %q", form.Type)
	}

	res, err := c.SubmitFlow(ctx, form.FlowID, map[string]any{schemaField(form): options})
	if err != nil {
		return fmt.Errorf("failed to submit flow: %w", err)
	}

	switch res.Type {
	case client.ResultTypeCreateEntry:
		fmt.Printf("✓ %s %q\n", verb, res.Title)
		fmt.Printf("  Entry ID: %s\n", res.EntryID)
		return nil
	case client.ResultTypeAbort:
		return fmt.Errorf("%s", tui.ErrorText(res.Reason))
	case client.ResultTypeForm:
		if code, ok := res.Errors["base"]; ok {
			return fmt.Errorf("%s", tui.ErrorText(code))
		}
		return fmt.Errorf("the hub needs more input (step %s); use the wizard", res.StepID)
	default:
		return fmt.Errorf("unexpected flow result %q", res.Type)
	}
}

// schemaField returns the name of the form's input field. The clock
// integration forms carry exactly one.
func schemaField(form *client.FlowResult) string {
	for _, field := range form.Schema {
		if name, ok := field["name"].(string); ok {
			return name
		}
	}
	return "display_options"
}

// requireTTY refuses to start the wizard without an interactive
// terminal.
func requireTTY() error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("this command needs an interactive terminal; use the direct commands instead")
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Hearth-cfg is the companion configuration utility for Hearth hubs.
//
// It provides hub discovery, an interactive setup wizard with a live
// sensor preview, and direct commands for inspecting and managing the
// hub's config entries. The utility talks to the hub over its
// websocket API and never touches the hub's files directly.
//
// Usage:
//
//	hearth-cfg [command] [flags]
//
// Running without arguments launches the interactive wizard.
// See 'hearth-cfg --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hearthd/hearth/internal/logging"
	"github.com/hearthd/hearth/internal/version"
)

func main() {
	// Silent unless HEARTH_LOG_LEVEL asks for output, so log lines never
	// tear the wizard's screen.
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hearth-cfg",
	Short: "Hearth Hub Configuration Utility",
	Long: `A companion utility for configuring Hearth hubs.

Provides hub discovery, an interactive setup wizard with a live sensor
preview, and direct commands for creating, listing, adjusting, and
removing the hub's config entries and renaming their entities.

If no command is specified, the interactive wizard will launch automatically.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run wizard when no subcommand provided
		return runWizard(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hearth-cfg %s (commit: %s)\n", version.Version, version.Commit)
	},
}

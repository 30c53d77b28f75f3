// Hearthd is the Hearth home automation hub daemon.
//
// It serves the websocket API that clients use to manage integrations,
// run configuration flows, and subscribe to entity state changes. The
// daemon persists config entries and entity registrations under the
// hub's config directory and announces itself on the local network
// over mDNS so the companion 'hearth-cfg' utility can find it.
//
// Usage:
//
//	hearthd server [flags]
//
// See 'hearthd server --help' for available options.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hearthd/hearth/internal/api"
	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/core"
	"github.com/hearthd/hearth/internal/discovery"
	"github.com/hearthd/hearth/internal/flow"
	"github.com/hearthd/hearth/internal/logging"
	"github.com/hearthd/hearth/internal/registry"
	"github.com/hearthd/hearth/internal/store"
	"github.com/hearthd/hearth/internal/timedate"
	"github.com/hearthd/hearth/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hearthd",
	Short: "Hearth Hub Daemon",
	Long: `The Hearth home automation hub daemon.

Serves the websocket API for managing integrations and streaming entity
states, persists config entries across restarts, and announces the hub
over mDNS for discovery by the 'hearth-cfg' companion utility.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
}

// Server command and flags
var (
	host       string
	port       int
	configPath string
	dataDir    string
	timeZone   string
	logLevel   string
	noMDNS     bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the hub daemon",
	Long: `Start the Hearth hub and serve the websocket API.

Settings come from the hub config file and can be overridden per run
with flags. The config file also holds the hub timezone, which clock
integrations require before they will create entries; set it once with
the --timezone flag or by editing the file directly.`,
	Example: `  # Start with settings from the config file
  hearthd server

  # First run: set the hub timezone (persisted to the config file)
  hearthd server --timezone Europe/Berlin

  # Custom port with debug logging
  hearthd server --port 8500 --log-level debug

  # Run without announcing the hub over mDNS
  hearthd server --no-mdns`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().StringVar(&host, "host", "", "Listen address (empty = all interfaces)")
	serverCmd.Flags().IntVar(&port, "port", 0, "Websocket API port (0 = from config file)")
	serverCmd.Flags().StringVar(&configPath, "config", "", "Path to the hub config file (default: platform config dir)")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for entry and registry storage (default: config dir)")
	serverCmd.Flags().StringVar(&timeZone, "timezone", "", "Hub timezone as an IANA name, persisted to the config file")
	serverCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serverCmd.Flags().BoolVar(&noMDNS, "no-mdns", false, "Disable mDNS hub announcement")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := dataDir
	if dir == "" {
		if dir, err = config.GetConfigDir(); err != nil {
			return err
		}
	}

	entries, err := store.Open(filepath.Join(dir, "entries.yaml"))
	if err != nil {
		return err
	}
	reg, err := registry.Open(filepath.Join(dir, "registry.yaml"))
	if err != nil {
		return err
	}

	hub := core.New(cfg, entries, reg)
	hub.RegisterPlatform(timedate.NewPlatform())

	flows := flow.NewManager(hub)
	flows.Register(timedate.NewFlowHandler())

	srv := api.NewServer(hub, flows)
	timedate.RegisterWebsocketCommands(srv, hub, flows)

	hub.Start()
	defer hub.Stop()

	if !noMDNS && cfg.AutoDiscover() {
		instance, _ := os.Hostname()
		if instance == "" {
			instance = "hearth"
		}
		announcer, err := discovery.Announce(instance, cfg.Server.Port, version.Version)
		if err != nil {
			logging.Warn("mDNS announcement failed", zap.Error(err))
		} else {
			defer announcer.Shutdown()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(cfg.ListenAddr()) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("API shutdown incomplete", zap.Error(err))
	}
	return <-errCh
}

// loadConfig reads the hub config and applies flag overrides. The
// timezone override is persisted since setting it is a one-time
// operator step the daemon would otherwise forget.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	if timeZone != "" {
		cfg.TimeZone = timeZone
		if _, err := cfg.Location(); err != nil {
			return nil, err
		}
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to persist timezone: %w", err)
		}
		logging.Info("hub timezone configured", zap.String("time_zone", timeZone))
	}

	if !cfg.TimeZoneConfigured() {
		logging.Warn("no hub timezone configured, clock integrations will not set up entries until one is set with --timezone")
	}

	return cfg, nil
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hearthd %s (commit: %s)\n", version.Version, version.Commit)
	},
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twinforge/aaskit/cmd/aaskit/commands"
	"github.com/twinforge/aaskit/config"
	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/logger"
)

var rootCmd = &cobra.Command{
	Use:   "aaskit",
	Short: "AASKit - Asset Administration Shell synchronization toolkit",
	Long: `AASKit - Digital twin metamodel and synchronization toolkit.

AASKit keeps Asset Administration Shell object trees in sync with the devices
and services they describe, driven by mapping configuration submodels and a
persistent object store.

Available commands:
  version - Show version and build information
  config  - Manage AASKit configuration
  inspect - Show configured backends and mapped elements
  sync    - Update or commit stored objects through their backends

Examples:
  aaskit config init               # Write a default config file
  aaskit config show               # Show effective configuration
  aaskit inspect aaskit.toml       # Show backends and mapping summary
  aaskit sync                      # Pull fresh values from mapped sources
  aaskit sync --commit             # Push stored state out instead`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize global logger before any command runs.
		// Skip for commands with machine-readable output (config show/get).
		if cmd.Name() == "show" || cmd.Name() == "get" {
			return nil
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput := false
		if cfg, err := config.Load(); err == nil {
			jsonOutput = cfg.Logging.JSON
			logger.SetTheme(cfg.GetLogTheme())
		}
		if err := logger.InitializeWithVerbosity(jsonOutput, verbosity); err != nil {
			return errors.Wrap(err, "initializing logger")
		}
		if verbosity > 0 {
			logger.Debugw("Logging initialized",
				"level", logger.LevelName(verbosity),
				"shows", logger.VerbosityDescription(verbosity))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.VersionCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.InspectCmd)
	rootCmd.AddCommand(commands.SyncCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package commands

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/twinforge/aaskit/config"
	"github.com/twinforge/aaskit/errors"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage AASKit configuration",
	Long: `Display and manage AASKit configuration settings.

Sources, highest precedence first:
1. Environment variables (AASKIT_* prefix)
2. Project config (./aaskit.toml or ./config.toml, searched upward)
3. User config (~/.aaskit/aaskit.toml or ~/.aaskit/config.toml)
4. System config (/etc/aaskit/config.toml)
5. Built-in defaults

Examples:
  aaskit config show               # Effective configuration, TOML
  aaskit config show --format json # Effective configuration, JSON
  aaskit config get store.path     # Single value by dotted key
  aaskit config validate           # Check the effective configuration
  aaskit config init               # Write a default user config file`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  "Render the configuration after merging all sources",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
	Long:  "Look up a single value by dotted key, e.g. store.path or sync.protocol",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective configuration",
	Long:  "Load all configuration sources and run the bounds checks",
	RunE:  runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Long: `Write a configuration file populated with the built-in defaults.

Without a path the file goes to ~/.aaskit/aaskit.toml. Refuses to clobber
an existing file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json")

	ConfigCmd.AddCommand(configShowCmd, configGetCmd, configValidateCmd, configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "loading configuration")
	}

	rendered, err := renderConfig(cfg, configFormat)
	if err != nil {
		return err
	}
	fmt.Print(rendered)
	return nil
}

// renderConfig encodes the merged configuration in the requested format.
func renderConfig(cfg *config.Config, format string) (string, error) {
	switch format {
	case "toml":
		var buf bytes.Buffer
		buf.WriteString("# AASKit configuration\n")
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return "", errors.Wrap(err, "encoding configuration as TOML")
		}
		return buf.String(), nil

	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return "", errors.Wrap(err, "encoding configuration as JSON")
		}
		return string(data) + "\n", nil

	default:
		return "", errors.Newf("unsupported format %q (toml or json)", format)
	}
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	// IsSet distinguishes a missing key from one holding a zero value.
	if !config.GetViper().IsSet(key) {
		err := errors.Newf("unknown configuration key %q", key)
		return errors.WithHint(err, "list all keys with 'aaskit config show'")
	}

	fmt.Println(config.Get(key))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "loading configuration")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration invalid")
	}

	pterm.Success.Println("Configuration valid")
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	if path == "" {
		path = config.UserConfigPath()
	}
	pterm.Success.Printf("Wrote default configuration to %s\n", path)
	return nil
}

// Package cmd implements the command-line interface for monkmode.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Lattixe/MonkMode-windows/internal/config"
)

// Config holds the global command-line flags
type Config struct {
	Verbose    bool
	ShowLogs   bool
	ConfigPath string
}

// NewConfigFromFlags creates a Config from parsed command flags
func NewConfigFromFlags(cmd *cobra.Command) *Config {
	// Try to get from local flags first, fall back to persistent flags
	verbose := getBoolFlag(cmd, "verbose")
	showLogs := getBoolFlag(cmd, "logs")
	configPath := getStringFlag(cmd, "config")

	return &Config{
		Verbose:    verbose,
		ShowLogs:   showLogs,
		ConfigPath: configPath,
	}
}

// getBoolFlag retrieves a boolean flag, checking both local and persistent flags
func getBoolFlag(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		// Try persistent flags if not found in local flags
		val, _ = cmd.PersistentFlags().GetBool(name)
	}

	return val
}

func getStringFlag(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		val, _ = cmd.PersistentFlags().GetString(name)
	}

	return val
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"verbose":       "log.verbose",
	"duration":      "session.duration",
	"task":          "session.task",
	"block-process": "block.processes",
	"block-domain":  "block.domains",
	"hide-taskbar":  "block.hide_taskbar",
}

// bindFlags binds every flag of cmd that has a configuration key. Viper only
// reports a bound flag as set once the user changed it.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}

		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}

	return nil
}

// loadAppConfig loads the configuration file and layers MONKMODE_* variables
// and the changed flags of cmd on top of it.
func loadAppConfig(cmd *cobra.Command, cfg *Config) (*config.Config, error) {
	app, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	config.BindEnv(v)

	if err := bindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}

	app.ApplyOverrides(v)

	if f := cmd.Flags().Lookup("serve"); f != nil && f.Changed {
		app.API.Enabled = true
		app.API.Addr = f.Value.String()
	}

	if err := app.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return app, nil
}

// Package commands implements the hlsim CLI: an in-process sandbox host
// for developing and exercising guest workloads without a hypervisor.
package commands

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/liangcheng-yu/hyperlight/internal/logger"
	"github.com/liangcheng-yu/hyperlight/pkg/config"
)

var (
	configFile string

	cfg     *config.Config
	cfgView *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "hlsim",
	Short: "In-process sandbox simulator",
	Long: `hlsim hosts guest workloads in-process: it lays out the sandbox
memory, advertises the builtin host functions, and drives guest
dispatches from scripted scenarios.

Configuration is read from --config (YAML or TOML) with HLSIM_*
environment variable overrides.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, cfgView, err = config.Load(configFile)
		if err != nil {
			return err
		}
		if err := logger.Init(logger.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		}); err != nil {
			return err
		}
		if configFile != "" {
			watchConfig()
		}
		return nil
	},
}

// watchConfig hot-reloads the log level when the config file changes.
// Sandbox sizes are fixed at creation and are not reloaded.
func watchConfig() {
	cfgView.OnConfigChange(func(e fsnotify.Event) {
		reloaded, err := config.Reload(cfgView)
		if err != nil {
			logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}
		cfg = reloaded
		logger.SetLevel(cfg.Logging.Level)
		logger.Info("config reloaded", "file", e.Name)
	})
	cfgView.WatchConfig()
}

// Execute runs the CLI.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(functionsCmd)
	rootCmd.AddCommand(versionCmd)
}

// Package commands implements the CLI commands for the courier processes.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/courierhq/courier/internal/logger"
	"github.com/courierhq/courier/pkg/config"
	"github.com/courierhq/courier/pkg/metrics"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Courier - internal message broker",
	Long: `Courier is an internal message broker. Client machines submit messages
over mutual TLS, messages are encrypted and registered in a durable store,
queued in Redis, and delivered by a pool of retrying workers. Operators
manage clients, users and messages through a JWT-protected portal API.

Each process runs as its own subcommand: "server" (registry API),
"gateway" (public ingress) and "worker" (delivery pool).

Use "courier [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/courier/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(keygenCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// InitMetrics enables metrics collection when configured.
func InitMetrics(cfg *config.Config) {
	if cfg.Metrics.Enabled {
		metrics.Init()
	}
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/turnstile/pkg/cli"
	"mercator-hq/turnstile/pkg/config"
	"mercator-hq/turnstile/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "turnstile",
	Short: "Turnstile - per-identity admission control",
	Long: `Turnstile admits or rejects requests per identity before they reach a
service.

Limiters are configured by name and use one of three strategies:
  - sliding_window_log: at most N requests per identity in any window
  - token_bucket: per-identity bursts refilled at a fixed rate
  - leaky_bucket: one global queue drained at a fixed rate

Decisions are served over an HTTP API, applied to proxied traffic in gateway
mode, exported as Prometheus metrics and optionally journaled to SQLite.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "turnstile.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load TURNSTILE_* variables from a dotenv file")
}

// loadConfig loads the configuration file with environment overrides,
// after reading --env-file if one was given.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return nil, cli.NewConfigError(envFile, err)
		}
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the telemetry section and
// installs it as the slog default.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	slog.SetDefault(logger)
	return logger, nil
}

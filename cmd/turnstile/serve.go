package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/turnstile/pkg/cli"
	"mercator-hq/turnstile/pkg/config"
	"mercator-hq/turnstile/pkg/server"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	watch         bool
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the turnstile server",
	Long: `Start the turnstile server with the specified configuration.

The server exposes the admission API, health probes and metrics. With
gateway.upstream set it also admits and forwards all other traffic.

Examples:
  # Start with default config
  turnstile serve

  # Start with custom config and reload limiters on change
  turnstile serve --config /etc/turnstile/turnstile.yaml --watch

  # Override listen address
  turnstile serve --listen 0.0.0.0:8080

  # Validate config and build limiters without starting the server
  turnstile serve --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVarP(&serveFlags.watch, "watch", "w", false, "reload limiters when the config file changes")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config and build limiters without serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	if serveFlags.dryRun {
		// Build the limiter set without opening the journal or a listener.
		dry := *cfg
		dry.Journal.Enabled = false
		srv, err := server.New(&dry, server.Options{Logger: logger, Version: versionInfo()})
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		_ = srv.Shutdown(context.Background())

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid (%d limiters: %s)\n",
			len(cfg.Limiters), strings.Join(limiterNames(cfg), ", "))
		return nil
	}

	srv, err := server.New(cfg, server.Options{
		ConfigPath: cfgFile,
		Watch:      serveFlags.watch,
		Version:    versionInfo(),
		Logger:     logger,
	})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	logger.Info("turnstile starting",
		"version", Version,
		"config", cfgFile,
		"watch", serveFlags.watch,
	)

	if err := srv.Run(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}

func limiterNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Limiters))
	for name := range cfg.Limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

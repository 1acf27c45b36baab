package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/config"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/observability"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/types"
)

// Exit codes for one-shot commands. Misconfiguration is distinguished
// from operational failure so supervisors can tell "fix the config"
// apart from "retry later".
const (
	exitSuccess       = 0
	exitError         = 1
	exitNotConfigured = 3
)

var (
	configPath string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "osint",
	Short: "Continuous OSINT monitoring service",
	Long: `osint runs bbot scans on a schedule, normalizes the findings, and
maintains an idempotent asset graph in Neo4j.

A central node owns the graph, the HTTP API, and the retention policy.
Worker nodes run scans and push their consolidated output to a central
node over HTTP.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal-aware context.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	loaded, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	logger = observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	ic := config.LoadInitConfig(cfg.InitConfigPath, logger)
	ic.Apply(cfg, logger)
	return nil
}

func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	var typed *types.Error
	if errors.As(err, &typed) {
		switch typed.Code {
		case types.UPLOAD_NOT_CONFIGURED, types.CONFIG_VALIDATION_FAILED:
			return exitNotConfigured
		}
	}
	return exitError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/app/config.yaml",
		"Path to the YAML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(versionCmd)
}

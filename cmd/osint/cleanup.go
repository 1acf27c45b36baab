package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/graph"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/store"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run one retention pass against the graph",
	Long: `Deletes events past the retention window, hosts offline past theirs,
and fully disconnected nodes. Runs the same passes the scheduler runs
after each cycle.`,
	RunE: runCleanup,
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	gc := graph.DefaultConfig()
	gc.URI = cfg.Graph.URI()
	gc.Username = cfg.Graph.Username
	gc.Password = cfg.Graph.Password
	gc.Database = cfg.Graph.Database

	client, err := graph.NewNeo4jClient(gc)
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close(context.Background())

	cleanup := store.NewCleanup(client, store.CleanupPolicy{
		Enabled:                  true,
		EventRetentionDays:       cfg.Cleanup.EventRetentionDays,
		OfflineHostRetentionDays: cfg.Cleanup.OfflineHostRetentionDays,
		OrphanSweepEnabled:       cfg.Cleanup.OrphanSweepEnabled,
	}, logger)

	stats, err := cleanup.Run(ctx, time.Now())
	if err != nil {
		return err
	}
	logger.Info("retention pass finished",
		"events_deleted", stats.EventsDeleted,
		"hosts_deleted", stats.OfflineHostsDeleted,
		"orphans_deleted", stats.OrphansDeleted)
	return nil
}

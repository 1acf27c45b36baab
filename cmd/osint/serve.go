package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/artifact"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/config"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/graph"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/notify"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/scanner"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/sched"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/server"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/store"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/upload"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring service",
	Long: `Runs the continuous scan scheduler and, on a central node, the HTTP
API and the graph ingest pipeline. The process exits cleanly on SIGINT
or SIGTERM, letting in-flight scans and imports finish.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger.Info("starting osint service", "role", cfg.Role)

	schedOpts := sched.Options{
		Role:     cfg.Role,
		Targets:  cfg.Targets,
		Scan:     cfg.Scan,
		Engine:   scanner.NewBBotEngine(cfg.Scan.Binary, logger),
		Resolver: artifact.NewResolver(cfg.Scan.ScanRoots, logger),
		Notifier: notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger),
		Logger:   logger,
	}
	srvOpts := server.Options{
		Config:       cfg.API,
		WorkerTokens: cfg.WorkerTokens,
		Info: server.StatusInfo{
			Role:           cfg.Role,
			Targets:        cfg.Targets,
			CleanupEnabled: cfg.Cleanup.Enabled,
		},
		Logger: logger,
	}

	var client graph.Client
	if cfg.Role == config.RoleCentral {
		gc := graph.DefaultConfig()
		gc.URI = cfg.Graph.URI()
		gc.Username = cfg.Graph.Username
		gc.Password = cfg.Graph.Password
		gc.Database = cfg.Graph.Database

		neo, err := graph.NewNeo4jClient(gc)
		if err != nil {
			return err
		}
		if err := neo.Connect(ctx); err != nil {
			return err
		}
		client = neo
		defer client.Close(context.Background())

		// Constraint creation requires write privileges; a failure is
		// logged but does not block startup.
		if err := store.EnsureConstraints(ctx, client); err != nil {
			logger.Warn("constraint setup failed", "error", err)
		}

		writer := store.NewWriter(client, logger)
		importer := artifact.NewImporter(writer, logger)
		schedOpts.Importer = importer
		schedOpts.Cleanup = store.NewCleanup(client, store.CleanupPolicy{
			Enabled:                  cfg.Cleanup.Enabled,
			EventRetentionDays:       cfg.Cleanup.EventRetentionDays,
			OfflineHostRetentionDays: cfg.Cleanup.OfflineHostRetentionDays,
			OrphanSweepEnabled:       cfg.Cleanup.OrphanSweepEnabled,
		}, logger)

		srvOpts.Store = store.NewQueries(client)
		srvOpts.Ingestor = importer
		srvOpts.Health = client
	} else {
		schedOpts.Uploader = upload.NewClient(upload.Config{
			URL:         cfg.Upload.CentralURL,
			WorkerID:    cfg.Upload.WorkerID,
			WorkerToken: cfg.Upload.WorkerToken,
			Compress:    cfg.Upload.Compress,
			VerifyTLS:   cfg.Upload.VerifyTLS,
			Timeout:     cfg.Upload.Timeout,
		}, logger)
	}

	scheduler := sched.New(schedOpts)
	if len(cfg.Targets) > 0 {
		scheduler.Start()
	} else {
		logger.Warn("no targets configured, scheduler idle")
	}

	var srv *server.Server
	errCh := make(chan error, 1)
	if cfg.Role == config.RoleCentral {
		srvOpts.Status = scheduler
		srv = server.New(srvOpts)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
		scheduler.Stop()
		return err
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown incomplete", "error", err)
		}
	}
	scheduler.Stop()
	logger.Info("osint service stopped")
	return nil
}

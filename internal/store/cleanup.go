package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/graph"
)

// cleanupBatchSize caps each delete transaction; passes loop in batches
// until a batch deletes nothing.
const cleanupBatchSize = 10000

// CleanupPolicy gates the three retention passes. A retention window
// of zero or less disables that pass.
type CleanupPolicy struct {
	Enabled                  bool
	EventRetentionDays       int
	OfflineHostRetentionDays int
	OrphanSweepEnabled       bool
}

// CleanupStats reports what one cleanup invocation removed.
type CleanupStats struct {
	EventsDeleted       int `json:"events_deleted"`
	OfflineHostsDeleted int `json:"offline_hosts_deleted"`
	OrphansDeleted      int `json:"orphans_deleted"`
}

// Cleanup deletes graph data past its retention window. The orphan
// sweep runs last because the first two passes create new orphans.
type Cleanup struct {
	client graph.Client
	policy CleanupPolicy
	logger *slog.Logger
}

// NewCleanup creates a retention cleanup engine.
func NewCleanup(client graph.Client, policy CleanupPolicy, logger *slog.Logger) *Cleanup {
	return &Cleanup{client: client, policy: policy, logger: logger}
}

// Run executes the enabled passes in order and returns the totals.
// The first store error aborts the invocation; partial stats are still
// returned.
func (c *Cleanup) Run(ctx context.Context, now time.Time) (CleanupStats, error) {
	var stats CleanupStats
	if !c.policy.Enabled {
		return stats, nil
	}

	if c.policy.EventRetentionDays > 0 {
		threshold := now.Unix() - int64(c.policy.EventRetentionDays)*86400
		n, err := c.deleteBatches(ctx,
			"MATCH (ev:Event) WHERE ev.ts IS NOT NULL AND ev.ts < $threshold WITH ev LIMIT $batch DETACH DELETE ev",
			map[string]any{"threshold": threshold})
		stats.EventsDeleted = n
		if err != nil {
			return stats, err
		}
	}

	if c.policy.OfflineHostRetentionDays > 0 {
		threshold := now.Unix() - int64(c.policy.OfflineHostRetentionDays)*86400
		n, err := c.deleteBatches(ctx,
			"MATCH (h:Host) WHERE h.status = 'offline' AND h.last_seen_ts IS NOT NULL AND h.last_seen_ts < $threshold WITH h LIMIT $batch DETACH DELETE h",
			map[string]any{"threshold": threshold})
		stats.OfflineHostsDeleted = n
		if err != nil {
			return stats, err
		}
	}

	if c.policy.OrphanSweepEnabled {
		n, err := c.deleteBatches(ctx,
			"MATCH (n) WHERE COUNT { (n)--() } = 0 WITH n LIMIT $batch DETACH DELETE n",
			map[string]any{})
		stats.OrphansDeleted = n
		if err != nil {
			return stats, err
		}
	}

	c.logger.Info("cleanup finished",
		"events_deleted", stats.EventsDeleted,
		"offline_hosts_deleted", stats.OfflineHostsDeleted,
		"orphans_deleted", stats.OrphansDeleted)

	return stats, nil
}

func (c *Cleanup) deleteBatches(ctx context.Context, cypher string, params map[string]any) (int, error) {
	total := 0
	for {
		batchParams := map[string]any{"batch": cleanupBatchSize}
		for k, v := range params {
			batchParams[k] = v
		}
		res, err := c.client.Write(ctx, cypher, batchParams)
		if err != nil {
			return total, err
		}
		total += res.NodesDeleted
		if res.NodesDeleted < cleanupBatchSize {
			return total, nil
		}
	}
}

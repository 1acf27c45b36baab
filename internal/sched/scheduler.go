// Package sched runs the continuous scan loop: scan every target,
// locate the artifacts each scan produced, and hand them to the graph
// importer (central role) or the upload client (worker role).
package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/config"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/finding"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/notify"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/scanner"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/store"
)

// Importer lands scan artifacts in the graph.
type Importer interface {
	ImportDir(ctx context.Context, dir, defaultDomain string) (int, error)
}

// Uploader pushes scan artifacts to a central node.
type Uploader interface {
	UploadDir(ctx context.Context, dir, defaultDomain, scanName string) (int, error)
}

// CleanupRunner applies the retention policy after a cycle.
type CleanupRunner interface {
	Run(ctx context.Context, now time.Time) (store.CleanupStats, error)
}

// DirResolver locates scan output directories.
type DirResolver interface {
	ListScanDirs() []string
	DirsByScanName(name string, maxAge time.Duration, limit int) []string
	BestDirs(target string, maxAge time.Duration, limit int) []string
}

// CycleStats summarizes the most recent completed cycle.
type CycleStats struct {
	Cycle      int       `json:"cycle"`
	Targets    int       `json:"targets"`
	Events     int       `json:"events"`
	Imported   int       `json:"imported"`
	FinishedAt time.Time `json:"finished_at"`
}

// Options wires a Scheduler. Importer and Cleanup are used on a central
// node, Uploader on a worker; the unused side may be nil.
type Options struct {
	Role     string
	Targets  []string
	Scan     config.ScanConfig
	Engine   scanner.Engine
	Resolver DirResolver
	Importer Importer
	Uploader Uploader
	Cleanup  CleanupRunner
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// Scheduler drives the continuous scan cycle. A running scan is never
// interrupted: Stop prevents new work and waits for in-flight scans and
// dispatched imports to finish.
type Scheduler struct {
	opts Options

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	last     CycleStats
	imported int

	loopWG sync.WaitGroup
	taskWG sync.WaitGroup
}

func New(opts Options) *Scheduler {
	return &Scheduler{opts: opts}
}

// Start launches the cycle loop. Starting a running scheduler is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.loopWG.Add(1)
	go s.loop(s.stopCh)
	s.opts.Logger.Info("scheduler started",
		"role", s.opts.Role, "targets", len(s.opts.Targets))
}

// Stop signals the loop and blocks until the current scan and all
// dispatched import tasks complete. Stopping a stopped scheduler is a
// no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.loopWG.Wait()
	s.taskWG.Wait()
	s.opts.Logger.Info("scheduler stopped")
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastCycle returns stats for the most recent completed cycle.
func (s *Scheduler) LastCycle() CycleStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) loop(stopCh chan struct{}) {
	defer s.loopWG.Done()

	cycle := 0
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		cycle++
		stats := s.runCycle(cycle, stopCh)

		s.mu.Lock()
		s.last = stats
		s.mu.Unlock()

		s.notifyCycle(stats)

		if !s.sleep(s.opts.Scan.CycleSleep, stopCh) {
			return
		}
	}
}

func (s *Scheduler) runCycle(cycle int, stopCh chan struct{}) CycleStats {
	log := s.opts.Logger.With("cycle", cycle)
	log.Info("cycle starting", "targets", len(s.opts.Targets))

	s.mu.Lock()
	s.imported = 0
	s.mu.Unlock()

	stats := CycleStats{Cycle: cycle, Targets: len(s.opts.Targets)}
	for i, target := range s.opts.Targets {
		select {
		case <-stopCh:
			stats.FinishedAt = time.Now()
			return stats
		default:
		}

		events := s.runTarget(target, log)
		stats.Events += events

		if i < len(s.opts.Targets)-1 {
			if !s.sleep(s.opts.Scan.TargetSleep, stopCh) {
				stats.FinishedAt = time.Now()
				return stats
			}
		}
	}

	// Imports are dispatched asynchronously per target; wait so the
	// cycle summary and retention pass see their results.
	s.taskWG.Wait()

	s.mu.Lock()
	stats.Imported = s.imported
	s.mu.Unlock()

	if s.opts.Cleanup != nil {
		if cs, err := s.opts.Cleanup.Run(context.Background(), time.Now()); err != nil {
			log.Error("retention pass failed", "error", err)
		} else {
			log.Info("retention pass finished",
				"events_deleted", cs.EventsDeleted,
				"hosts_deleted", cs.OfflineHostsDeleted,
				"orphans_deleted", cs.OrphansDeleted)
		}
	}

	stats.FinishedAt = time.Now()
	log.Info("cycle finished", "events", stats.Events, "imported", stats.Imported)
	return stats
}

// runTarget scans one target to completion and dispatches artifact
// processing in the background. Returns the number of events streamed
// by the engine.
func (s *Scheduler) runTarget(target string, log *slog.Logger) int {
	// Run id ties scan, artifact, and import log lines together.
	log = log.With("target", target, "run_id", uuid.NewString())

	before := toSet(s.opts.Resolver.ListScanDirs())

	req := scanner.ScanRequest{
		Targets:            []string{target},
		Presets:            s.opts.Scan.Defaults.Presets,
		Flags:              s.opts.Scan.Defaults.Flags,
		MaxWorkers:         s.opts.Scan.Defaults.MaxWorkers,
		SpiderDepth:        s.opts.Scan.Defaults.SpiderDepth,
		SpiderDistance:     s.opts.Scan.Defaults.SpiderDistance,
		SpiderLinksPerPage: s.opts.Scan.Defaults.SpiderLinksPerPage,
		AllowDeadly:        s.opts.Scan.Defaults.AllowDeadly,
	}

	records, err := s.opts.Engine.Scan(context.Background(), req)
	if err != nil {
		log.Error("scan start failed", "error", err)
		return 0
	}

	events := 0
	scanName := ""
	for raw := range records {
		events++
		if f, ok := finding.Normalize(raw); ok && f.Kind == finding.KindScan {
			if name := f.Str(finding.AttrScanName); name != "" {
				scanName = name
			}
		}
	}
	log.Info("scan finished", "events", events, "scan_name", scanName)

	s.taskWG.Add(1)
	go s.processArtifacts(target, scanName, before, log)

	return events
}

// processArtifacts waits for the engine to settle its output directory,
// then imports or uploads whatever the scan produced.
func (s *Scheduler) processArtifacts(target, scanName string, before map[string]struct{}, log *slog.Logger) {
	defer s.taskWG.Done()

	time.Sleep(s.opts.Scan.DetectDelay)
	dirs := diffDirs(s.opts.Resolver.ListScanDirs(), before)
	time.Sleep(s.opts.Scan.ReadDelay)

	if len(dirs) == 0 {
		// The engine may have reused an existing directory. Fall back
		// to ranking: by scan name when we captured one, else by
		// target content within the freshness window.
		if scanName != "" {
			dirs = s.opts.Resolver.DirsByScanName(scanName, s.opts.Scan.DirMaxAge, 1)
		}
		if len(dirs) == 0 {
			dirs = s.opts.Resolver.BestDirs(target, s.opts.Scan.DirMaxAge, 1)
		}
	}
	if len(dirs) == 0 {
		log.Warn("no scan directory found for target")
		return
	}

	imported := 0
	for _, dir := range dirs {
		n, err := s.processDir(dir, target, scanName)
		if err != nil {
			log.Error("artifact processing failed", "dir", dir, "error", err)
			continue
		}
		imported += n
	}
	log.Info("artifacts processed", "dirs", len(dirs), "imported", imported)

	s.mu.Lock()
	s.imported += imported
	s.mu.Unlock()
}

func (s *Scheduler) processDir(dir, target, scanName string) (int, error) {
	ctx := context.Background()
	if s.opts.Role == config.RoleWorker {
		return s.opts.Uploader.UploadDir(ctx, dir, target, scanName)
	}
	return s.opts.Importer.ImportDir(ctx, dir, target)
}

func (s *Scheduler) notifyCycle(stats CycleStats) {
	if s.opts.Notifier == nil {
		return
	}
	msg := fmt.Sprintf("OSINT cycle %d finished: %d targets, %d events, %d findings imported",
		stats.Cycle, stats.Targets, stats.Events, stats.Imported)
	s.opts.Notifier.Notify(context.Background(), msg)
}

// sleep waits for d or until stop, reporting false when stopped.
func (s *Scheduler) sleep(d time.Duration, stopCh chan struct{}) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stopCh:
		return false
	}
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func diffDirs(current []string, before map[string]struct{}) []string {
	var fresh []string
	for _, dir := range current {
		if _, ok := before[dir]; !ok {
			fresh = append(fresh, dir)
		}
	}
	return fresh
}

package scanner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/finding"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/types"
)

// BBotEngine runs bbot as a subprocess and adapts its JSON event stream
// to RawRecords. Artifact files land in bbot's own scans directory; the
// scheduler picks them up from there, the live stream is only consumed
// for counting and scan-name capture.
type BBotEngine struct {
	binary string
	logger *slog.Logger
}

// NewBBotEngine creates an engine invoking the given bbot binary.
func NewBBotEngine(binary string, logger *slog.Logger) *BBotEngine {
	if binary == "" {
		binary = "bbot"
	}
	return &BBotEngine{binary: binary, logger: logger}
}

// Scan starts the subprocess and streams its stdout records. The
// channel closes when the scan exits; a non-zero exit after a started
// stream is logged, not surfaced, since partial output is still useful.
func (e *BBotEngine) Scan(ctx context.Context, req ScanRequest) (<-chan finding.RawRecord, error) {
	if len(req.Targets) == 0 {
		return nil, types.NewError(types.SCAN_START_FAILED, "no targets given")
	}

	cmd := exec.CommandContext(ctx, e.binary, buildArgs(req)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, types.WrapError(types.SCAN_START_FAILED, "stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, types.WrapError(types.SCAN_START_FAILED, "start bbot", err)
	}

	records := make(chan finding.RawRecord)
	go func() {
		defer close(records)

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			rec, ok := recordFromLine(scanner.Bytes())
			if !ok {
				continue
			}
			select {
			case records <- rec:
			case <-ctx.Done():
				_ = cmd.Wait()
				return
			}
		}
		if err := cmd.Wait(); err != nil {
			e.logger.Warn("bbot exited with error", "targets", req.Targets, "error", err)
		}
	}()

	return records, nil
}

// buildArgs maps a ScanRequest onto the bbot command line.
func buildArgs(req ScanRequest) []string {
	args := []string{"--json", "-y"}
	for _, t := range req.Targets {
		args = append(args, "-t", t)
	}
	for _, p := range req.Presets {
		args = append(args, "-p", p)
	}
	flags := req.Flags
	if req.AllowDeadly {
		flags = append(append([]string{}, flags...), "allow-deadly")
	}
	for _, f := range flags {
		args = append(args, "-f", f)
	}
	if req.MaxWorkers > 0 {
		args = append(args, "-c", fmt.Sprintf("engine.max_workers=%d", req.MaxWorkers))
	}
	if req.SpiderDepth > 0 {
		args = append(args, "-c", fmt.Sprintf("web.spider_depth=%d", req.SpiderDepth))
	}
	if req.SpiderDistance > 0 {
		args = append(args, "-c", fmt.Sprintf("web.spider_distance=%d", req.SpiderDistance))
	}
	if req.SpiderLinksPerPage > 0 {
		args = append(args, "-c", fmt.Sprintf("web.spider_links_per_page=%d", req.SpiderLinksPerPage))
	}
	return args
}

// recordFromLine is the single adapter from engine output to the
// canonical record shape. Non-JSON lines (progress output, warnings)
// are dropped.
func recordFromLine(line []byte) (finding.RawRecord, bool) {
	var rec map[string]any
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, false
	}
	if len(rec) == 0 {
		return nil, false
	}
	return finding.RawRecord(rec), true
}

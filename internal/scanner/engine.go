package scanner

import (
	"context"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/finding"
)

// ScanRequest describes one scan-engine invocation.
type ScanRequest struct {
	Targets            []string
	Presets            []string
	Flags              []string
	MaxWorkers         int
	SpiderDepth        int
	SpiderDistance     int
	SpiderLinksPerPage int
	AllowDeadly        bool
}

// DefaultScanRequest returns the engine defaults used when the operator
// configures nothing.
func DefaultScanRequest() ScanRequest {
	return ScanRequest{
		Presets:            []string{"subdomain-enum"},
		MaxWorkers:         2,
		SpiderDepth:        2,
		SpiderDistance:     1,
		SpiderLinksPerPage: 10,
	}
}

// Engine is the scan-execution boundary. The engine is a black box:
// given a request it emits a stream of raw records and closes the
// channel when the scan completes. Everything engine-specific is
// adapted to finding.RawRecord here; nothing past this interface ever
// touches engine types.
type Engine interface {
	Scan(ctx context.Context, req ScanRequest) (<-chan finding.RawRecord, error)
}

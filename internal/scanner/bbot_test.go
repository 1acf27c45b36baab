package scanner

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgs(t *testing.T) {
	req := ScanRequest{
		Targets:            []string{"example.com", "example.org"},
		Presets:            []string{"subdomain-enum"},
		Flags:              []string{"passive"},
		MaxWorkers:         2,
		SpiderDepth:        2,
		SpiderDistance:     1,
		SpiderLinksPerPage: 10,
		AllowDeadly:        true,
	}

	args := buildArgs(req)

	assert.Contains(t, args, "--json")
	assert.Contains(t, args, "-y")
	assert.Contains(t, args, "example.com")
	assert.Contains(t, args, "example.org")
	assert.Contains(t, args, "subdomain-enum")
	assert.Contains(t, args, "passive")
	assert.Contains(t, args, "allow-deadly")
	assert.Contains(t, args, "engine.max_workers=2")
	assert.Contains(t, args, "web.spider_depth=2")
}

func TestBuildArgs_AllowDeadlyDoesNotMutateFlags(t *testing.T) {
	req := ScanRequest{Targets: []string{"example.com"}, Flags: []string{"passive"}, AllowDeadly: true}
	_ = buildArgs(req)
	assert.Equal(t, []string{"passive"}, req.Flags)
}

func TestRecordFromLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		ok   bool
	}{
		{name: "event json", line: `{"type":"DNS_NAME","data":{"name":"a.example.com"}}`, ok: true},
		{name: "progress noise", line: `[INFO] modules loaded`, ok: false},
		{name: "empty object", line: `{}`, ok: false},
		{name: "blank", line: ``, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := recordFromLine([]byte(tt.line))
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, "DNS_NAME", rec["type"])
			}
		})
	}
}

func TestBBotEngine_RequiresTargets(t *testing.T) {
	e := NewBBotEngine("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := e.Scan(context.Background(), ScanRequest{})
	require.Error(t, err)
}

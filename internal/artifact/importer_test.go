package artifact

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/finding"
)

// captureWriter records findings instead of writing to a store.
type captureWriter struct {
	mu       sync.Mutex
	findings []finding.Finding
	err      error
}

func (c *captureWriter) Write(ctx context.Context, f finding.Finding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.findings = append(c.findings, f)
	return nil
}

func (c *captureWriter) byKind(kind finding.Kind) []finding.Finding {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []finding.Finding
	for _, f := range c.findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func TestImporter_NDJSONConsolidatedOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConsolidatedOutput,
		`{"type":"DNS_NAME","module":"subfinder","data":{"name":"api.example.com"}}
{"type":"OPEN_TCP_PORT","data":{"host":"api.example.com","port":443}}
not json at all
{"type":"MYSTERY_THING","data":{"x":1}}
`)

	w := &captureWriter{}
	im := NewImporter(w, testLogger())

	n, err := im.ImportDir(context.Background(), dir, "example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "bad line and unknown kind are skipped, not fatal")

	ports := w.byKind(finding.KindOpenPort)
	require.Len(t, ports, 1)
	assert.Equal(t, "api.example.com:443", ports[0].Str(finding.AttrEndpoint))
	assert.Equal(t, "example.com", ports[0].Str(finding.AttrDomain), "default domain fills the gap")
}

func TestImporter_SingleJSONDocumentShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{
			name:    "array",
			payload: `[{"type":"DNS_NAME","data":{"name":"a.example.com"}},{"type":"DNS_NAME","data":{"name":"b.example.com"}}]`,
			want:    2,
		},
		{
			name:    "object with events key",
			payload: `{"events":[{"type":"IP_ADDRESS","data":{"ip":"10.0.0.1"}}]}`,
			want:    1,
		},
		{
			name:    "bare object is one record",
			payload: `{"type":"URL","data":{"url":"https://example.com"}}`,
			want:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, ConsolidatedOutput, tt.payload)

			w := &captureWriter{}
			n, err := NewImporter(w, testLogger()).ImportDir(context.Background(), dir, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestImporter_PlainLists(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, SubdomainList, "api.example.com\n\n# comment\nwww.example.com\n")
	writeFile(t, dir, EmailList, "admin@example.com\n")

	w := &captureWriter{}
	n, err := NewImporter(w, testLogger()).ImportDir(context.Background(), dir, "example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Len(t, w.byKind(finding.KindDNSName), 2)
	emails := w.byKind(finding.KindEmail)
	require.Len(t, emails, 1)
	assert.Equal(t, "admin@example.com", emails[0].Str(finding.AttrEmail))
}

func TestImporter_CSVOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, CSVOutput,
		"Host,Port,Technology\n"+
			"api.example.com,443,\n"+
			"www.example.com,,nginx\n"+
			",,\n")

	w := &captureWriter{}
	n, err := NewImporter(w, testLogger()).ImportDir(context.Background(), dir, "example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "empty row is skipped")

	ports := w.byKind(finding.KindOpenPort)
	require.Len(t, ports, 1)
	assert.Equal(t, "api.example.com:443", ports[0].Str(finding.AttrEndpoint))

	techs := w.byKind(finding.KindTechnology)
	require.Len(t, techs, 1)
	assert.Equal(t, "nginx", techs[0].Str(finding.AttrTechnology))
}

func TestImporter_ASNTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ASNTablePrefix+"example.txt",
		"AS13335, Cloudflare\n"+
			"AS15169\tGoogle LLC\n"+
			"AS64512\n"+
			"13335 no prefix\n"+
			"# comment\n")

	w := &captureWriter{}
	n, err := NewImporter(w, testLogger()).ImportDir(context.Background(), dir, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	asns := w.byKind(finding.KindASN)
	require.Len(t, asns, 3)
	assert.Equal(t, "13335", asns[0].Str(finding.AttrASN))
	assert.Equal(t, "Cloudflare", asns[0].Str(finding.AttrASNName))
	assert.Equal(t, "Google LLC", asns[1].Str(finding.AttrASNName))
}

func TestImporter_FileFailureDoesNotAbortOthers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, CSVOutput, "") // unreadable header
	writeFile(t, dir, SubdomainList, "api.example.com\n")

	w := &captureWriter{}
	n, err := NewImporter(w, testLogger()).ImportDir(context.Background(), dir, "example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "broken CSV must not stop the subdomain list")
}

func TestImporter_MissingDirectory(t *testing.T) {
	w := &captureWriter{}
	_, err := NewImporter(w, testLogger()).ImportDir(context.Background(), "/nonexistent/scan", "")
	require.Error(t, err)
}

func TestImporter_WriteErrorsCountAsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, SubdomainList, "api.example.com\n")

	w := &captureWriter{err: errors.New("store down")}
	n, err := NewImporter(w, testLogger()).ImportDir(context.Background(), dir, "")
	require.NoError(t, err, "per-record write failures do not fail the directory")
	assert.Zero(t, n)
}

func TestImporter_ImportBytes(t *testing.T) {
	payload := []byte(`{"type":"DNS_NAME","data":{"name":"api.example.com"}}
{"type":"OPEN_TCP_PORT","data":{"host":"api.example.com","port":8443}}
`)
	w := &captureWriter{}
	n, err := NewImporter(w, testLogger()).ImportBytes(context.Background(), payload, "example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

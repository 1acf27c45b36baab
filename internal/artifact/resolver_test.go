package artifact

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func scanDir(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func TestResolver_ListScanDirs(t *testing.T) {
	root := t.TempDir()
	scanDir(t, root, "scan_b")
	scanDir(t, root, "scan_a")
	writeFile(t, root, "not-a-dir.txt", "x")

	r := NewResolver([]string{root, filepath.Join(root, "missing")}, testLogger())
	dirs := r.ListScanDirs()

	require.Len(t, dirs, 2)
	assert.Equal(t, filepath.Join(root, "scan_a"), dirs[0])
	assert.Equal(t, filepath.Join(root, "scan_b"), dirs[1])
}

func TestResolver_ContentBeatsRecency(t *testing.T) {
	root := t.TempDir()

	match := scanDir(t, root, "old_match")
	writeFile(t, match, ConsolidatedOutput, `{"type":"DNS_NAME","data":{"name":"api.example.com"}}`)
	old := time.Now().Add(-30 * time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(match, ConsolidatedOutput), old, old))

	fresh := scanDir(t, root, "fresh_other")
	writeFile(t, fresh, ConsolidatedOutput, `{"type":"DNS_NAME","data":{"name":"api.other.net"}}`)

	empty := scanDir(t, root, "empty")
	_ = empty

	r := NewResolver([]string{root}, testLogger())
	dirs := r.BestDirs("example.com", time.Hour, 5)

	require.Len(t, dirs, 1, "only the content-matching directory qualifies")
	assert.Equal(t, match, dirs[0])
}

func TestResolver_ScoringWeights(t *testing.T) {
	root := t.TempDir()

	logOnly := scanDir(t, root, "log_only")
	writeFile(t, logOnly, ScanLog, "Scan cosmic_rhino completed for example.com\n")

	subsOnly := scanDir(t, root, "subs_only")
	writeFile(t, subsOnly, SubdomainList, "api.example.com\nwww.example.com\n")

	both := scanDir(t, root, "both")
	writeFile(t, both, ScanLog, "targeting example.com\n")
	writeFile(t, both, EmailList, "admin@example.com\n")

	r := NewResolver([]string{root}, testLogger())
	dirs := r.BestDirs("example.com", 0, 0)

	// both = 80+20 = 100, log_only = 80, subs_only = 60
	require.Len(t, dirs, 3)
	assert.Equal(t, both, dirs[0])
	assert.Equal(t, logOnly, dirs[1])
	assert.Equal(t, subsOnly, dirs[2])
}

func TestResolver_StrictSubdomainMatch(t *testing.T) {
	root := t.TempDir()

	sub := scanDir(t, root, "sub")
	writeFile(t, sub, SubdomainList, "api.example.com\n")

	lookalike := scanDir(t, root, "lookalike")
	writeFile(t, lookalike, SubdomainList, "notexample.com\n")

	r := NewResolver([]string{root}, testLogger())
	dirs := r.BestDirs("example.com", 0, 0)

	require.Len(t, dirs, 1, "suffix match requires a dot boundary")
	assert.Equal(t, sub, dirs[0])
}

func TestResolver_AgeWindowExcludesStaleDirs(t *testing.T) {
	root := t.TempDir()

	stale := scanDir(t, root, "stale")
	path := writeFile(t, stale, ConsolidatedOutput, "example.com")
	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	r := NewResolver([]string{root}, testLogger())
	assert.Empty(t, r.BestDirs("example.com", time.Hour, 0))
	assert.Len(t, r.BestDirs("example.com", 4*time.Hour, 0), 1)
	assert.Len(t, r.BestDirs("example.com", 0, 0), 1, "zero window disables the age check")
}

func TestResolver_DirsByScanName(t *testing.T) {
	root := t.TempDir()

	named := scanDir(t, root, "cosmic_rhino")
	writeFile(t, named, ConsolidatedOutput, "{}")

	logged := scanDir(t, root, "scan_20260830")
	writeFile(t, logged, ScanLog, "2026-08-30 Scan cosmic_rhino started\n")

	unrelated := scanDir(t, root, "other")
	writeFile(t, unrelated, ScanLog, "Scan lazy_walrus started\n")

	r := NewResolver([]string{root}, testLogger())
	dirs := r.DirsByScanName("cosmic_rhino", time.Hour, 0)

	require.Len(t, dirs, 2)
	assert.Equal(t, named, dirs[0], "literal directory name outranks a log mention")
	assert.Equal(t, logged, dirs[1])
}

func TestResolver_DirsByScanNameLimit(t *testing.T) {
	root := t.TempDir()
	scanDir(t, root, "wild_fox")
	other := scanDir(t, root, "wild_fox_log")
	writeFile(t, other, ScanLog, "Scan wild_fox started\n")

	r := NewResolver([]string{root}, testLogger())
	assert.Len(t, r.DirsByScanName("wild_fox", 0, 1), 1)
}

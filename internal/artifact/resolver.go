package artifact

import (
	"bufio"
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Well-known filenames inside a scan-output directory.
const (
	ConsolidatedOutput = "output.json"
	NDJSONOutput       = "output.ndjson"
	CSVOutput          = "output.csv"
	SubdomainList      = "subdomains.txt"
	EmailList          = "emails.txt"
	ScanLog            = "scan.log"
	ASNTablePrefix     = "asns-table-"
)

// Content-match weights for directory scoring. The consolidated output
// is the strongest signal; an email list entry the weakest.
const (
	scoreConsolidated = 100
	scoreScanLog      = 80
	scoreSubdomains   = 60
	scoreCSV          = 50
	scoreEmails       = 20
)

// Resolver locates the scan-output directory most likely produced for a
// given target or scan name among all known scan roots. Matching is
// content-based; recency only breaks ties and enforces the age window.
type Resolver struct {
	roots  []string
	logger *slog.Logger
}

// NewResolver creates a resolver over the given scan root directories.
func NewResolver(roots []string, logger *slog.Logger) *Resolver {
	return &Resolver{roots: roots, logger: logger}
}

// ListScanDirs returns every scan-output directory currently present
// under the configured roots. Used by the scheduler for before/after
// snapshots when detecting freshly written directories.
func (r *Resolver) ListScanDirs() []string {
	var dirs []string
	for _, root := range r.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, filepath.Join(root, e.Name()))
			}
		}
	}
	sort.Strings(dirs)
	return dirs
}

type scoredDir struct {
	path    string
	score   int
	modTime time.Time
}

// BestDirs returns up to limit directories scoring highest for target,
// most relevant first. Directories with no indicative content and
// directories whose best-matching file is older than maxAge (when
// maxAge > 0) are excluded.
func (r *Resolver) BestDirs(target string, maxAge time.Duration, limit int) []string {
	return r.rank(maxAge, limit, func(dir string) (int, time.Time) {
		return scoreDirForTarget(dir, target)
	})
}

// DirsByScanName returns directories belonging to an exactly named scan:
// directories literally named after the scan, or whose scan log mentions
// "Scan <name> ".
func (r *Resolver) DirsByScanName(name string, maxAge time.Duration, limit int) []string {
	marker := "Scan " + name + " "
	return r.rank(maxAge, limit, func(dir string) (int, time.Time) {
		if filepath.Base(dir) == name {
			if mt, ok := newestKnownFile(dir); ok {
				return scoreConsolidated, mt
			}
			if info, err := os.Stat(dir); err == nil {
				return scoreConsolidated, info.ModTime()
			}
			return 0, time.Time{}
		}
		logPath := filepath.Join(dir, ScanLog)
		if fileContains(logPath, marker) {
			if info, err := os.Stat(logPath); err == nil {
				return scoreScanLog, info.ModTime()
			}
		}
		return 0, time.Time{}
	})
}

func (r *Resolver) rank(maxAge time.Duration, limit int, score func(dir string) (int, time.Time)) []string {
	now := time.Now()
	var scored []scoredDir
	for _, dir := range r.ListScanDirs() {
		s, mt := score(dir)
		if s <= 0 {
			continue
		}
		if maxAge > 0 && now.Sub(mt) > maxAge {
			r.logger.Debug("scan dir outside age window", "dir", dir, "mod_time", mt)
			continue
		}
		scored = append(scored, scoredDir{path: dir, score: s, modTime: mt})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].modTime.After(scored[j].modTime)
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.path
	}
	return out
}

// scoreDirForTarget sums the content-match weights for one directory.
// The returned time is the modification time of the highest-weight file
// that matched; it anchors the age window so a high mtime on an
// unrelated file cannot keep a stale match alive.
func scoreDirForTarget(dir, target string) (int, time.Time) {
	type check struct {
		file   string
		weight int
		match  func(path string) bool
	}
	checks := []check{
		{ConsolidatedOutput, scoreConsolidated, func(p string) bool { return fileContains(p, target) }},
		{ScanLog, scoreScanLog, func(p string) bool { return fileContains(p, target) }},
		{SubdomainList, scoreSubdomains, func(p string) bool { return listHasSubdomainOf(p, target) }},
		{CSVOutput, scoreCSV, func(p string) bool { return fileContains(p, target) }},
		{EmailList, scoreEmails, func(p string) bool { return fileContains(p, "@"+target) }},
	}

	total := 0
	var best time.Time
	bestWeight := 0
	for _, c := range checks {
		path := filepath.Join(dir, c.file)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if !c.match(path) {
			continue
		}
		total += c.weight
		if c.weight > bestWeight {
			bestWeight = c.weight
			best = info.ModTime()
		}
	}
	return total, best
}

// fileContains reports whether the file contains the literal substring.
// Reads are bounded per line, so large consolidated outputs stream.
func fileContains(path, needle string) bool {
	if needle == "" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	needleBytes := []byte(needle)
	for scanner.Scan() {
		if bytes.Contains(scanner.Bytes(), needleBytes) {
			return true
		}
	}
	return false
}

// listHasSubdomainOf reports whether any line of a plain host list is
// the target itself or a strict subdomain of it.
func listHasSubdomainOf(path, target string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	suffix := "." + target
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == target || strings.HasSuffix(line, suffix) {
			return true
		}
	}
	return false
}

// newestKnownFile returns the newest modification time among the
// well-known artifact files present in dir.
func newestKnownFile(dir string) (time.Time, bool) {
	var newest time.Time
	found := false
	for _, name := range []string{ConsolidatedOutput, NDJSONOutput, CSVOutput, SubdomainList, EmailList, ScanLog} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		found = true
	}
	return newest, found
}

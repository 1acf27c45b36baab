package artifact

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/finding"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/types"
)

// FindingWriter persists one canonical finding. Satisfied by
// store.Writer.
type FindingWriter interface {
	Write(ctx context.Context, f finding.Finding) error
}

// documentKeys are tried in order when a consolidated output is a JSON
// object rather than an array; the first key holding an array wins.
var documentKeys = []string{"events", "records", "results", "data", "items"}

// Importer reads one scan-output directory in all its formats and feeds
// every parseable row through the normalizer into the graph writer.
// Files fail independently: a broken file is logged and skipped, never
// aborting the directory.
type Importer struct {
	writer FindingWriter
	logger *slog.Logger
}

// NewImporter creates an importer writing through w.
func NewImporter(w FindingWriter, logger *slog.Logger) *Importer {
	return &Importer{writer: w, logger: logger}
}

// ImportDir imports every recognized artifact file in dir and returns
// the number of records written. defaultDomain is attached to findings
// that carry no domain of their own.
func (im *Importer) ImportDir(ctx context.Context, dir, defaultDomain string) (int, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return 0, types.NewError(types.ARTIFACT_NOT_FOUND, "scan directory not found: "+dir)
	}

	total := 0
	skipped := 0

	type fileImport struct {
		name string
		run  func(path string) (int, int, error)
	}
	files := []fileImport{
		{ConsolidatedOutput, func(p string) (int, int, error) { return im.importJSONFile(ctx, p, defaultDomain) }},
		{NDJSONOutput, func(p string) (int, int, error) { return im.importNDJSONFile(ctx, p, defaultDomain) }},
		{CSVOutput, func(p string) (int, int, error) { return im.importCSVFile(ctx, p, defaultDomain) }},
		{SubdomainList, func(p string) (int, int, error) {
			return im.importPlainList(ctx, p, finding.KindDNSName, "name", defaultDomain)
		}},
		{EmailList, func(p string) (int, int, error) {
			return im.importPlainList(ctx, p, finding.KindEmail, "email", defaultDomain)
		}},
	}

	for _, fi := range files {
		path := filepath.Join(dir, fi.name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		n, sk, err := fi.run(path)
		total += n
		skipped += sk
		if err != nil {
			im.logger.Error("artifact file import failed", "file", path, "error", err)
		}
	}

	// Ad-hoc ASN tables: asns-table-*.txt
	matches, _ := filepath.Glob(filepath.Join(dir, ASNTablePrefix+"*.txt"))
	for _, path := range matches {
		n, sk, err := im.importASNTable(ctx, path, defaultDomain)
		total += n
		skipped += sk
		if err != nil {
			im.logger.Error("asn table import failed", "file", path, "error", err)
		}
	}

	im.logger.Info("scan directory imported", "dir", dir, "imported", total, "skipped", skipped)
	return total, nil
}

// ImportBytes imports a consolidated output payload that arrived over
// the wire instead of from disk (worker uploads). Accepts the same
// shapes as the on-disk consolidated output.
func (im *Importer) ImportBytes(ctx context.Context, data []byte, defaultDomain string) (int, error) {
	records, skippedRows := parseJSONRecords(data)
	n, skipped := im.ingest(ctx, records, defaultDomain)
	if skippedRows+skipped > 0 {
		im.logger.Warn("some uploaded records were skipped", "skipped", skippedRows+skipped)
	}
	return n, nil
}

func (im *Importer) importJSONFile(ctx context.Context, path, defaultDomain string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	records, skippedRows := parseJSONRecords(data)
	n, skipped := im.ingest(ctx, records, defaultDomain)
	return n, skipped + skippedRows, nil
}

func (im *Importer) importNDJSONFile(ctx context.Context, path, defaultDomain string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	records, skippedRows := scanNDJSON(f)
	n, skipped := im.ingest(ctx, records, defaultDomain)
	return n, skipped + skippedRows, nil
}

// importCSVFile maps each row through the header into a flat record and
// runs it through the same extraction rules as every other source.
func (im *Importer) importCSVFile(ctx context.Context, path, defaultDomain string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, 0, err
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var records []finding.RawRecord
	skippedRows := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skippedRows++
			continue
		}
		rec := finding.RawRecord{}
		for i, v := range row {
			if i >= len(header) || strings.TrimSpace(v) == "" {
				continue
			}
			rec[header[i]] = v
		}
		if len(rec) == 0 {
			skippedRows++
			continue
		}
		records = append(records, rec)
	}

	n, skipped := im.ingest(ctx, records, defaultDomain)
	return n, skipped + skippedRows, nil
}

// importPlainList imports a one-value-per-line list mapped to a fixed
// kind, e.g. subdomains.txt rows become DNS_NAME findings.
func (im *Importer) importPlainList(ctx context.Context, path string, kind finding.Kind, key, defaultDomain string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	var records []finding.RawRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		records = append(records, finding.RawRecord{
			"type": string(kind),
			"data": map[string]any{key: line},
		})
	}

	n, skipped := im.ingest(ctx, records, defaultDomain)
	return n, skipped, scanner.Err()
}

// importASNTable parses permissive `AS<number>[, name]` rows separated
// by comma, tab, or whitespace.
func (im *Importer) importASNTable(ctx context.Context, path, defaultDomain string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	var records []finding.RawRecord
	skippedRows := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		number, name, ok := splitASNRow(line)
		if !ok {
			skippedRows++
			continue
		}
		data := map[string]any{"asn": number}
		if name != "" {
			data["name"] = name
		}
		records = append(records, finding.RawRecord{"type": string(finding.KindASN), "data": data})
	}

	n, skipped := im.ingest(ctx, records, defaultDomain)
	return n, skipped + skippedRows, scanner.Err()
}

// splitASNRow splits on the first comma, tab, or run of spaces.
func splitASNRow(line string) (number, name string, ok bool) {
	sep := strings.IndexAny(line, ",\t ")
	if sep < 0 {
		number = line
	} else {
		number = strings.TrimSpace(line[:sep])
		name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line[sep:]), ","))
	}
	upper := strings.ToUpper(number)
	if !strings.HasPrefix(upper, "AS") {
		return "", "", false
	}
	return number, name, true
}

// ingest runs records through Normalize and the writer, returning
// (written, skipped). Write failures are logged and counted as skipped;
// a bad record or a hiccup on one write never aborts the batch.
func (im *Importer) ingest(ctx context.Context, records []finding.RawRecord, defaultDomain string) (int, int) {
	written := 0
	skipped := 0
	for _, raw := range records {
		f, ok := finding.Normalize(raw)
		if !ok {
			skipped++
			continue
		}
		if defaultDomain != "" && f.Str(finding.AttrDomain) == "" {
			f.Attrs[finding.AttrDomain] = defaultDomain
		}
		if err := im.writer.Write(ctx, f); err != nil {
			im.logger.Error("finding write failed", "kind", f.Kind, "id", f.ID, "error", err)
			skipped++
			continue
		}
		written++
	}
	return written, skipped
}

// parseJSONRecords decodes a consolidated output payload: a JSON array,
// an object whose first known key holds an array, a single object
// record, or NDJSON when whole-document parsing fails.
func parseJSONRecords(data []byte) ([]finding.RawRecord, int) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, 0
	}

	var arr []map[string]any
	if err := json.Unmarshal(trimmed, &arr); err == nil {
		return toRawRecords(arr), 0
	}

	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err == nil {
		for _, key := range documentKeys {
			if nested, ok := obj[key].([]any); ok {
				var records []finding.RawRecord
				skipped := 0
				for _, item := range nested {
					if m, ok := item.(map[string]any); ok {
						records = append(records, finding.RawRecord(m))
					} else {
						skipped++
					}
				}
				return records, skipped
			}
		}
		return []finding.RawRecord{finding.RawRecord(obj)}, 0
	}

	return scanNDJSON(bytes.NewReader(trimmed))
}

// scanNDJSON reads line-delimited JSON records, skipping unparseable
// lines.
func scanNDJSON(r io.Reader) ([]finding.RawRecord, int) {
	var records []finding.RawRecord
	skipped := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, finding.RawRecord(rec))
	}
	return records, skipped
}

func toRawRecords(maps []map[string]any) []finding.RawRecord {
	records := make([]finding.RawRecord, 0, len(maps))
	for _, m := range maps {
		records = append(records, finding.RawRecord(m))
	}
	return records
}

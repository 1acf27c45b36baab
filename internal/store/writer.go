package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/finding"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/graph"
)

// Writer applies canonical findings to the graph as a single compound
// upsert. Every segment is a MERGE, so writing the same finding any
// number of times converges to the same graph state and concurrent
// writers commute.
type Writer struct {
	client graph.Client
	logger *slog.Logger
}

// NewWriter creates a graph writer.
func NewWriter(client graph.Client, logger *slog.Logger) *Writer {
	return &Writer{client: client, logger: logger}
}

// Write upserts one finding. A structurally malformed finding (no kind
// or id; should have been normalized away upstream) is dropped with a
// warning rather than propagated, per the skip-and-count contract.
// Store errors propagate so the caller decides about retries.
func (w *Writer) Write(ctx context.Context, f finding.Finding) error {
	if f.Kind == "" || f.ID == "" {
		w.logger.Warn("dropping malformed finding", "kind", f.Kind, "id", f.ID)
		return nil
	}

	cypher, params := buildUpsert(f)
	_, err := w.client.Write(ctx, cypher, params)
	return err
}

// buildUpsert assembles the compound MERGE statement. Segment order
// matters: Module and Event first, typed nodes next, secondary edges
// after the nodes they connect, Host-Domain linking last and only when
// both are present on the same finding.
func buildUpsert(f finding.Finding) (string, map[string]any) {
	host := f.Str(finding.AttrHost)
	domain := f.Str(finding.AttrDomain)
	ip := f.Str(finding.AttrIP)

	params := map[string]any{
		"etype":   string(f.Kind),
		"module":  f.Module,
		"ts":      f.Timestamp,
		"evid":    f.ID,
		"raw":     rawJSON(f.Raw),
		"sources": []any{f.Module},
	}

	lines := []string{
		"MERGE (m:Module {name: $module})",
		"MERGE (ev:Event {id: $evid})",
		"SET ev.type = $etype, ev.ts = $ts, ev.raw = $raw",
	}

	if domain != "" {
		params["domain"] = domain
		lines = append(lines,
			"MERGE (d:Domain {name: $domain})",
			"MERGE (ev)-[:ABOUT]->(d)",
		)
	}
	if host != "" {
		params["host"] = host
		params["status"] = f.Str(finding.AttrStatus)
		lines = append(lines,
			"MERGE (h:Host {fqdn: $host})",
			"SET h.status = coalesce($status, h.status), h.last_seen_ts = $ts, h.sources = coalesce(h.sources, []) + $sources",
			"MERGE (ev)-[:ABOUT]->(h)",
		)
	}
	if ip != "" {
		params["ip"] = ip
		lines = append(lines,
			"MERGE (i:IP {addr: $ip})",
			"MERGE (ev)-[:ABOUT]->(i)",
		)
	}
	if url := f.Str(finding.AttrURL); url != "" {
		params["url"] = url
		lines = append(lines,
			"MERGE (u:URL {value: $url})",
			"MERGE (ev)-[:ABOUT]->(u)",
		)
	}
	if email := f.Str(finding.AttrEmail); email != "" {
		params["email"] = email
		lines = append(lines,
			"MERGE (e:Email {value: $email})",
			"MERGE (ev)-[:ABOUT]->(e)",
		)
	}
	if dnsName := f.Str(finding.AttrDNSName); dnsName != "" {
		params["dns_name"] = dnsName
		lines = append(lines,
			"MERGE (dn:DNS_NAME {name: $dns_name})",
			"SET dn.last_seen_ts = $ts",
			"MERGE (ev)-[:ABOUT]->(dn)",
		)
	}
	if endpoint := f.Str(finding.AttrEndpoint); endpoint != "" {
		params["endpoint"] = endpoint
		params["port"] = f.Int(finding.AttrPort)
		lines = append(lines,
			"MERGE (op:OPEN_TCP_PORT {endpoint: $endpoint})",
			"SET op.port = $port, op.host = $host, op.last_seen_ts = $ts",
			"MERGE (ev)-[:ABOUT]->(op)",
		)
		if host != "" {
			lines = append(lines, "MERGE (op)-[:ON_HOST]->(h)")
		}
	}
	if tech := f.Str(finding.AttrTechnology); tech != "" {
		params["technology"] = tech
		lines = append(lines,
			"MERGE (t:TECHNOLOGY {name: $technology})",
			"MERGE (ev)-[:ABOUT]->(t)",
		)
		if host != "" {
			lines = append(lines, "MERGE (h)-[:USES_TECH]->(t)")
		}
	}
	if asn := f.Str(finding.AttrASN); asn != "" {
		params["asn"] = asn
		params["asn_name"] = nilIfEmpty(f.Str(finding.AttrASNName))
		lines = append(lines,
			"MERGE (a:ASN {number: $asn})",
			"SET a.name = coalesce($asn_name, a.name)",
			"MERGE (ev)-[:ABOUT]->(a)",
		)
		if ip != "" {
			lines = append(lines, "MERGE (i)-[:IN_ASN]->(a)")
		}
	}
	if proto := f.Str(finding.AttrProtocol); proto != "" {
		params["protocol"] = proto
		lines = append(lines,
			"MERGE (p:PROTOCOL {name: $protocol})",
			"MERGE (ev)-[:ABOUT]->(p)",
		)
	}
	if fid := f.Str(finding.AttrFindingID); fid != "" {
		params["finding_id"] = fid
		params["severity"] = nilIfEmpty(f.Str(finding.AttrSeverity))
		lines = append(lines,
			"MERGE (fn:FINDING {id: $finding_id})",
			"SET fn.severity = coalesce($severity, fn.severity)",
			"MERGE (ev)-[:ABOUT]->(fn)",
		)
	}
	if app := f.Str(finding.AttrApp); app != "" {
		params["app"] = app
		lines = append(lines,
			"MERGE (ma:MOBILE_APP {name: $app})",
			"MERGE (ev)-[:ABOUT]->(ma)",
		)
	}
	if handle := f.Str(finding.AttrHandle); handle != "" {
		params["handle"] = handle
		lines = append(lines,
			"MERGE (s:SOCIAL {handle: $handle})",
			"MERGE (ev)-[:ABOUT]->(s)",
		)
	}
	if org := f.Str(finding.AttrOrg); org != "" {
		params["org"] = org
		lines = append(lines,
			"MERGE (o:ORG_STUB {name: $org})",
			"MERGE (ev)-[:ABOUT]->(o)",
		)
		if domain != "" {
			lines = append(lines, "MERGE (o)-[:OWNS]->(d)")
		}
	}
	if tenant := f.Str(finding.AttrTenant); tenant != "" {
		params["tenant"] = tenant
		lines = append(lines,
			"MERGE (az:AZURE_TENANT {id: $tenant})",
			"MERGE (ev)-[:ABOUT]->(az)",
		)
	}

	if port := f.Int(finding.AttrPort); port > 0 && host != "" {
		params["port"] = port
		lines = append(lines,
			"SET h.ports = apoc.coll.toSet(coalesce(h.ports, []) + [$port])",
		)
	}

	lines = append(lines, "MERGE (ev)-[:EMITTED_BY]->(m)")

	// Host joins its domain only when this finding carries both; partial
	// information stays unlinked until a later finding supplies the rest.
	if host != "" && domain != "" {
		lines = append(lines, "MERGE (h)-[:PART_OF]->(d)")
	}

	return strings.Join(lines, "\n"), params
}

func rawJSON(raw finding.RawRecord) string {
	b, err := json.Marshal(raw)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

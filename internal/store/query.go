package store

import (
	"context"
	"strings"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/graph"
)

// HostQuery filters the Host/Domain read surface. String filters are
// substring matches; zero values mean "no filter".
type HostQuery struct {
	Domain     string `json:"domain"`
	Host       string `json:"host"`
	OnlineOnly bool   `json:"online_only"`
	Limit      int    `json:"limit"`
}

// HostRow is one Host joined to its Domain.
type HostRow struct {
	Domain     string `json:"domain"`
	Host       string `json:"host"`
	Status     string `json:"status"`
	LastSeenTs int64  `json:"last_seen_ts"`
	Sources    []any  `json:"sources"`
	Ports      []any  `json:"ports"`
}

// EventQuery filters the Event read surface.
type EventQuery struct {
	Types   []string `json:"types"`
	Modules []string `json:"modules"`
	Domain  string   `json:"domain"`
	Host    string   `json:"host"`
	SinceTs int64    `json:"since_ts"`
	UntilTs int64    `json:"until_ts"`
	Limit   int      `json:"limit"`
}

// EventRow is one ingested Event with its producing module.
type EventRow struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Ts     int64  `json:"ts"`
	Module string `json:"module"`
	Raw    any    `json:"raw"`
}

// Queries is the read surface consumed by the API layer.
type Queries struct {
	client graph.Client
}

// NewQueries creates the read surface.
func NewQueries(client graph.Client) *Queries {
	return &Queries{client: client}
}

// Hosts returns hosts matching q, newest first.
func (s *Queries) Hosts(ctx context.Context, q HostQuery) ([]HostRow, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}

	var where []string
	params := map[string]any{"limit": q.Limit}
	if q.Domain != "" {
		where = append(where, "d.name CONTAINS $domain")
		params["domain"] = q.Domain
	}
	if q.Host != "" {
		where = append(where, "h.fqdn CONTAINS $host")
		params["host"] = q.Host
	}
	if q.OnlineOnly {
		where = append(where, "h.status = 'online'")
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ") + " "
	}
	cypher := "MATCH (h:Host)-[:PART_OF]->(d:Domain) " +
		whereClause +
		"RETURN d.name AS domain, h.fqdn AS host, h.status AS status, h.last_seen_ts AS last_seen_ts, h.sources AS sources, h.ports AS ports " +
		// NULLS LAST keeps never-seen hosts from leading a DESC sort.
		"ORDER BY h.last_seen_ts DESC NULLS LAST " +
		"LIMIT $limit"

	res, err := s.client.Read(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	rows := make([]HostRow, 0, len(res.Records))
	for _, rec := range res.Records {
		rows = append(rows, HostRow{
			Domain:     asString(rec["domain"]),
			Host:       asString(rec["host"]),
			Status:     asString(rec["status"]),
			LastSeenTs: asInt64(rec["last_seen_ts"]),
			Sources:    asList(rec["sources"]),
			Ports:      asList(rec["ports"]),
		})
	}
	return rows, nil
}

// Events returns events matching q, newest first.
func (s *Queries) Events(ctx context.Context, q EventQuery) ([]EventRow, error) {
	if q.Limit <= 0 {
		q.Limit = 200
	}

	match := []string{"MATCH (ev:Event)-[:EMITTED_BY]->(m:Module)"}
	where := []string{"1=1"}
	params := map[string]any{"limit": q.Limit}

	if len(q.Types) > 0 {
		where = append(where, "ev.type IN $types")
		params["types"] = q.Types
	}
	if len(q.Modules) > 0 {
		where = append(where, "m.name IN $modules")
		params["modules"] = q.Modules
	}
	if q.SinceTs > 0 {
		where = append(where, "ev.ts >= $since_ts")
		params["since_ts"] = q.SinceTs
	}
	if q.UntilTs > 0 {
		where = append(where, "ev.ts <= $until_ts")
		params["until_ts"] = q.UntilTs
	}
	if q.Domain != "" {
		match = append(match, "MATCH (ev)-[:ABOUT]->(d:Domain)")
		where = append(where, "d.name CONTAINS $domain")
		params["domain"] = q.Domain
	}
	if q.Host != "" {
		match = append(match, "MATCH (ev)-[:ABOUT]->(h:Host)")
		where = append(where, "h.fqdn CONTAINS $host")
		params["host"] = q.Host
	}

	cypher := strings.Join(match, "\n") +
		"\nWHERE " + strings.Join(where, " AND ") +
		"\nRETURN ev.id AS id, ev.type AS type, ev.ts AS ts, m.name AS module, ev.raw AS raw" +
		"\nORDER BY ev.ts DESC LIMIT $limit"

	res, err := s.client.Read(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	rows := make([]EventRow, 0, len(res.Records))
	for _, rec := range res.Records {
		rows = append(rows, EventRow{
			ID:     asString(rec["id"]),
			Type:   asString(rec["type"]),
			Ts:     asInt64(rec["ts"]),
			Module: asString(rec["module"]),
			Raw:    rec["raw"],
		})
	}
	return rows, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

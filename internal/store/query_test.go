package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/graph"
)

func TestQueries_Hosts(t *testing.T) {
	mock := graph.NewMockClient()
	mock.ReadResults = []graph.Result{{
		Records: []map[string]any{
			{
				"domain": "example.com", "host": "api.example.com", "status": "online",
				"last_seen_ts": int64(1700000000), "sources": []any{"subfinder"}, "ports": []any{int64(443)},
			},
		},
	}}

	rows, err := NewQueries(mock).Hosts(context.Background(), HostQuery{
		Domain:     "example.com",
		OnlineOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "api.example.com", rows[0].Host)
	assert.Equal(t, int64(1700000000), rows[0].LastSeenTs)

	call := mock.Calls()[0]
	assert.Equal(t, "Read", call.Method)
	assert.Contains(t, call.Cypher, "d.name CONTAINS $domain")
	assert.Contains(t, call.Cypher, "h.status = 'online'")
	assert.Contains(t, call.Cypher, "ORDER BY h.last_seen_ts DESC NULLS LAST",
		"hosts without a last_seen_ts must sort after seen hosts")
	assert.Equal(t, 100, call.Params["limit"], "limit defaults when unset")
}

func TestQueries_HostsNoFilters(t *testing.T) {
	mock := graph.NewMockClient()
	_, err := NewQueries(mock).Hosts(context.Background(), HostQuery{Limit: 5})
	require.NoError(t, err)

	call := mock.Calls()[0]
	assert.NotContains(t, call.Cypher, "WHERE")
	assert.Equal(t, 5, call.Params["limit"])
}

func TestQueries_Events(t *testing.T) {
	mock := graph.NewMockClient()
	mock.ReadResults = []graph.Result{{
		Records: []map[string]any{
			{"id": "ev-1", "type": "DNS_NAME", "ts": int64(1700000500), "module": "subfinder", "raw": "{}"},
		},
	}}

	rows, err := NewQueries(mock).Events(context.Background(), EventQuery{
		Types:   []string{"DNS_NAME"},
		Modules: []string{"subfinder"},
		Domain:  "example.com",
		Host:    "api",
		SinceTs: 1700000000,
		UntilTs: 1700001000,
		Limit:   50,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ev-1", rows[0].ID)
	assert.Equal(t, "subfinder", rows[0].Module)

	call := mock.Calls()[0]
	assert.Contains(t, call.Cypher, "ev.type IN $types")
	assert.Contains(t, call.Cypher, "m.name IN $modules")
	assert.Contains(t, call.Cypher, "ev.ts >= $since_ts")
	assert.Contains(t, call.Cypher, "ev.ts <= $until_ts")
	assert.Contains(t, call.Cypher, "MATCH (ev)-[:ABOUT]->(d:Domain)")
	assert.Contains(t, call.Cypher, "MATCH (ev)-[:ABOUT]->(h:Host)")
	assert.Contains(t, call.Cypher, "ORDER BY ev.ts DESC")
	assert.Equal(t, 50, call.Params["limit"])
}

func TestQueries_EventsDefaultLimit(t *testing.T) {
	mock := graph.NewMockClient()
	_, err := NewQueries(mock).Events(context.Background(), EventQuery{})
	require.NoError(t, err)
	assert.Equal(t, 200, mock.Calls()[0].Params["limit"])
}

package store

import (
	"context"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/graph"
)

// constraintStatements declares one uniqueness key per entity label.
// IF NOT EXISTS makes the bootstrap idempotent and safe to re-issue on
// every startup.
var constraintStatements = []string{
	"CREATE CONSTRAINT domain_unique IF NOT EXISTS FOR (d:Domain) REQUIRE d.name IS UNIQUE",
	"CREATE CONSTRAINT host_unique IF NOT EXISTS FOR (h:Host) REQUIRE h.fqdn IS UNIQUE",
	"CREATE CONSTRAINT ip_unique IF NOT EXISTS FOR (i:IP) REQUIRE i.addr IS UNIQUE",
	"CREATE CONSTRAINT url_unique IF NOT EXISTS FOR (u:URL) REQUIRE u.value IS UNIQUE",
	"CREATE CONSTRAINT email_unique IF NOT EXISTS FOR (e:Email) REQUIRE e.value IS UNIQUE",
	"CREATE CONSTRAINT module_unique IF NOT EXISTS FOR (m:Module) REQUIRE m.name IS UNIQUE",
	"CREATE CONSTRAINT event_unique IF NOT EXISTS FOR (ev:Event) REQUIRE ev.id IS UNIQUE",
	"CREATE CONSTRAINT dns_name_unique IF NOT EXISTS FOR (dn:DNS_NAME) REQUIRE dn.name IS UNIQUE",
	"CREATE CONSTRAINT open_port_unique IF NOT EXISTS FOR (op:OPEN_TCP_PORT) REQUIRE op.endpoint IS UNIQUE",
	"CREATE CONSTRAINT technology_unique IF NOT EXISTS FOR (t:TECHNOLOGY) REQUIRE t.name IS UNIQUE",
	"CREATE CONSTRAINT asn_unique IF NOT EXISTS FOR (a:ASN) REQUIRE a.number IS UNIQUE",
	"CREATE CONSTRAINT protocol_unique IF NOT EXISTS FOR (p:PROTOCOL) REQUIRE p.name IS UNIQUE",
	"CREATE CONSTRAINT finding_unique IF NOT EXISTS FOR (f:FINDING) REQUIRE f.id IS UNIQUE",
	"CREATE CONSTRAINT mobile_app_unique IF NOT EXISTS FOR (ma:MOBILE_APP) REQUIRE ma.name IS UNIQUE",
	"CREATE CONSTRAINT social_unique IF NOT EXISTS FOR (s:SOCIAL) REQUIRE s.handle IS UNIQUE",
	"CREATE CONSTRAINT org_stub_unique IF NOT EXISTS FOR (o:ORG_STUB) REQUIRE o.name IS UNIQUE",
	"CREATE CONSTRAINT azure_tenant_unique IF NOT EXISTS FOR (az:AZURE_TENANT) REQUIRE az.id IS UNIQUE",
}

// EnsureConstraints creates the uniqueness constraints every write path
// depends on. Must run before the first write.
func EnsureConstraints(ctx context.Context, client graph.Client) error {
	for _, stmt := range constraintStatements {
		if _, err := client.Write(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}

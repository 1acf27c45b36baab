package finding

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
)

// Kind identifies the type of a normalized finding. The set is closed:
// records that match no kind are carried as KindUnknown or skipped by
// the normalizer, never invented at call sites.
type Kind string

const (
	KindHost        Kind = "HOST"
	KindIP          Kind = "IP_ADDRESS"
	KindURL         Kind = "URL"
	KindEmail       Kind = "EMAIL_ADDRESS"
	KindDNSName     Kind = "DNS_NAME"
	KindOpenPort    Kind = "OPEN_TCP_PORT"
	KindTechnology  Kind = "TECHNOLOGY"
	KindASN         Kind = "ASN"
	KindProtocol    Kind = "PROTOCOL"
	KindFinding     Kind = "FINDING"
	KindMobileApp   Kind = "MOBILE_APP"
	KindSocial      Kind = "SOCIAL"
	KindOrgStub     Kind = "ORG_STUB"
	KindAzureTenant Kind = "AZURE_TENANT"
	KindScan        Kind = "SCAN"
	KindUnknown     Kind = "UNKNOWN"
)

// Canonical attribute keys used in Finding.Attrs. The graph writer keys
// its conditional MERGE segments off these names.
const (
	AttrHost       = "host"
	AttrDomain     = "domain"
	AttrIP         = "ip"
	AttrURL        = "url"
	AttrEmail      = "email"
	AttrDNSName    = "dns_name"
	AttrPort       = "port"
	AttrEndpoint   = "endpoint"
	AttrTechnology = "technology"
	AttrASN        = "asn"
	AttrASNName    = "asn_name"
	AttrProtocol   = "protocol"
	AttrFindingID  = "finding_id"
	AttrSeverity   = "severity"
	AttrApp        = "app"
	AttrHandle     = "handle"
	AttrOrg        = "org"
	AttrTenant     = "tenant"
	AttrStatus     = "status"
	AttrScanName   = "scan_name"
)

// RawRecord is the loosely-structured shape every external record is
// adapted to before normalization: an event envelope ({type, module,
// ts, id, data}) or a bare flat row.
type RawRecord map[string]any

// Data returns the nested data map when the record is event-shaped,
// or the record itself when it is a flat row.
func (r RawRecord) Data() map[string]any {
	if d, ok := r["data"].(map[string]any); ok {
		return d
	}
	return r
}

// Finding is the canonical normalized unit of discovered information.
type Finding struct {
	Kind      Kind
	Module    string
	Timestamp int64
	ID        string
	Attrs     map[string]any
	Raw       RawRecord
}

// Str returns the string attribute for key, or "" when absent or not a string.
func (f Finding) Str(key string) string {
	s, _ := f.Attrs[key].(string)
	return s
}

// Int returns the integer attribute for key, or 0 when absent.
func (f Finding) Int(key string) int {
	switch v := f.Attrs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// SyntheticID derives the fallback identifier for records that carry no
// natural id. It is a uniqueness key only: distinct records sharing a
// coarse timestamp can collide on equal content hashes, and no dedup is
// attempted on collision.
func SyntheticID(kind Kind, module string, ts int64, raw RawRecord) string {
	return fmt.Sprintf("%s:%s:%d:%x", kind, module, ts, contentHash(raw))
}

func contentHash(raw RawRecord) uint64 {
	h := fnv.New64a()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=", k)
		if b, err := json.Marshal(raw[k]); err == nil {
			h.Write(b)
		}
	}
	return h.Sum64()
}

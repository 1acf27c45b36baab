package finding

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// extractRule maps one canonical attribute to the source keys that may
// carry it, tried in order. conv optionally transforms the raw value;
// returning false drops it. Adding a kind means adding table rows, not
// branching logic.
type extractRule struct {
	attr  string
	paths []string
	conv  func(any) (any, bool)
}

// baseRules run for every record regardless of kind, mirroring the loose
// shape of scan-engine payloads where host/ip/url context rides along on
// unrelated event types.
var baseRules = []extractRule{
	{attr: AttrHost, paths: []string{"host", "name", "fqdn"}, conv: toStr},
	{attr: AttrDomain, paths: []string{"domain"}, conv: toStr},
	{attr: AttrIP, paths: []string{"ip", "addr", "address"}, conv: toStr},
	{attr: AttrURL, paths: []string{"url"}, conv: toStr},
	{attr: AttrEmail, paths: []string{"email"}, conv: toStr},
	{attr: AttrPort, paths: []string{"port"}, conv: toPort},
	{attr: AttrStatus, paths: []string{"status"}, conv: toStr},
}

// kindRules add or override attributes for a specific kind. The entry
// for a kind doubles as the registry of known kinds: a declared type
// with no entry here is an unrecognized record and is skipped.
var kindRules = map[Kind][]extractRule{
	KindHost:        {{attr: AttrHost, paths: []string{"host", "fqdn", "name", "value"}, conv: toStr}},
	KindIP:          {{attr: AttrIP, paths: []string{"ip", "addr", "address", "value"}, conv: toStr}},
	KindURL:         {{attr: AttrURL, paths: []string{"url", "value"}, conv: toStr}},
	KindEmail:       {{attr: AttrEmail, paths: []string{"email", "value"}, conv: toStr}},
	KindDNSName:     {{attr: AttrDNSName, paths: []string{"name", "host", "fqdn", "value"}, conv: toStr}},
	KindOpenPort:    {{attr: AttrHost, paths: []string{"host", "fqdn", "name"}, conv: toStr}, {attr: AttrPort, paths: []string{"port"}, conv: toPort}},
	KindTechnology:  {{attr: AttrTechnology, paths: []string{"technology", "name", "value"}, conv: toStr}},
	KindASN:         {{attr: AttrASN, paths: []string{"asn", "number", "value"}, conv: toASN}, {attr: AttrASNName, paths: []string{"name", "description", "org"}, conv: toStr}},
	KindProtocol:    {{attr: AttrProtocol, paths: []string{"protocol", "name", "value"}, conv: toStr}},
	KindFinding:     {{attr: AttrFindingID, paths: []string{"id", "finding_id", "name"}, conv: toStr}, {attr: AttrSeverity, paths: []string{"severity"}, conv: toStr}},
	KindMobileApp:   {{attr: AttrApp, paths: []string{"app", "name", "value"}, conv: toStr}},
	KindSocial:      {{attr: AttrHandle, paths: []string{"handle", "profile", "username", "value"}, conv: toStr}},
	KindOrgStub:     {{attr: AttrOrg, paths: []string{"org", "name", "value"}, conv: toStr}},
	KindAzureTenant: {{attr: AttrTenant, paths: []string{"tenant", "id", "name", "value"}, conv: toStr}},
	KindScan:        {{attr: AttrScanName, paths: []string{"scan_name", "name", "label", "id", "slug"}, conv: toStr}},
}

// requiredAttr names the attribute that must be non-empty for the kind's
// typed node to be writable. Records missing it are normalized away here
// rather than reaching the graph writer.
var requiredAttr = map[Kind]string{
	KindHost:        AttrHost,
	KindIP:          AttrIP,
	KindURL:         AttrURL,
	KindEmail:       AttrEmail,
	KindDNSName:     AttrDNSName,
	KindOpenPort:    AttrEndpoint,
	KindTechnology:  AttrTechnology,
	KindASN:         AttrASN,
	KindProtocol:    AttrProtocol,
	KindFinding:     AttrFindingID,
	KindMobileApp:   AttrApp,
	KindSocial:      AttrHandle,
	KindOrgStub:     AttrOrg,
	KindAzureTenant: AttrTenant,
	KindScan:        AttrScanName,
}

// classifyRule infers a kind from key presence when the record declares
// no type. Rules are evaluated in order; the first match wins, so
// combination shapes (port+host) sit above their broader fallbacks.
type classifyRule struct {
	kind Kind
	when func(row map[string]any) bool
}

var classifyRules = []classifyRule{
	{KindOpenPort, func(r map[string]any) bool { return hasKey(r, "port") && hasAnyKey(r, "host", "fqdn", "name") }},
	{KindURL, func(r map[string]any) bool { return hasKey(r, "url") || looksLikeURL(strOf(r, "value")) }},
	{KindEmail, func(r map[string]any) bool { return hasKey(r, "email") }},
	{KindIP, func(r map[string]any) bool { return hasAnyKey(r, "ip", "addr") }},
	{KindASN, func(r map[string]any) bool { return hasKey(r, "asn") }},
	{KindTechnology, func(r map[string]any) bool { return hasKey(r, "technology") }},
	{KindFinding, func(r map[string]any) bool { return hasKey(r, "severity") && hasKey(r, "id") }},
	{KindDNSName, func(r map[string]any) bool { return hasAnyKey(r, "host", "name", "fqdn") }},
}

// Normalize converts one external record into a canonical Finding.
// The second return is false when the record matches no known kind or
// is missing the kind's key field; callers count such records as
// skipped and continue, they never fail the batch.
func Normalize(raw RawRecord) (Finding, bool) {
	if len(raw) == 0 {
		return Finding{}, false
	}

	data := raw.Data()
	kind, ok := classify(raw, data)
	if !ok {
		return Finding{}, false
	}

	module := strOf(raw, "module")
	if module == "" {
		module = "unknown"
	}
	ts := timestampOf(raw)

	f := Finding{
		Kind:      kind,
		Module:    module,
		Timestamp: ts,
		Attrs:     map[string]any{},
		Raw:       raw,
	}

	applyRules(f.Attrs, data, baseRules)
	applyRules(f.Attrs, data, kindRules[kind])

	// Open-port endpoint is derived, never read from the record.
	if kind == KindOpenPort {
		host, _ := f.Attrs[AttrHost].(string)
		port, _ := f.Attrs[AttrPort].(int)
		if host != "" && port > 0 {
			f.Attrs[AttrEndpoint] = fmt.Sprintf("%s:%d", host, port)
		}
	}

	if _, ok := f.Attrs[AttrHost]; ok {
		if _, has := f.Attrs[AttrStatus]; !has {
			f.Attrs[AttrStatus] = "online"
		}
	}

	f.ID = strOf(raw, "id")
	if f.ID == "" {
		f.ID = SyntheticID(kind, module, ts, raw)
	}

	// Security findings fall back to the event id as their identity.
	if kind == KindFinding {
		if s, _ := f.Attrs[AttrFindingID].(string); s == "" {
			f.Attrs[AttrFindingID] = f.ID
		}
	}

	if req := requiredAttr[kind]; req != "" {
		if s, _ := f.Attrs[req].(string); s == "" {
			return Finding{}, false
		}
	}

	return f, true
}

func classify(raw RawRecord, data map[string]any) (Kind, bool) {
	if t := strOf(raw, "type"); t != "" {
		kind := Kind(strings.ToUpper(t))
		if _, known := kindRules[kind]; known {
			return kind, true
		}
		return KindUnknown, false
	}
	for _, rule := range classifyRules {
		if rule.when(data) {
			return rule.kind, true
		}
	}
	return KindUnknown, false
}

func applyRules(attrs map[string]any, data map[string]any, rules []extractRule) {
	for _, rule := range rules {
		for _, path := range rule.paths {
			v, ok := data[path]
			if !ok || v == nil {
				continue
			}
			if rule.conv != nil {
				if v, ok = rule.conv(v); !ok {
					continue
				}
			}
			attrs[rule.attr] = v
			break
		}
	}
}

func timestampOf(raw RawRecord) int64 {
	for _, key := range []string{"ts", "time", "timestamp"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if ts, ok := toInt64(v); ok {
			return ts
		}
	}
	// Never reject a record solely for a missing timestamp.
	return 0
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		if n == "" {
			return 0, false
		}
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
		if t, err := time.Parse(time.RFC3339, n); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

func toStr(v any) (any, bool) {
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	}
	return nil, false
}

func toPort(v any) (any, bool) {
	var port int
	switch n := v.(type) {
	case float64:
		port = int(n)
	case int:
		port = n
	case int64:
		port = int(n)
	case string:
		p, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return nil, false
		}
		port = p
	default:
		return nil, false
	}
	if port <= 0 || port > 65535 {
		return nil, false
	}
	return port, true
}

// toASN strips a leading "AS" prefix and canonicalizes the number to a
// decimal string.
func toASN(v any) (any, bool) {
	s, ok := toStr(v)
	if !ok {
		return nil, false
	}
	num := strings.TrimPrefix(strings.TrimPrefix(s.(string), "AS"), "as")
	num = strings.TrimSpace(num)
	if num == "" {
		return nil, false
	}
	if _, err := strconv.ParseUint(num, 10, 64); err != nil {
		return nil, false
	}
	return num, true
}

func hasKey(row map[string]any, key string) bool {
	v, ok := row[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}

func hasAnyKey(row map[string]any, keys ...string) bool {
	for _, k := range keys {
		if hasKey(row, k) {
			return true
		}
	}
	return false
}

func strOf(row map[string]any, key string) string {
	s, _ := row[key].(string)
	return strings.TrimSpace(s)
}

func looksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

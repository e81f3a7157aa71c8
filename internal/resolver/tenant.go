package resolver

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Source records where a tenant id was found.
type Source string

const (
	SourceNone         Source = ""
	SourceCookie       Source = "cookie"
	SourceLegacyCookie Source = "legacy_cookie"
	SourceHeader       Source = "header"
	SourcePath         Source = "path"
	SourcePersisted    Source = "persisted"
)

// TenantContext is the tenant a request is scoped to. An empty ID means the
// tenant is missing.
type TenantContext struct {
	ID     string
	Name   string
	Source Source
}

// Resolved reports whether a tenant id was found.
func (t TenantContext) Resolved() bool { return t.ID != "" }

// TenantMissing is the absent-tenant value.
var TenantMissing = TenantContext{}

// reservedSegments never identify a tenant when they appear as the first path
// segment of a page URL.
var reservedSegments = map[string]struct{}{
	"api":         {},
	"_next":       {},
	"static":      {},
	"assets":      {},
	"public":      {},
	"images":      {},
	"favicon.ico": {},
	"robots.txt":  {},
	"sitemap.xml": {},
	"super-admin": {},
}

// IsReserved reports whether seg is a routing word rather than a tenant.
func IsReserved(seg string) bool {
	_, ok := reservedSegments[strings.ToLower(strings.TrimSpace(seg))]
	return ok
}

var domainLabel = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidTenantID checks that s is a usable tenant identifier and returns it in
// canonical form. UUIDs (36-char hyphenated form) are returned as given;
// anything else must be a domain-like token and is lowercased.
func ValidTenantID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || IsReserved(s) {
		return "", false
	}
	if len(s) == 36 {
		if _, err := uuid.Parse(s); err == nil {
			return s, true
		}
	}
	d := strings.ToLower(s)
	if len(d) > 253 {
		return "", false
	}
	for _, label := range strings.Split(d, ".") {
		if !domainLabel.MatchString(label) {
			return "", false
		}
	}
	return d, true
}

// firstSegment returns the first non-empty, unescaped path segment of p.
// Query and fragment are ignored.
func firstSegment(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			continue
		}
		dec, err := url.PathUnescape(seg)
		if err != nil {
			return ""
		}
		return dec
	}
	return ""
}

func (r *Resolver) tenant(req Request) TenantContext {
	if v := req.cookie(r.names.Tenant); v != "" {
		return TenantContext{ID: v, Source: SourceCookie}
	}
	if v := req.cookie(r.names.LegacyTenant); v != "" {
		return TenantContext{ID: v, Source: SourceLegacyCookie}
	}
	if v := req.header(HeaderTenantID); v != "" {
		return TenantContext{ID: v, Source: SourceHeader}
	}
	return TenantMissing
}

func (r *Resolver) pageTenant(req Request) TenantContext {
	if t := r.tenant(req); t.Resolved() {
		return t
	}
	if id, ok := ValidTenantID(firstSegment(req.Path)); ok {
		return TenantContext{ID: id, Source: SourcePath}
	}
	if id, ok := ValidTenantID(req.PersistedTenant); ok {
		return TenantContext{ID: id, Source: SourcePersisted}
	}
	return TenantMissing
}

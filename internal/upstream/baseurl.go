package upstream

import "strings"

const (
	// DefaultBaseURL is used when no backend URL is configured.
	DefaultBaseURL = "http://127.0.0.1:8000/api/v1"

	apiSuffix = "/api/v1"
)

// NormalizeBaseURL turns a configured backend URL into the base every call is
// built on. The result ends with /api/v1 exactly once and never uses the
// localhost alias (127.0.0.1 is used, the port is kept). Query and fragment
// are dropped. Normalizing an already normalized URL returns it unchanged.
func NormalizeBaseURL(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = rewriteLocalhost(s)
	for {
		trimmed := strings.TrimSuffix(strings.TrimRight(s, "/"), apiSuffix)
		if trimmed == s {
			break
		}
		s = trimmed
	}
	if s == "" {
		return DefaultBaseURL
	}
	return s + apiSuffix
}

// rewriteLocalhost replaces a "localhost" host (any case) with 127.0.0.1.
// Scheme, userinfo, port and path are left as they are.
func rewriteLocalhost(s string) string {
	start := 0
	if i := strings.Index(s, "://"); i >= 0 {
		start = i + len("://")
	}
	end := len(s)
	if i := strings.IndexByte(s[start:], '/'); i >= 0 {
		end = start + i
	}
	authority := s[start:end]

	hostStart := 0
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		hostStart = i + 1
	}
	host := authority[hostStart:]
	if strings.HasPrefix(host, "[") {
		return s
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	if !strings.EqualFold(host, "localhost") {
		return s
	}
	hostPos := start + hostStart
	return s[:hostPos] + "127.0.0.1" + s[hostPos+len(host):]
}

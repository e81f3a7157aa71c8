package resolver

import (
	"net/http"
	"strings"
)

// Request is the read-only view of an inbound request the resolver works on.
// Path and PersistedTenant are only consulted by page-level resolution.
type Request struct {
	Cookies         map[string]string
	Headers         http.Header
	Path            string
	PersistedTenant string
}

// FromHTTP builds a Request from cookies and headers of r. When a cookie name
// repeats, the first occurrence wins (browsers send the most specific first).
func FromHTTP(r *http.Request) Request {
	req := Request{
		Cookies: make(map[string]string),
		Headers: r.Header,
	}
	for _, c := range r.Cookies() {
		if _, ok := req.Cookies[c.Name]; !ok {
			req.Cookies[c.Name] = c.Value
		}
	}
	return req
}

func (r Request) cookie(name string) string {
	if name == "" || r.Cookies == nil {
		return ""
	}
	return strings.TrimSpace(r.Cookies[name])
}

func (r Request) header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return strings.TrimSpace(r.Headers.Get(name))
}

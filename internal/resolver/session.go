package resolver

import "strings"

// Mode selects the access token precedence.
type Mode int

const (
	// ModeDefault: namespaced cookie, then Authorization header, then legacy cookie.
	ModeDefault Mode = iota
	// ModeTenantScoped: namespaced cookie, then legacy cookie, then Authorization header.
	ModeTenantScoped
)

func (m Mode) String() string {
	if m == ModeTenantScoped {
		return "tenant_scoped"
	}
	return "default"
}

// Session carries the token to forward upstream. An empty token means the
// caller is unauthenticated.
type Session struct {
	AccessToken string
}

// Authenticated reports whether a token was found.
func (s Session) Authenticated() bool { return s.AccessToken != "" }

// Unauthenticated is the absent-session value.
var Unauthenticated = Session{}

// bearerToken extracts the credentials of a "Bearer" Authorization header.
// Other schemes are ignored.
func bearerToken(h string) string {
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func (r *Resolver) session(req Request, mode Mode) Session {
	namespaced := req.cookie(r.names.AccessToken)
	legacy := req.cookie(r.names.LegacyAccessToken)
	header := bearerToken(req.header("Authorization"))

	var order []string
	if mode == ModeTenantScoped {
		order = []string{namespaced, legacy, header}
	} else {
		order = []string{namespaced, header, legacy}
	}
	for _, tok := range order {
		if tok != "" {
			return Session{AccessToken: tok}
		}
	}
	return Unauthenticated
}

package helpers

import (
	"net/http"
	"strings"
	"time"
)

// CookieOptions agrupa los atributos comunes de las cookies de sesión.
type CookieOptions struct {
	Domain   string
	SameSite string
	Secure   bool
	TTL      time.Duration
}

func ParseSameSite(s string) http.SameSite {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// BuildCookie arma una cookie HttpOnly (tokens).
func BuildCookie(name, value string, opts CookieOptions) *http.Cookie {
	ck := baseCookie(name, value, opts)
	ck.HttpOnly = true
	return ck
}

// BuildClientCookie arma una cookie legible desde JS (tenant id: la UI la lee).
func BuildClientCookie(name, value string, opts CookieOptions) *http.Cookie {
	return baseCookie(name, value, opts)
}

func BuildDeletionCookie(name string, opts CookieOptions) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: ParseSameSite(opts.SameSite),
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
	}
	if strings.TrimSpace(opts.Domain) != "" {
		ck.Domain = opts.Domain
	}
	return ck
}

func baseCookie(name, value string, opts CookieOptions) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Secure:   opts.Secure,
		SameSite: ParseSameSite(opts.SameSite),
	}
	if strings.TrimSpace(opts.Domain) != "" {
		ck.Domain = opts.Domain
	}
	if opts.TTL > 0 {
		ck.Expires = time.Now().Add(opts.TTL).UTC()
		ck.MaxAge = int(opts.TTL.Seconds())
	}
	return ck
}

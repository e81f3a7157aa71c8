// Package claims lee, sin verificar la firma, los claims de un access token
// JWT. La verificación la hace el backend; el gateway solo los usa para
// informar la sesión y cortar tokens ya vencidos antes de reenviarlos.
package claims

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT: el token es opaco (no tiene forma header.payload.signature).
var ErrNotJWT = errors.New("claims: token is not a JWT")

// Info es lo que el gateway necesita saber del token.
type Info struct {
	Subject   string
	TenantID  string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Expired indica si el token venció respecto de now. Sin exp nunca vence.
func (i Info) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// tokenClaims acepta tenant como "tid" o "tenant_id".
type tokenClaims struct {
	jwt.RegisteredClaims
	TID      string `json:"tid,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
}

var parser = jwt.NewParser()

// Peek decodifica los claims sin validar firma ni tiempos.
func Peek(token string) (Info, error) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return Info{}, ErrNotJWT
	}

	var c tokenClaims
	if _, _, err := parser.ParseUnverified(token, &c); err != nil {
		return Info{}, errors.Join(ErrNotJWT, err)
	}

	info := Info{Subject: c.Subject, TenantID: c.TID}
	if info.TenantID == "" {
		info.TenantID = c.TenantID
	}
	if c.ExpiresAt != nil {
		info.ExpiresAt = c.ExpiresAt.Time
	}
	if c.IssuedAt != nil {
		info.IssuedAt = c.IssuedAt.Time
	}
	return info, nil
}

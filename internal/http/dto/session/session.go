// Package session contiene los DTOs de los endpoints locales de sesión.
package session

import "time"

// SessionResponse es la respuesta de GET /api/session.
type SessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	TenantID      string     `json:"tenantId,omitempty"`
	TenantSource  string     `json:"tenantSource,omitempty"`
	Subject       string     `json:"subject,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	Expired       bool       `json:"expired,omitempty"`
}

// SwitchTenantRequest es el body de POST /api/session/tenant.
type SwitchTenantRequest struct {
	TenantID   string `json:"tenantId" validate:"required,notblank,tenant_id"`
	TenantName string `json:"tenantName,omitempty" validate:"omitempty,max=200"`
}

// SwitchTenantResponse confirma el tenant activo.
type SwitchTenantResponse struct {
	TenantID   string `json:"tenantId"`
	TenantName string `json:"tenantName,omitempty"`
}

// LoginTokens son los campos del body de login del backend que interesan.
// El backend viejo usa snake_case.
type LoginTokens struct {
	AccessToken      string `json:"accessToken"`
	AccessTokenSnake string `json:"access_token"`
}

// Token devuelve el access token, el que venga.
func (t LoginTokens) Token() string {
	if t.AccessToken != "" {
		return t.AccessToken
	}
	return t.AccessTokenSnake
}

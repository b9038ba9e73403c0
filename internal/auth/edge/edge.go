// Package edge implements the OAuth 2.0 authorization code flow with PKCE
// (RFC 6749 section 4.1, RFC 7636) against the Edgeworks identity provider.
// It covers authorization URL construction, the local callback listener,
// token exchange and refresh, revocation, and token storage for the CLI.
package edge

import "strings"

// OAuth configuration constants for the Edgeworks identity provider.
const (
	AuthEndpoint   = "https://dash.edgeworks.dev/oauth2/auth"
	TokenEndpoint  = "https://dash.edgeworks.dev/oauth2/token"
	RevokeEndpoint = "https://dash.edgeworks.dev/oauth2/revoke"
	ClientID       = "b7c3e1a2-5f0d-4f7a-9c2e-8d41f6b2a913"
)

// CallbackPort is the default local port used for OAuth callbacks.
const CallbackPort = 8976

// CallbackPath is the fixed path the provider redirects to on the local listener.
const CallbackPath = "/oauth/callback"

// Scope is an Edgeworks capability string granted to an access token.
type Scope string

// Capability scopes defined by the Edgeworks platform.
const (
	ScopeAccountRead       Scope = "account:read"
	ScopeUserRead          Scope = "user:read"
	ScopeWorkersWrite      Scope = "workers:write"
	ScopeWorkersKVRead     Scope = "workers_kv:read"
	ScopeWorkersRoutesRead Scope = "workers_routes:read"
	ScopeWorkersScripts    Scope = "workers_scripts:write"
	ScopeWorkersTailRead   Scope = "workers_tail:read"
	ScopePagesWrite        Scope = "pages:write"
	ScopeZoneRead          Scope = "zone:read"

	// ScopeOfflineAccess asks the provider for a refresh token.
	ScopeOfflineAccess Scope = "offline_access"
)

// RequestedScopes lists the capability scopes the CLI asks for at login.
// ScopeOfflineAccess is appended separately when the authorization URL is built.
var RequestedScopes = []Scope{
	ScopeAccountRead,
	ScopeUserRead,
	ScopeWorkersWrite,
	ScopeWorkersKVRead,
	ScopeWorkersRoutesRead,
	ScopeWorkersScripts,
	ScopeWorkersTailRead,
	ScopePagesWrite,
	ScopeZoneRead,
}

// ParseScopes splits a space-delimited scope list as returned by the token
// endpoint. Unknown scope strings are kept verbatim so newly introduced
// provider capabilities survive a round trip through storage.
func ParseScopes(raw string) []Scope {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	scopes := make([]Scope, 0, len(fields))
	for _, f := range fields {
		scopes = append(scopes, Scope(f))
	}
	return scopes
}

// JoinScopes renders scopes as the space-delimited form used in requests.
func JoinScopes(scopes []Scope) string {
	parts := make([]string, 0, len(scopes))
	for _, s := range scopes {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, " ")
}

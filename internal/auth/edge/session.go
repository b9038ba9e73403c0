package edge

import (
	"net/url"
	"sync"
	"time"
)

// AccessToken is a short-lived bearer credential with an absolute expiry.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// RefreshToken is an opaque longer-lived credential used to obtain new
// access tokens. The provider may rotate it on every refresh.
type RefreshToken struct {
	Value string
}

// AccessContext is the externally visible result of a successful exchange or
// refresh. It is what gets handed to the persistence layer.
type AccessContext struct {
	Token        AccessToken
	RefreshToken *RefreshToken
	Scopes       []Scope
}

// SessionState holds the single in-flight/authenticated session for one CLI
// invocation. It is an explicit value owned by the running flow, never a
// package global, so tests can instantiate independent sessions.
//
// Invariants: codeExchanged is true iff the stored access token was derived
// from the currently stored authorization code, and csrfState must match the
// state echoed by the callback before an authorization code is ever stored.
type SessionState struct {
	mu sync.Mutex

	pkce              *PKCECodes
	csrfState         string
	authorizationCode string
	codeExchanged     bool

	accessToken   *AccessToken
	refreshToken  *RefreshToken
	grantedScopes []Scope
}

// NewSessionState returns an empty session with no credentials.
func NewSessionState() *SessionState {
	return &SessionState{}
}

// BeginAuthorizationAttempt stores fresh PKCE codes and an anti-CSRF state
// token, invalidating any prior in-flight attempt.
func (s *SessionState) BeginAuthorizationAttempt(pkce *PKCECodes, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pkce = pkce
	s.csrfState = state
	s.authorizationCode = ""
	s.codeExchanged = false
}

// ClearAuthorizationAttempt abandons the pending authorization attempt so a
// retry starts clean. Stored tokens are left untouched.
func (s *SessionState) ClearAuthorizationAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pkce = nil
	s.csrfState = ""
	s.authorizationCode = ""
	s.codeExchanged = false
}

// HandleCallback validates one redirect from the provider and, on success,
// stores the authorization code. The check ordering is a strict priority and
// must not be reordered: a provider error is surfaced even when the other
// parameters are malformed, a missing code is reported without mutating
// state, and the state token is verified before the code is accepted to
// prevent authorization-code injection.
//
// The method is safe to invoke multiple times: only the first valid code is
// accepted. A duplicate delivery of the same code is a no-op; a different
// code after one was accepted is rejected without touching the session.
func (s *SessionState) HandleCallback(query url.Values) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if raw := query.Get("error"); raw != "" {
		return NewProviderError(raw, query.Get("error_description"), 0)
	}

	code := query.Get("code")
	if code == "" {
		return &OAuthError{Code: ErrorNoAuthCode, Description: "no authorization code present"}
	}

	if s.authorizationCode != "" {
		if code == s.authorizationCode {
			return nil
		}
		return NewAuthenticationError(ErrCallbackConflict, nil)
	}

	// An empty csrfState means no attempt is pending; no echoed value can
	// match it, so a code delivered out of the blue is never accepted.
	if s.csrfState == "" || query.Get("state") != s.csrfState {
		return &OAuthError{Code: ErrorInvalidReturnedState, Description: "state parameter does not match the pending authorization attempt"}
	}

	s.authorizationCode = code
	s.codeExchanged = false
	return nil
}

// pendingExchange snapshots the stored authorization code and PKCE verifier
// for a code exchange. It fails when no complete attempt is pending.
func (s *SessionState) pendingExchange() (code, verifier string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authorizationCode == "" || s.pkce == nil {
		return "", "", NewAuthenticationError(ErrNoPendingAuthorization, nil)
	}
	return s.authorizationCode, s.pkce.CodeVerifier, nil
}

// completeExchange applies a successful token response as a single atomic
// replace so no reader observes a partially updated token pair. When the
// response carried no rotated refresh token the prior value is retained, and
// when it carried no scope list the prior grant is kept. The returned
// AccessContext reflects the effective session contents and is what callers
// hand to persistence.
func (s *SessionState) completeExchange(token AccessToken, refresh *RefreshToken, scopes []Scope, fromCode bool) *AccessContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessToken = &token
	if refresh != nil {
		s.refreshToken = refresh
	}
	if scopes != nil {
		s.grantedScopes = scopes
	}
	if fromCode {
		s.codeExchanged = true
		s.pkce = nil
		s.csrfState = ""
	}

	return s.accessContextLocked()
}

// accessContextLocked builds an AccessContext from the current session.
// Callers must hold s.mu.
func (s *SessionState) accessContextLocked() *AccessContext {
	ctx := &AccessContext{Token: *s.accessToken}
	if s.refreshToken != nil {
		ctx.RefreshToken = &RefreshToken{Value: s.refreshToken.Value}
	}
	if len(s.grantedScopes) > 0 {
		ctx.Scopes = append([]Scope(nil), s.grantedScopes...)
	}
	return ctx
}

// Seed restores a previously persisted session so the CLI can resume without
// a fresh login. Empty values leave the corresponding field unset.
func (s *SessionState) Seed(accessToken string, expiresAt time.Time, refreshToken string, scopes []Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if accessToken != "" {
		s.accessToken = &AccessToken{Value: accessToken, ExpiresAt: expiresAt}
	}
	if refreshToken != "" {
		s.refreshToken = &RefreshToken{Value: refreshToken}
	}
	if scopes != nil {
		s.grantedScopes = scopes
	}
}

// IsExpired reports whether a stored access token has reached its expiry.
// Absence of a token is not expiry: "no token" and "expired token" trigger
// different recovery paths (full login vs. silent refresh), so callers must
// check HasAccessToken separately.
func (s *SessionState) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken == nil {
		return false
	}
	return !time.Now().Before(s.accessToken.ExpiresAt)
}

// HasAccessToken reports whether an access token is stored.
func (s *SessionState) HasAccessToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != nil
}

// HasRefreshToken reports whether a refresh token is stored.
func (s *SessionState) HasRefreshToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken != nil
}

// AccessTokenValue returns the stored access token value, or "" when absent.
func (s *SessionState) AccessTokenValue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken == nil {
		return ""
	}
	return s.accessToken.Value
}

// AccessTokenExpiry returns the stored access token expiry, zero when absent.
func (s *SessionState) AccessTokenExpiry() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken == nil {
		return time.Time{}
	}
	return s.accessToken.ExpiresAt
}

// RefreshTokenValue returns the stored refresh token value, or "" when absent.
func (s *SessionState) RefreshTokenValue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshToken == nil {
		return ""
	}
	return s.refreshToken.Value
}

// GrantedScopes returns a copy of the scopes granted to the session.
func (s *SessionState) GrantedScopes() []Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Scope(nil), s.grantedScopes...)
}

// CodeExchanged reports whether the stored authorization code has been
// traded for the stored access token.
func (s *SessionState) CodeExchanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codeExchanged
}

// CSRFState returns the pending anti-CSRF state token, "" when no attempt is
// in flight.
func (s *SessionState) CSRFState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csrfState
}

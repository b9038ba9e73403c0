package edge

import (
	"net/url"
	"testing"
	"time"
)

// pendingSession returns a session with an authorization attempt in flight.
func pendingSession(t *testing.T) (*SessionState, string) {
	t.Helper()
	pkce, err := GeneratePKCECodes()
	if err != nil {
		t.Fatalf("GeneratePKCECodes() error = %v", err)
	}
	state, err := GenerateState(StateLength)
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	session := NewSessionState()
	session.BeginAuthorizationAttempt(pkce, state)
	return session, state
}

func TestHandleCallbackAcceptsMatchingState(t *testing.T) {
	t.Parallel()

	session, state := pendingSession(t)
	query := url.Values{"code": {"abc123"}, "state": {state}}
	if err := session.HandleCallback(query); err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if code, _, err := session.pendingExchange(); err != nil || code != "abc123" {
		t.Errorf("stored code = %q, err = %v, want abc123 with no error", code, err)
	}
	if session.CodeExchanged() {
		t.Error("codeExchanged = true before any exchange")
	}
}

func TestHandleCallbackRejectsStateMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query url.Values
	}{
		{"wrong state", url.Values{"code": {"abc123"}, "state": {"not-the-state"}}},
		{"missing state", url.Values{"code": {"abc123"}}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			session, _ := pendingSession(t)
			err := session.HandleCallback(tt.query)
			if !HasCode(err, ErrorInvalidReturnedState) {
				t.Fatalf("HandleCallback() error = %v, want InvalidReturnedState", err)
			}
			if _, _, errPending := session.pendingExchange(); errPending == nil {
				t.Error("code was stored despite state mismatch")
			}
		})
	}
}

func TestHandleCallbackRejectsCodeWithoutPendingAttempt(t *testing.T) {
	t.Parallel()

	session := NewSessionState()
	err := session.HandleCallback(url.Values{"code": {"abc123"}})
	if !HasCode(err, ErrorInvalidReturnedState) {
		t.Fatalf("HandleCallback() error = %v, want InvalidReturnedState", err)
	}
}

func TestHandleCallbackErrorTakesPrecedence(t *testing.T) {
	t.Parallel()

	session, state := pendingSession(t)
	// All other parameters present and valid; the error still wins.
	query := url.Values{
		"error": {"access_denied"},
		"code":  {"abc123"},
		"state": {state},
	}
	err := session.HandleCallback(query)
	if !HasCode(err, ErrorAccessDenied) {
		t.Fatalf("HandleCallback() error = %v, want AccessDenied", err)
	}
	if _, _, errPending := session.pendingExchange(); errPending == nil {
		t.Error("code was stored despite provider error")
	}
}

func TestHandleCallbackMissingCodeIsNonFatal(t *testing.T) {
	t.Parallel()

	session, state := pendingSession(t)
	err := session.HandleCallback(url.Values{})
	if !HasCode(err, ErrorNoAuthCode) {
		t.Fatalf("HandleCallback() error = %v, want NoAuthCode", err)
	}
	oauthErr, _ := err.(*OAuthError)
	if !oauthErr.Local() {
		t.Error("NoAuthCode should be a locally detected error")
	}
	// The attempt must stay pending, untouched by the stray request.
	if session.CSRFState() != state {
		t.Error("stray request mutated the pending attempt")
	}
}

func TestHandleCallbackDuplicateCode(t *testing.T) {
	t.Parallel()

	session, state := pendingSession(t)
	accept := url.Values{"code": {"abc123"}, "state": {state}}
	if err := session.HandleCallback(accept); err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	// Same code again: harmless no-op.
	if err := session.HandleCallback(accept); err != nil {
		t.Errorf("duplicate identical code: error = %v, want nil", err)
	}

	// Different code: rejected without replacing the accepted one.
	conflict := url.Values{"code": {"other456"}, "state": {state}}
	err := session.HandleCallback(conflict)
	if !IsAuthErrorType(err, ErrCallbackConflict) {
		t.Fatalf("different code: error = %v, want callback_conflict", err)
	}
	if code, _, _ := session.pendingExchange(); code != "abc123" {
		t.Errorf("stored code = %q, want the first accepted code abc123", code)
	}
}

func TestBuildAuthorizationURLRoundTrip(t *testing.T) {
	t.Parallel()

	auth := &EdgeAuth{
		authEndpoint: AuthEndpoint,
		redirectURI:  "http://localhost:8976/oauth/callback",
	}
	session := NewSessionState()
	authURL, err := auth.BuildAuthorizationURL(session)
	if err != nil {
		t.Fatalf("BuildAuthorizationURL() error = %v", err)
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("authorization URL does not parse: %v", err)
	}
	query := parsed.Query()

	if got := query.Get("response_type"); got != "code" {
		t.Errorf("response_type = %q, want code", got)
	}
	if got := query.Get("code_challenge_method"); got != "S256" {
		t.Errorf("code_challenge_method = %q, want S256", got)
	}
	if got := query.Get("client_id"); got != ClientID {
		t.Errorf("client_id = %q, want %q", got, ClientID)
	}
	scopes := ParseScopes(query.Get("scope"))
	found := false
	for _, s := range scopes {
		if s == ScopeOfflineAccess {
			found = true
		}
	}
	if !found {
		t.Error("scope list is missing offline_access")
	}

	// Feeding back the exact state succeeds.
	state := query.Get("state")
	if state != session.CSRFState() {
		t.Errorf("URL state %q differs from session state %q", state, session.CSRFState())
	}
	if err = session.HandleCallback(url.Values{"code": {"abc123"}, "state": {state}}); err != nil {
		t.Errorf("round-trip callback failed: %v", err)
	}
}

func TestBuildAuthorizationURLInvalidatesPriorAttempt(t *testing.T) {
	t.Parallel()

	auth := &EdgeAuth{authEndpoint: AuthEndpoint, redirectURI: "http://localhost:8976/oauth/callback"}
	session := NewSessionState()

	first, err := auth.BuildAuthorizationURL(session)
	if err != nil {
		t.Fatalf("BuildAuthorizationURL() error = %v", err)
	}
	firstState := mustQueryParam(t, first, "state")

	if _, err = auth.BuildAuthorizationURL(session); err != nil {
		t.Fatalf("BuildAuthorizationURL() error = %v", err)
	}

	// The first attempt's state no longer validates.
	err = session.HandleCallback(url.Values{"code": {"abc123"}, "state": {firstState}})
	if !HasCode(err, ErrorInvalidReturnedState) {
		t.Errorf("stale state: error = %v, want InvalidReturnedState", err)
	}
}

func mustQueryParam(t *testing.T, rawURL, key string) string {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", rawURL, err)
	}
	value := parsed.Query().Get(key)
	if value == "" {
		t.Fatalf("URL %q missing query parameter %q", rawURL, key)
	}
	return value
}

func TestIsExpired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		seed    func(s *SessionState)
		want    bool
		wantHas bool
	}{
		{
			"no token stored",
			func(s *SessionState) {},
			false,
			false,
		},
		{
			"expiry in the past",
			func(s *SessionState) { s.Seed("tok", time.Now().Add(-time.Minute), "", nil) },
			true,
			true,
		},
		{
			"expiry in the future",
			func(s *SessionState) { s.Seed("tok", time.Now().Add(time.Hour), "", nil) },
			false,
			true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			session := NewSessionState()
			tt.seed(session)
			if got := session.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %t, want %t", got, tt.want)
			}
			if got := session.HasAccessToken(); got != tt.wantHas {
				t.Errorf("HasAccessToken() = %t, want %t", got, tt.wantHas)
			}
		})
	}
}

func TestCompleteExchangeRetainsRefreshTokenWhenAbsent(t *testing.T) {
	t.Parallel()

	session := NewSessionState()
	session.Seed("old", time.Now().Add(-time.Minute), "refresh-1", []Scope{ScopeAccountRead})

	accessCtx := session.completeExchange(AccessToken{Value: "new", ExpiresAt: time.Now().Add(time.Hour)}, nil, nil, false)

	if session.RefreshTokenValue() != "refresh-1" {
		t.Errorf("refresh token = %q, want retained refresh-1", session.RefreshTokenValue())
	}
	if accessCtx.RefreshToken == nil || accessCtx.RefreshToken.Value != "refresh-1" {
		t.Error("AccessContext does not carry the retained refresh token")
	}
	if len(accessCtx.Scopes) != 1 || accessCtx.Scopes[0] != ScopeAccountRead {
		t.Errorf("AccessContext scopes = %v, want retained [account:read]", accessCtx.Scopes)
	}
}

func TestClearAuthorizationAttemptKeepsTokens(t *testing.T) {
	t.Parallel()

	session, _ := pendingSession(t)
	session.Seed("tok", time.Now().Add(time.Hour), "refresh", nil)

	session.ClearAuthorizationAttempt()

	if session.CSRFState() != "" {
		t.Error("csrfState not cleared")
	}
	if _, _, err := session.pendingExchange(); err == nil {
		t.Error("pending exchange material not cleared")
	}
	if !session.HasAccessToken() || session.RefreshTokenValue() != "refresh" {
		t.Error("stored tokens must survive an abandoned attempt")
	}
}

package edge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/edgeworks-dev/edgectl/internal/config"
	"github.com/edgeworks-dev/edgectl/internal/util"
	log "github.com/sirupsen/logrus"
)

// tokenResponse models the token endpoint response. Error-shaped bodies use
// the same struct: a non-empty Error field marks the response as a failure
// regardless of HTTP status.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	Scope            string `json:"scope,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// EdgeAuth handles the Edgeworks OAuth2 authorization code flow with PKCE.
// It builds authorization URLs, exchanges authorization codes and refresh
// tokens for access tokens, and revokes refresh tokens at logout.
type EdgeAuth struct {
	httpClient *http.Client

	authEndpoint   string
	tokenEndpoint  string
	revokeEndpoint string
	redirectURI    string
}

// NewEdgeAuth creates a new Edgeworks authentication service with a
// proxy-aware HTTP client. The callback port may be overridden through the
// configuration; the provider must have the chosen redirect URI registered.
func NewEdgeAuth(cfg *config.Config) *EdgeAuth {
	port := cfg.CallbackPort
	if port <= 0 {
		port = CallbackPort
	}
	client := &http.Client{Timeout: 30 * time.Second}
	return &EdgeAuth{
		httpClient:     util.SetProxy(cfg, client),
		authEndpoint:   AuthEndpoint,
		tokenEndpoint:  TokenEndpoint,
		revokeEndpoint: RevokeEndpoint,
		redirectURI:    fmt.Sprintf("http://localhost:%d%s", port, CallbackPath),
	}
}

// RedirectURI returns the local redirect URI this service registered in its
// authorization request.
func (ea *EdgeAuth) RedirectURI() string {
	return ea.redirectURI
}

// BuildAuthorizationURL generates fresh PKCE codes and an anti-CSRF state
// token, stores both into the session (invalidating any in-flight prior
// attempt), and renders the URL the user must visit. The verifier never
// leaves the process; only the S256 challenge is sent.
func (ea *EdgeAuth) BuildAuthorizationURL(session *SessionState) (string, error) {
	pkce, err := GeneratePKCECodes()
	if err != nil {
		return "", fmt.Errorf("failed to generate PKCE codes: %w", err)
	}
	state, err := GenerateState(StateLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	session.BeginAuthorizationAttempt(pkce, state)

	scopes := append(append([]Scope(nil), RequestedScopes...), ScopeOfflineAccess)
	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {ClientID},
		"redirect_uri":          {ea.redirectURI},
		"scope":                 {JoinScopes(scopes)},
		"state":                 {state},
		"code_challenge":        {pkce.CodeChallenge},
		"code_challenge_method": {"S256"},
	}

	return fmt.Sprintf("%s?%s", ea.authEndpoint, params.Encode()), nil
}

// ExchangeAuthorizationCode trades the stored authorization code for an
// access/refresh token pair. The stored PKCE verifier proves possession of
// the original request. On success the session is updated as a single
// atomic replace and the resulting AccessContext is returned for
// persistence; on failure the session is left unmodified. An invalid_grant
// response signals the code/verifier pair expired or was already consumed.
func (ea *EdgeAuth) ExchangeAuthorizationCode(ctx context.Context, session *SessionState) (*AccessContext, error) {
	code, verifier, err := session.pendingExchange()
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", ea.redirectURI)
	form.Set("client_id", ClientID)
	form.Set("code_verifier", verifier)

	tokenResp, err := ea.doTokenRequest(ctx, form)
	if err != nil {
		return nil, err
	}

	return ea.applyTokenResponse(session, tokenResp, true), nil
}

// ExchangeRefreshToken trades the stored refresh token for a new access
// token at the same endpoint, with the same response handling and atomic
// session update. Calling it without a stored refresh token is a usage
// error reported before any network call is attempted.
func (ea *EdgeAuth) ExchangeRefreshToken(ctx context.Context, session *SessionState) (*AccessContext, error) {
	refreshToken := session.RefreshTokenValue()
	if refreshToken == "" {
		return nil, NewAuthenticationError(ErrNoRefreshToken, nil)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", ClientID)

	tokenResp, err := ea.doTokenRequest(ctx, form)
	if err != nil {
		return nil, err
	}

	return ea.applyTokenResponse(session, tokenResp, false), nil
}

// applyTokenResponse converts a successful token response into session state
// and the AccessContext handed to persistence. Expiry is absolute, computed
// as issue time plus the provider-declared expires_in seconds.
func (ea *EdgeAuth) applyTokenResponse(session *SessionState, tokenResp *tokenResponse, fromCode bool) *AccessContext {
	token := AccessToken{
		Value:     tokenResp.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}
	var refresh *RefreshToken
	if tokenResp.RefreshToken != "" {
		refresh = &RefreshToken{Value: tokenResp.RefreshToken}
	}
	return session.completeExchange(token, refresh, ParseScopes(tokenResp.Scope), fromCode)
}

// doTokenRequest POSTs a form-encoded body to the token endpoint and
// normalizes the response. A non-success status and a success status with an
// error-shaped body are treated identically: the error field is classified
// and surfaced. A body that cannot be parsed at all fails with InvalidJson.
// Transport failures are returned as plain wrapped errors, never OAuthError.
func (ea *EdgeAuth) doTokenRequest(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ea.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := ea.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("failed to close response body: %v", errClose)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	var tokenResp tokenResponse
	if err = json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &OAuthError{
			Code:        ErrorInvalidJSON,
			Description: "token endpoint returned an unparseable body",
			StatusCode:  resp.StatusCode,
		}
	}

	if tokenResp.Error != "" || resp.StatusCode != http.StatusOK {
		log.Debugf("token request rejected: status=%d error=%q", resp.StatusCode, tokenResp.Error)
		return nil, NewProviderError(tokenResp.Error, tokenResp.ErrorDescription, resp.StatusCode)
	}

	return &tokenResp, nil
}

// Revoke invalidates the stored refresh token at logout. The request carries
// an empty token when none is stored; the provider no-ops rather than
// erroring. The response body is not interpreted and provider-level
// rejections are ignored, but network-level failures still propagate.
func (ea *EdgeAuth) Revoke(ctx context.Context, session *SessionState) error {
	form := url.Values{}
	form.Set("client_id", ClientID)
	form.Set("token_type_hint", "refresh_token")
	form.Set("token", session.RefreshTokenValue())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ea.revokeEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ea.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Debugf("revoke endpoint returned status %d, ignoring", resp.StatusCode)
	}
	return nil
}

package edge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/edgeworks-dev/edgectl/internal/misc"
)

// TokenFileName is the single credential file the CLI maintains.
const TokenFileName = "edgeworks.json"

// EdgeTokenStorage stores OAuth2 token information for the Edgeworks
// platform. It is the durable form of an AccessContext: access token value,
// absolute expiry, refresh token, and granted scopes, and is read back at
// process start to seed the session without a fresh login.
type EdgeTokenStorage struct {
	// AccessToken is the OAuth2 access token used for authenticating API requests.
	AccessToken string `json:"access_token"`

	// RefreshToken is used to obtain new access tokens when the current one expires.
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scopes lists the capability scopes granted to the access token.
	Scopes []string `json:"scopes,omitempty"`

	// Expire is the RFC3339 timestamp when the current access token expires.
	Expire string `json:"expired"`

	// LastRefresh is the timestamp of the last token exchange or refresh.
	LastRefresh string `json:"last_refresh"`

	// Type indicates the authentication provider type, always "edgeworks".
	Type string `json:"type"`
}

// CreateTokenStorage converts the result of a successful exchange into a
// token storage structure suitable for persistence.
func (ea *EdgeAuth) CreateTokenStorage(accessCtx *AccessContext) *EdgeTokenStorage {
	if accessCtx == nil {
		return nil
	}
	storage := &EdgeTokenStorage{
		AccessToken: accessCtx.Token.Value,
		Expire:      accessCtx.Token.ExpiresAt.Format(time.RFC3339),
		LastRefresh: time.Now().Format(time.RFC3339),
	}
	if accessCtx.RefreshToken != nil {
		storage.RefreshToken = accessCtx.RefreshToken.Value
	}
	for _, s := range accessCtx.Scopes {
		storage.Scopes = append(storage.Scopes, string(s))
	}
	return storage
}

// UpdateTokenStorage refreshes an existing token storage after a successful
// refresh, keeping fields the provider did not rotate.
func (ea *EdgeAuth) UpdateTokenStorage(storage *EdgeTokenStorage, accessCtx *AccessContext) {
	if storage == nil || accessCtx == nil {
		return
	}
	storage.AccessToken = accessCtx.Token.Value
	storage.Expire = accessCtx.Token.ExpiresAt.Format(time.RFC3339)
	storage.LastRefresh = time.Now().Format(time.RFC3339)
	if accessCtx.RefreshToken != nil {
		storage.RefreshToken = accessCtx.RefreshToken.Value
	}
	if len(accessCtx.Scopes) > 0 {
		storage.Scopes = storage.Scopes[:0]
		for _, s := range accessCtx.Scopes {
			storage.Scopes = append(storage.Scopes, string(s))
		}
	}
}

// SeedSession loads the stored credentials into a session so the CLI can
// resume with a silent refresh instead of a full login.
func (ts *EdgeTokenStorage) SeedSession(session *SessionState) {
	expiresAt, err := time.Parse(time.RFC3339, ts.Expire)
	if err != nil {
		// A corrupt expiry forces the refresh path rather than losing the session.
		expiresAt = time.Now().Add(-time.Minute)
	}
	var scopes []Scope
	for _, s := range ts.Scopes {
		scopes = append(scopes, Scope(s))
	}
	session.Seed(ts.AccessToken, expiresAt, ts.RefreshToken, scopes)
}

// SaveTokenToFile serializes the token storage to a JSON file, creating the
// directory structure as needed.
func (ts *EdgeTokenStorage) SaveTokenToFile(authFilePath string) error {
	misc.LogSavingCredentials(authFilePath)
	ts.Type = "edgeworks"

	if err := os.MkdirAll(filepath.Dir(authFilePath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(authFilePath)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if err = json.NewEncoder(f).Encode(ts); err != nil {
		return fmt.Errorf("failed to write token to file: %w", err)
	}
	return nil
}

// LoadTokenFromFile reads a previously saved token storage. A missing file
// is reported through os.IsNotExist on the returned error.
func LoadTokenFromFile(authFilePath string) (*EdgeTokenStorage, error) {
	f, err := os.Open(authFilePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	var ts EdgeTokenStorage
	if err = json.NewDecoder(f).Decode(&ts); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &ts, nil
}

// Package cmd implements the top-level operations the edgectl binary
// dispatches to: interactive login, logout, and session status.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/edgeworks-dev/edgectl/internal/auth/edge"
	"github.com/edgeworks-dev/edgectl/internal/browser"
	"github.com/edgeworks-dev/edgectl/internal/config"
	"github.com/edgeworks-dev/edgectl/internal/misc"
	"github.com/edgeworks-dev/edgectl/internal/util"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// callbackWait bounds how long the CLI waits for the user to finish
// authenticating in the browser.
const callbackWait = 5 * time.Minute

// LoginOptions captures knobs shared across the login entry points.
type LoginOptions struct {
	NoBrowser    bool
	CallbackPort int
	Prompt       func(prompt string) (string, error)
}

// DoLogin runs the full authorization code flow: build the authorization
// URL, send the user to the browser (or print the URL), capture the
// callback, exchange the code, and persist the resulting credentials.
func DoLogin(cfg *config.Config, options *LoginOptions) {
	if options == nil {
		options = &LoginOptions{}
	}
	if options.CallbackPort > 0 {
		cfg.CallbackPort = options.CallbackPort
	}

	attemptID := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	logger := log.WithField("attempt_id", attemptID)

	session := edge.NewSessionState()
	auth := edge.NewEdgeAuth(cfg)

	authURL, err := auth.BuildAuthorizationURL(session)
	if err != nil {
		fmt.Printf("Edgeworks authentication failed: %v\n", err)
		return
	}

	if options.NoBrowser && options.Prompt != nil {
		err = completeViaPrompt(session, options.Prompt, authURL)
	} else {
		err = completeViaCallback(cfg, session, options, authURL, logger)
	}
	if err != nil {
		reportLoginFailure(err)
		return
	}

	accessCtx, err := auth.ExchangeAuthorizationCode(context.Background(), session)
	if err != nil {
		reportLoginFailure(err)
		return
	}
	logger.Debug("authorization code exchanged")

	tokenPath, err := resolveTokenPath(cfg)
	if err != nil {
		fmt.Printf("Failed to resolve auth directory: %v\n", err)
		return
	}
	misc.LogCredentialSeparator()
	storage := auth.CreateTokenStorage(accessCtx)
	if err = storage.SaveTokenToFile(tokenPath); err != nil {
		fmt.Printf("Failed to save credentials: %v\n", err)
		return
	}
	misc.LogCredentialSeparator()

	fmt.Printf("Authentication saved to %s\n", tokenPath)
	fmt.Println("Edgeworks authentication successful!")
}

// completeViaCallback runs the local callback listener and steers the user's
// browser at the authorization URL.
func completeViaCallback(cfg *config.Config, session *edge.SessionState, options *LoginOptions, authURL string, logger *log.Entry) error {
	port := cfg.CallbackPort
	if port <= 0 {
		port = edge.CallbackPort
	}

	server := edge.NewCallbackServer(session, port)
	if err := server.Start(); err != nil {
		if edge.IsAuthErrorType(err, edge.ErrPortInUse) {
			log.Error(edge.GetUserFriendlyMessage(err))
			os.Exit(edge.ErrPortInUse.Code)
		}
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errStop := server.Stop(shutdownCtx); errStop != nil {
			logger.Debugf("failed to stop callback server: %v", errStop)
		}
	}()

	if options.NoBrowser || !browser.IsAvailable() {
		printAuthURL(authURL)
	} else if err := browser.OpenURL(authURL); err != nil {
		logger.Debugf("failed to open browser: %v", err)
		printAuthURL(authURL)
	}

	logger.Debug("waiting for OAuth callback")
	return server.WaitForCallback(callbackWait)
}

// completeViaPrompt asks the user to paste the redirect URL instead of
// running a listener, for terminals where the callback cannot be received.
func completeViaPrompt(session *edge.SessionState, prompt func(string) (string, error), authURL string) error {
	printAuthURL(authURL)

	input, err := prompt("Paste the full redirect URL here: ")
	if err != nil {
		return fmt.Errorf("failed to read redirect URL: %w", err)
	}
	callback, err := misc.ParseOAuthCallback(input)
	if err != nil {
		return fmt.Errorf("failed to parse redirect URL: %w", err)
	}
	if callback == nil {
		return fmt.Errorf("no redirect URL provided")
	}
	return session.HandleCallback(callback.Values())
}

// printAuthURL shows the authorization URL and copies it to the clipboard on
// a best-effort basis.
func printAuthURL(authURL string) {
	fmt.Println("Open the following URL in your browser to log in:")
	fmt.Println(authURL)
	if err := clipboard.WriteAll(authURL); err == nil {
		fmt.Println("(the URL has been copied to your clipboard)")
	}
}

func reportLoginFailure(err error) {
	if edge.IsAuthenticationError(err) || edge.IsOAuthError(err) {
		log.Error(edge.GetUserFriendlyMessage(err))
		log.Debugf("login failed: %v", err)
		return
	}
	fmt.Printf("Edgeworks authentication failed: %v\n", err)
}

// DoLogout revokes the stored refresh token and removes the local
// credential file. The file is removed even when revocation cannot reach
// the provider so the local machine ends up logged out either way.
func DoLogout(cfg *config.Config) {
	tokenPath, err := resolveTokenPath(cfg)
	if err != nil {
		fmt.Printf("Failed to resolve auth directory: %v\n", err)
		return
	}

	storage, err := edge.LoadTokenFromFile(tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Not logged in.")
			return
		}
		fmt.Printf("Failed to load credentials: %v\n", err)
		return
	}

	session := edge.NewSessionState()
	storage.SeedSession(session)

	auth := edge.NewEdgeAuth(cfg)
	if err = auth.Revoke(context.Background(), session); err != nil {
		log.Warnf("failed to revoke refresh token: %v", err)
	}

	if err = os.Remove(tokenPath); err != nil {
		fmt.Printf("Failed to remove credential file: %v\n", err)
		return
	}
	fmt.Println("Logged out of Edgeworks.")
}

// DoStatus prints the session status, silently refreshing the access token
// when the stored one has expired. "No token" and "expired token" diverge
// here on purpose: the former needs a full login, the latter only a refresh.
func DoStatus(cfg *config.Config) {
	tokenPath, err := resolveTokenPath(cfg)
	if err != nil {
		fmt.Printf("Failed to resolve auth directory: %v\n", err)
		return
	}

	storage, err := edge.LoadTokenFromFile(tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Not logged in. Run `edgectl -login` to authenticate.")
			return
		}
		fmt.Printf("Failed to load credentials: %v\n", err)
		return
	}

	session := edge.NewSessionState()
	storage.SeedSession(session)

	if !session.HasAccessToken() {
		fmt.Println("Not logged in. Run `edgectl -login` to authenticate.")
		return
	}

	auth := edge.NewEdgeAuth(cfg)
	if session.IsExpired() {
		log.Debug("access token expired, refreshing")
		accessCtx, errRefresh := auth.ExchangeRefreshToken(context.Background(), session)
		if errRefresh != nil {
			if edge.HasCode(errRefresh, edge.ErrorInvalidGrant) || edge.IsAuthErrorType(errRefresh, edge.ErrNoRefreshToken) {
				fmt.Println("Your session has expired. Run `edgectl -login` to authenticate again.")
				return
			}
			fmt.Printf("Failed to refresh session: %v\n", errRefresh)
			return
		}
		auth.UpdateTokenStorage(storage, accessCtx)
		if err = storage.SaveTokenToFile(tokenPath); err != nil {
			fmt.Printf("Failed to save refreshed credentials: %v\n", err)
			return
		}
	}

	fmt.Println("Logged in to Edgeworks.")
	fmt.Printf("Access token expires at %s\n", session.AccessTokenExpiry().Format(time.RFC3339))
	if scopes := session.GrantedScopes(); len(scopes) > 0 {
		fmt.Printf("Granted scopes: %s\n", edge.JoinScopes(scopes))
	}
}

// resolveTokenPath expands the configured auth directory and appends the
// credential file name.
func resolveTokenPath(cfg *config.Config) (string, error) {
	authDir, err := util.ResolveAuthDir(cfg.AuthDir)
	if err != nil {
		return "", err
	}
	if authDir == "" {
		authDir = "."
	}
	return filepath.Join(authDir, edge.TokenFileName), nil
}

// DefaultPrompt reads one line from stdin in response to a prompt. It is the
// Prompt used when no-browser logins run interactively.
func DefaultPrompt() func(string) (string, error) {
	reader := bufio.NewReader(os.Stdin)
	return func(prompt string) (string, error) {
		fmt.Print(prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}

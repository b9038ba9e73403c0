package edge

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the discriminant of the OAuth error taxonomy. Every raw
// provider error string maps to exactly one code; unrecognized strings map
// to ErrorUnknown so a misbehaving provider cannot crash the caller.
type ErrorCode string

// Generic errors detected locally rather than declared by the provider.
const (
	ErrorUnknown              ErrorCode = "unknown"
	ErrorNoAuthCode           ErrorCode = "no_auth_code"
	ErrorInvalidReturnedState ErrorCode = "invalid_returned_state"
	ErrorInvalidJSON          ErrorCode = "invalid_json"
)

// Cross-cutting errors the provider may return on either endpoint.
const (
	ErrorInvalidScope   ErrorCode = "invalid_scope"
	ErrorInvalidRequest ErrorCode = "invalid_request"
	ErrorInvalidToken   ErrorCode = "invalid_token"
)

// Authorization-grant errors returned on the authorization redirect.
const (
	ErrorUnauthorizedClient      ErrorCode = "unauthorized_client"
	ErrorAccessDenied            ErrorCode = "access_denied"
	ErrorUnsupportedResponseType ErrorCode = "unsupported_response_type"
	ErrorServerError             ErrorCode = "server_error"
	ErrorTemporarilyUnavailable  ErrorCode = "temporarily_unavailable"
)

// Access-token-response errors returned by the token endpoint.
const (
	ErrorInvalidClient        ErrorCode = "invalid_client"
	ErrorInvalidGrant         ErrorCode = "invalid_grant"
	ErrorUnsupportedGrantType ErrorCode = "unsupported_grant_type"
)

// providerErrorCodes is the fixed classification table for raw provider
// error strings (RFC 6749 sections 4.1.2.1 and 5.2).
var providerErrorCodes = map[string]ErrorCode{
	"invalid_scope":             ErrorInvalidScope,
	"invalid_request":           ErrorInvalidRequest,
	"invalid_token":             ErrorInvalidToken,
	"unauthorized_client":       ErrorUnauthorizedClient,
	"access_denied":             ErrorAccessDenied,
	"unsupported_response_type": ErrorUnsupportedResponseType,
	"server_error":              ErrorServerError,
	"temporarily_unavailable":   ErrorTemporarilyUnavailable,
	"invalid_client":            ErrorInvalidClient,
	"invalid_grant":             ErrorInvalidGrant,
	"unsupported_grant_type":    ErrorUnsupportedGrantType,
}

// Classify maps a raw provider error string to its taxonomy code.
func Classify(raw string) ErrorCode {
	if code, ok := providerErrorCodes[raw]; ok {
		return code
	}
	return ErrorUnknown
}

// OAuthError represents a classified OAuth protocol error.
type OAuthError struct {
	// Code is the taxonomy code this error classified to.
	Code ErrorCode `json:"code"`
	// Raw is the raw provider error string, empty for locally detected failures.
	Raw string `json:"error,omitempty"`
	// Description is the provider's error_description, if any.
	Description string `json:"error_description,omitempty"`
	// StatusCode is the HTTP status code associated with the error, if any.
	StatusCode int `json:"-"`
}

// Error returns a string representation of the OAuth error.
func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("OAuth error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("OAuth error: %s", e.Code)
}

// Local reports whether the error was detected locally (state mismatch,
// missing code, unparseable body) rather than declared by the provider.
// Callers treat the two differently: a state mismatch is a security event,
// while a missing code is usually benign browser prefetch noise.
func (e *OAuthError) Local() bool {
	switch e.Code {
	case ErrorNoAuthCode, ErrorInvalidReturnedState, ErrorInvalidJSON:
		return true
	}
	return false
}

// NewProviderError builds an OAuthError from a raw provider error response.
func NewProviderError(raw, description string, statusCode int) *OAuthError {
	return &OAuthError{
		Code:        Classify(raw),
		Raw:         raw,
		Description: description,
		StatusCode:  statusCode,
	}
}

// HasCode reports whether err is an OAuthError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var oauthErr *OAuthError
	return errors.As(err, &oauthErr) && oauthErr.Code == code
}

// IsOAuthError checks if an error is an OAuth error.
func IsOAuthError(err error) bool {
	var oauthErr *OAuthError
	return errors.As(err, &oauthErr)
}

// AuthenticationError represents failures of the login machinery itself,
// as opposed to protocol errors returned by the provider.
type AuthenticationError struct {
	// Type is the type of authentication error.
	Type string `json:"type"`
	// Message is a human-readable message describing the error.
	Message string `json:"message"`
	// Code is the HTTP status (or process exit) code associated with the error.
	Code int `json:"code"`
	// Cause is the underlying error that caused this authentication error.
	Cause error `json:"-"`
}

// Error returns a string representation of the authentication error.
func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Common authentication error types.
var (
	// ErrNoRefreshToken reports a refresh attempt without a stored refresh
	// token. This is a usage error surfaced before any network call is made.
	ErrNoRefreshToken = &AuthenticationError{
		Type:    "no_refresh_token",
		Message: "no refresh token stored; a full login is required",
		Code:    http.StatusBadRequest,
	}

	// ErrNoPendingAuthorization reports a code exchange attempted without a
	// pending authorization attempt (no stored code or PKCE material).
	ErrNoPendingAuthorization = &AuthenticationError{
		Type:    "no_pending_authorization",
		Message: "no pending authorization attempt to exchange",
		Code:    http.StatusBadRequest,
	}

	// ErrCallbackConflict reports a callback delivering a different
	// authorization code after one was already accepted.
	ErrCallbackConflict = &AuthenticationError{
		Type:    "callback_conflict",
		Message: "a different authorization code was already accepted",
		Code:    http.StatusConflict,
	}

	// ErrServerStartFailed represents an error when starting the OAuth callback server fails.
	ErrServerStartFailed = &AuthenticationError{
		Type:    "server_start_failed",
		Message: "failed to start OAuth callback server",
		Code:    http.StatusInternalServerError,
	}

	// ErrPortInUse represents an error when the OAuth callback port is already in use.
	ErrPortInUse = &AuthenticationError{
		Type:    "port_in_use",
		Message: "OAuth callback port is already in use",
		Code:    13, // Special exit code for port-in-use
	}

	// ErrCallbackTimeout represents an error when waiting for the OAuth callback times out.
	ErrCallbackTimeout = &AuthenticationError{
		Type:    "callback_timeout",
		Message: "timeout waiting for OAuth callback",
		Code:    http.StatusRequestTimeout,
	}
)

// NewAuthenticationError creates a new authentication error with a cause based on a base error.
func NewAuthenticationError(baseErr *AuthenticationError, cause error) *AuthenticationError {
	return &AuthenticationError{
		Type:    baseErr.Type,
		Message: baseErr.Message,
		Code:    baseErr.Code,
		Cause:   cause,
	}
}

// IsAuthenticationError checks if an error is an authentication error.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// IsAuthErrorType reports whether err is an AuthenticationError of the given base type.
func IsAuthErrorType(err error, base *AuthenticationError) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr) && authErr.Type == base.Type
}

// GetUserFriendlyMessage returns a user-friendly error message based on the error type.
func GetUserFriendlyMessage(err error) string {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		switch authErr.Type {
		case ErrNoRefreshToken.Type:
			return "Your session cannot be refreshed. Please log in again."
		case ErrPortInUse.Type:
			return fmt.Sprintf("The required port is already in use. Please close any application using port %d and try again.", CallbackPort)
		case ErrCallbackTimeout.Type:
			return "Authentication timed out. Please try again."
		default:
			return "Authentication failed. Please try again."
		}
	}
	var oauthErr *OAuthError
	if errors.As(err, &oauthErr) {
		switch oauthErr.Code {
		case ErrorAccessDenied:
			return "Authentication was cancelled or denied."
		case ErrorInvalidReturnedState:
			return "The authorization response failed validation. Please try logging in again."
		case ErrorInvalidGrant:
			return "The authorization expired before it could be completed. Please log in again."
		case ErrorServerError, ErrorTemporarilyUnavailable:
			return "The authentication server is unavailable. Please try again later."
		default:
			if oauthErr.Description != "" {
				return fmt.Sprintf("Authentication failed: %s", oauthErr.Description)
			}
			return fmt.Sprintf("Authentication failed: %s", oauthErr.Code)
		}
	}
	return "An unexpected error occurred. Please try again."
}

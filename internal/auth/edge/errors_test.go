package edge

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want ErrorCode
	}{
		{"invalid_scope", ErrorInvalidScope},
		{"invalid_request", ErrorInvalidRequest},
		{"invalid_token", ErrorInvalidToken},
		{"unauthorized_client", ErrorUnauthorizedClient},
		{"access_denied", ErrorAccessDenied},
		{"unsupported_response_type", ErrorUnsupportedResponseType},
		{"server_error", ErrorServerError},
		{"temporarily_unavailable", ErrorTemporarilyUnavailable},
		{"invalid_client", ErrorInvalidClient},
		{"invalid_grant", ErrorInvalidGrant},
		{"unsupported_grant_type", ErrorUnsupportedGrantType},
		{"made_up_error", ErrorUnknown},
		{"", ErrorUnknown},
		{"ACCESS_DENIED", ErrorUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.raw); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestOAuthErrorLocal(t *testing.T) {
	t.Parallel()

	local := []ErrorCode{ErrorNoAuthCode, ErrorInvalidReturnedState, ErrorInvalidJSON}
	for _, code := range local {
		if !(&OAuthError{Code: code}).Local() {
			t.Errorf("(%q).Local() = false, want true", code)
		}
	}
	provider := []ErrorCode{ErrorUnknown, ErrorAccessDenied, ErrorInvalidGrant, ErrorServerError}
	for _, code := range provider {
		if (&OAuthError{Code: code}).Local() {
			t.Errorf("(%q).Local() = true, want false", code)
		}
	}
}

func TestHasCode(t *testing.T) {
	t.Parallel()

	err := NewProviderError("invalid_grant", "code expired", 400)
	if !HasCode(err, ErrorInvalidGrant) {
		t.Error("HasCode() = false for matching code")
	}
	if HasCode(err, ErrorAccessDenied) {
		t.Error("HasCode() = true for non-matching code")
	}
	wrapped := fmt.Errorf("exchange failed: %w", err)
	if !HasCode(wrapped, ErrorInvalidGrant) {
		t.Error("HasCode() = false for wrapped error")
	}
	if HasCode(errors.New("plain"), ErrorInvalidGrant) {
		t.Error("HasCode() = true for non-OAuth error")
	}
}

func TestIsAuthErrorType(t *testing.T) {
	t.Parallel()

	err := NewAuthenticationError(ErrCallbackTimeout, nil)
	if !IsAuthErrorType(err, ErrCallbackTimeout) {
		t.Error("IsAuthErrorType() = false for matching type")
	}
	if IsAuthErrorType(err, ErrPortInUse) {
		t.Error("IsAuthErrorType() = true for non-matching type")
	}
	if IsAuthErrorType(errors.New("plain"), ErrCallbackTimeout) {
		t.Error("IsAuthErrorType() = true for plain error")
	}
}

func TestGetUserFriendlyMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"access denied",
			NewProviderError("access_denied", "", 0),
			"Authentication was cancelled or denied.",
		},
		{
			"callback timeout",
			NewAuthenticationError(ErrCallbackTimeout, nil),
			"Authentication timed out. Please try again.",
		},
		{
			"state mismatch",
			&OAuthError{Code: ErrorInvalidReturnedState},
			"The authorization response failed validation. Please try logging in again.",
		},
		{
			"plain error",
			errors.New("boom"),
			"An unexpected error occurred. Please try again.",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := GetUserFriendlyMessage(tt.err); got != tt.want {
				t.Errorf("GetUserFriendlyMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Package misc holds small helpers shared across the edgectl CLI: credential
// logging and tolerant parsing of manually pasted OAuth callback URLs.
package misc

import (
	"fmt"
	"net/url"
	"strings"
)

// OAuthCallback captures the parsed OAuth callback parameters.
type OAuthCallback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// Values renders the callback back into query parameters, the form the
// session's callback handler consumes.
func (c *OAuthCallback) Values() url.Values {
	values := url.Values{}
	if c.Code != "" {
		values.Set("code", c.Code)
	}
	if c.State != "" {
		values.Set("state", c.State)
	}
	if c.Error != "" {
		values.Set("error", c.Error)
	}
	if c.ErrorDescription != "" {
		values.Set("error_description", c.ErrorDescription)
	}
	return values
}

// ParseOAuthCallback extracts OAuth parameters from a callback URL pasted by
// the user in no-browser mode. It tolerates bare query strings, URLs without
// a scheme, and `key=value` fragments. It returns nil when the input is empty.
func ParseOAuthCallback(input string) (*OAuthCallback, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		if strings.HasPrefix(candidate, "?") {
			candidate = "http://localhost" + candidate
		} else if strings.ContainsAny(candidate, "/?#") || strings.Contains(candidate, ":") {
			candidate = "http://" + candidate
		} else if strings.Contains(candidate, "=") {
			candidate = "http://localhost/?" + candidate
		} else {
			return nil, fmt.Errorf("invalid callback URL")
		}
	}

	parsedURL, err := url.Parse(candidate)
	if err != nil {
		return nil, err
	}

	query := parsedURL.Query()
	code := strings.TrimSpace(query.Get("code"))
	state := strings.TrimSpace(query.Get("state"))
	errCode := strings.TrimSpace(query.Get("error"))
	errDesc := strings.TrimSpace(query.Get("error_description"))

	if code == "" && errCode == "" {
		return nil, fmt.Errorf("callback URL missing code")
	}

	return &OAuthCallback{
		Code:             code,
		State:            state,
		Error:            errCode,
		ErrorDescription: errDesc,
	}, nil
}

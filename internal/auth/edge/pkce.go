package edge

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// verifierCharset is the unreserved URI character set permitted by RFC 7636
// for code verifiers: ALPHA / DIGIT / "-" / "." / "_" / "~".
const verifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// StateLength is the recommended number of random bytes for anti-CSRF state tokens.
const StateLength = 32

// PKCECodes holds a verifier/challenge pair for one authorization attempt.
// The pair is created once per attempt and discarded after the code exchange.
type PKCECodes struct {
	CodeVerifier  string
	CodeChallenge string
}

// GeneratePKCECodes generates a PKCE code verifier and challenge pair
// following RFC 7636. The challenge uses the S256 method, binding the
// authorization code to this client so an intercepted code cannot be
// exchanged by anyone else.
func GeneratePKCECodes() (*PKCECodes, error) {
	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	return &PKCECodes{
		CodeVerifier:  codeVerifier,
		CodeChallenge: generateCodeChallenge(codeVerifier),
	}, nil
}

// generateCodeVerifier creates a cryptographically random verifier.
// 96 bytes is the largest draw whose base64url form (128 characters) still
// fits the 43..128 window RFC 7636 section 4.1 allows.
func generateCodeVerifier() (string, error) {
	bytes, err := randomCharsetBytes(96)
	if err != nil {
		return "", err
	}

	// Encode to URL-safe base64 without padding.
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// generateCodeChallenge creates a SHA-256 hash of the code verifier
// and encodes it using URL-safe base64 encoding without padding.
func generateCodeChallenge(codeVerifier string) string {
	hash := sha256.Sum256([]byte(codeVerifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateState draws length random bytes through the verifier charset to
// produce an anti-CSRF state token of exactly length characters.
func GenerateState(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("state length must be positive, got %d", length)
	}
	bytes, err := randomCharsetBytes(length)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return string(bytes), nil
}

// randomCharsetBytes returns n cryptographically random bytes, each mapped
// modulo the verifier charset. Every call draws fresh entropy.
func randomCharsetBytes(n int) ([]byte, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	for i, b := range bytes {
		bytes[i] = verifierCharset[int(b)%len(verifierCharset)]
	}
	return bytes, nil
}

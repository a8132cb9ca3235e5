// Package auth implements the PKCE primitives (RFC 7636) and the in-flight
// attempt bookkeeping for the Spotify authorization code flow.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// verifierBytes is the raw entropy behind a code verifier. Spotify accepts
	// 43-128 characters of URL-safe base64; 64 bytes encode to 86.
	verifierBytes = 64

	// stateBytes is the entropy behind the state correlation token.
	stateBytes = 32
)

// GenerateVerifier returns a new PKCE code verifier: URL-safe, padding-free
// base64 over 64 bytes from the platform CSPRNG.
func GenerateVerifier() (string, error) {
	return randomToken(verifierBytes)
}

// DeriveChallenge computes the S256 code challenge for a verifier:
// base64url(sha256(verifier)) without padding.
func DeriveChallenge(verifier string) string {
	digest := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// GenerateState returns a random state token correlating a callback with its
// originating login attempt. Independent of the verifier.
func GenerateState() (string, error) {
	return randomToken(stateBytes)
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

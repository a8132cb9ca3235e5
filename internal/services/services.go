package services

import (
	"context"

	"golang.org/x/oauth2"
)

// Authenticator defines the outbound provider operations the relay performs.
//
// The only implementation talks to Spotify; handlers depend on the interface
// so tests can stub the provider.
type Authenticator interface {
	// Name returns the provider name
	Name() string
	// AuthorizeURL builds the provider authorization URL for a login attempt.
	// An empty challenge omits the PKCE parameters.
	AuthorizeURL(state, challenge string) string
	// Exchange trades an authorization code for tokens. An empty verifier
	// falls back to client-secret authentication.
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	// Refresh mints a new access token from a stored refresh token
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	// UserProfile resolves the identity behind an access token
	UserProfile(ctx context.Context, accessToken string) (*SpotifyUser, error)
	// ProxyProfile forwards a raw Authorization header to the profile endpoint
	ProxyProfile(ctx context.Context, authHeader string) (int, []byte, error)
}

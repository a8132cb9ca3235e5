// Spotify implementation of [Authenticator]
//
// Endpoint and parameter names follow https://developer.spotify.com/documentation/web-api/tutorials/code-pkce-flow
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/authrelay/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// outboundTimeout bounds every call to Spotify so a slow provider cannot
	// hold request handlers indefinitely.
	outboundTimeout = 10 * time.Second
)

// defaultScopes mirrors what the mobile client needs for playback and library access.
var defaultScopes = []string{
	"user-read-private", "user-read-email",
	"playlist-read-private", "user-library-read",
	"user-top-read", "user-read-recently-played",
	"app-remote-control", "streaming",
	"user-read-playback-state", "user-modify-playback-state",
}

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyService implements [Authenticator] for the Spotify Web API.
// Uses [oauth2] for the token endpoint round trips.
type SpotifyService struct {
	config     *oauth2.Config
	httpClient *http.Client
	baseURL    string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
//
// Required key: client_id. Optional keys: client_secret (omit for pure PKCE),
// redirect_uri, scope (space-joined), and auth_url/token_url/api_url overrides
// used by tests to point at a stub provider.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:3000/callback"
	}

	scopes := defaultScopes
	if scope, ok := credentials["scope"]; ok && scope != "" {
		scopes = strings.Fields(scope)
	}

	authURL := credentials["auth_url"]
	if authURL == "" {
		authURL = spotifyAuthURL
	}
	tokenURL := credentials["token_url"]
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}
	baseURL := credentials["api_url"]
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: credentials["client_secret"],
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: &http.Client{Timeout: outboundTimeout},
		baseURL:    baseURL,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthorizeURL builds the authorization URL for a login attempt.
//
// Always carries response_type=code, client_id, scope, redirect_uri, and
// state; a non-empty challenge adds code_challenge_method=S256 and
// code_challenge.
func (s *SpotifyService) AuthorizeURL(state, challenge string) string {
	if challenge == "" {
		return s.config.AuthCodeURL(state)
	}
	return s.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("code_challenge", challenge),
	)
}

// Exchange trades an authorization code for tokens at the token endpoint.
//
// A non-empty verifier is sent as code_verifier per PKCE; otherwise the
// configured client secret authenticates the request.
func (s *SpotifyService) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	opts := []oauth2.AuthCodeOption{}
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := s.config.Exchange(s.outboundContext(ctx), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrExchangeFailed, err)
	}
	return token, nil
}

// Refresh mints a new access token from a stored refresh token.
//
// Spotify may rotate the refresh token; the returned token carries whatever
// the provider issued.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := s.config.TokenSource(s.outboundContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return token, nil
}

// UserProfile resolves the identity behind an access token via /me.
func (s *SpotifyService) UserProfile(ctx context.Context, accessToken string) (*SpotifyUser, error) {
	status, body, err := s.fetchProfile(ctx, "Bearer "+accessToken)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: profile lookup returned status %d", shared.ErrAPIRequest, status)
	}

	var user SpotifyUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &user, nil
}

// ProxyProfile forwards the caller's Authorization header to /me verbatim and
// relays the provider's status and body.
func (s *SpotifyService) ProxyProfile(ctx context.Context, authHeader string) (int, []byte, error) {
	return s.fetchProfile(ctx, authHeader)
}

func (s *SpotifyService) fetchProfile(ctx context.Context, authHeader string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/me", nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// outboundContext routes oauth2's token endpoint calls through the service's
// bounded-timeout client.
func (s *SpotifyService) outboundContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

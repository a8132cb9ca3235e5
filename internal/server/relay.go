package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/authrelay/internal/auth"
	"github.com/desertthunder/authrelay/internal/models"
	"github.com/desertthunder/authrelay/internal/services"
	"github.com/desertthunder/authrelay/internal/shared"
	"golang.org/x/oauth2"
)

// RelayOpts configures a [Relay].
//
// The UsePKCE and PersistTokens flags select the flow variant; one handler
// implementation serves every combination.
type RelayOpts struct {
	UsePKCE       bool
	PersistTokens bool

	// AppRedirectURI is the custom-scheme target of the mobile app.
	AppRedirectURI string

	Spotify  services.Authenticator
	Attempts *auth.AttemptStore
	Tokens   models.TokenStore // required when PersistTokens is set
	Logger   *log.Logger
}

// Relay implements the authorization dance between the mobile app and Spotify.
// Implements the [Handler] interface for registration with a [Router].
//
// Per login attempt the relay holds exactly one piece of state: the PKCE
// verifier keyed by the state token, pending until the callback consumes it.
type Relay struct {
	opts     RelayOpts
	spotify  services.Authenticator
	attempts *auth.AttemptStore
	tokens   models.TokenStore
	logger   *log.Logger
}

// NewRelay creates a Relay from opts.
func NewRelay(opts RelayOpts) (*Relay, error) {
	if opts.Spotify == nil {
		return nil, fmt.Errorf("%w: relay requires a provider service", shared.ErrInvalidConfig)
	}
	if opts.PersistTokens && opts.Tokens == nil {
		return nil, fmt.Errorf("%w: token persistence enabled without a token store", shared.ErrInvalidConfig)
	}
	if opts.AppRedirectURI == "" {
		opts.AppRedirectURI = "spotifyjunior://callback"
	}
	if opts.Attempts == nil {
		opts.Attempts = auth.NewAttemptStore(auth.DefaultAttemptTTL)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Relay{
		opts:     opts,
		spotify:  opts.Spotify,
		attempts: opts.Attempts,
		tokens:   opts.Tokens,
		logger:   opts.Logger,
	}, nil
}

// Routes returns the HTTP routes this handler serves.
func (h *Relay) Routes() []string {
	routes := []string{"/login", "/callback", "/me", "/health"}
	if h.opts.PersistTokens {
		routes = append(routes, "/refresh_token")
	}
	return routes
}

// ServeHTTP dispatches to the endpoint handlers.
func (h *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/login":
		h.handleLogin(w, r)
	case "/callback":
		h.handleCallback(w, r)
	case "/refresh_token":
		h.handleRefresh(w, r)
	case "/me":
		h.handleProfile(w, r)
	case "/health":
		h.handleHealth(w, r)
	default:
		http.NotFound(w, r)
	}
}

// handleLogin starts a login attempt: generates the verifier, challenge, and
// state, stores the attempt, and redirects to Spotify's authorize URL.
func (h *Relay) handleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error("state generation failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var verifier, challenge string
	if h.opts.UsePKCE {
		if verifier, err = auth.GenerateVerifier(); err != nil {
			h.logger.Error("verifier generation failed", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		challenge = auth.DeriveChallenge(verifier)
	}

	h.attempts.Put(state, verifier)
	h.logger.Debug("login attempt created", "pkce", h.opts.UsePKCE)

	http.Redirect(w, r, h.spotify.AuthorizeURL(state, challenge), http.StatusFound)
}

// handleCallback completes a login attempt.
//
// The attempt is taken before the exchange, so a failed exchange still burns
// the state and the user restarts from /login.
func (h *Relay) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")

	if code == "" || state == "" {
		if errParam := query.Get("error"); errParam != "" {
			h.logger.Warn("authorization denied by provider", "error", errParam, "description", query.Get("error_description"))
		}
		http.Error(w, "Invalid state or missing code", http.StatusBadRequest)
		return
	}

	verifier, ok := h.attempts.Take(state)
	if !ok {
		h.logger.Warn("callback with unknown or expired state")
		http.Error(w, "Invalid state or missing code", http.StatusBadRequest)
		return
	}

	token, err := h.spotify.Exchange(r.Context(), code, verifier)
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		http.Error(w, "Token exchange failed", http.StatusBadGateway)
		return
	}

	if h.opts.PersistTokens {
		if err := h.persistToken(r.Context(), token); err != nil {
			h.logger.Error("failed to persist token record", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	http.Redirect(w, r, h.appRedirect(token), http.StatusFound)
}

// persistToken resolves the user behind the fresh access token and upserts
// their refresh token.
func (h *Relay) persistToken(ctx context.Context, token *oauth2.Token) error {
	user, err := h.spotify.UserProfile(ctx, token.AccessToken)
	if err != nil {
		return fmt.Errorf("profile lookup failed: %w", err)
	}

	record := &models.TokenRecord{
		UserID:       user.ID,
		RefreshToken: token.RefreshToken,
		DisplayName:  user.DisplayName,
	}
	if err := h.tokens.Upsert(record); err != nil {
		return err
	}

	h.logger.Info("token record upserted", "user_id", user.ID)
	return nil
}

// appRedirect builds the custom-scheme URI handing tokens back to the app.
func (h *Relay) appRedirect(token *oauth2.Token) string {
	params := url.Values{}
	params.Set("access_token", token.AccessToken)
	params.Set("refresh_token", token.RefreshToken)
	params.Set("expires_in", fmt.Sprintf("%d", expiresIn(token)))
	return h.opts.AppRedirectURI + "?" + params.Encode()
}

// expiresIn recovers the provider's expires_in seconds from the token expiry.
func expiresIn(token *oauth2.Token) int64 {
	if token.Expiry.IsZero() {
		return 0
	}
	return int64(time.Until(token.Expiry).Round(time.Second).Seconds())
}

// handleRefresh mints a new access token from a persisted refresh token.
func (h *Relay) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !h.opts.PersistTokens {
		http.NotFound(w, r)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	record, err := h.tokens.Get(userID)
	if err != nil {
		if errors.Is(err, shared.ErrTokenNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no refresh token for user"})
			return
		}
		h.logger.Error("token lookup failed", "user_id", userID, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	token, err := h.spotify.Refresh(r.Context(), record.RefreshToken)
	if err != nil {
		h.logger.Error("token refresh failed", "user_id", userID, "error", err)
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "token refresh failed"})
		return
	}

	// Spotify occasionally rotates refresh tokens; keep the newest one.
	if token.RefreshToken != "" && token.RefreshToken != record.RefreshToken {
		record.RefreshToken = token.RefreshToken
		if err := h.tokens.Upsert(record); err != nil {
			h.logger.Warn("failed to persist rotated refresh token", "user_id", userID, "error", err)
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"access_token": token.AccessToken})
}

// handleProfile proxies the app's Authorization header to Spotify's /v1/me.
func (h *Relay) handleProfile(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Missing Authorization header"})
		return
	}

	status, body, err := h.spotify.ProxyProfile(r.Context(), authHeader)
	if err != nil {
		h.logger.Error("profile proxy failed", "error", err)
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Failed to fetch profile from Spotify"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// handleHealth reports liveness and which flow variant is running.
func (h *Relay) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"pkce":        h.opts.UsePKCE,
		"persistence": h.opts.PersistTokens,
		"pending":     h.attempts.Len(),
	})
}

// Janitor sweeps expired attempts every interval until ctx is done.
func (h *Relay) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := h.attempts.Sweep(); removed > 0 {
				h.logger.Debug("swept expired attempts", "count", removed)
			}
		}
	}
}

func (h *Relay) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

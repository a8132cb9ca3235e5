package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// stubProvider stands in for Spotify's accounts and API hosts.
func stubProvider(t *testing.T, tokenBody map[string]any) (*httptest.Server, *url.Values) {
	t.Helper()

	var lastForm url.Values
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token form: %v", err)
		}
		lastForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenBody)
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "spotify_user_1", "display_name": "Stub User"})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &lastForm
}

func newTestService(t *testing.T, server *httptest.Server, secret string) *SpotifyService {
	t.Helper()

	credentials := map[string]string{
		"client_id":    "test_client_id",
		"redirect_uri": "http://localhost:3000/callback",
		"auth_url":     server.URL + "/authorize",
		"token_url":    server.URL + "/api/token",
		"api_url":      server.URL,
	}
	if secret != "" {
		credentials["client_secret"] = secret
	}

	srv, err := NewSpotifyService(credentials)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return srv
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("Missing Client ID", func(t *testing.T) {
			if _, err := NewSpotifyService(map[string]string{}); err == nil {
				t.Error("expected error for missing client_id")
			}
		})

		t.Run("Defaults", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{"client_id": "test_client_id"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Spotify" {
				t.Errorf("expected service name Spotify, got %s", srv.Name())
			}
			if srv.config.RedirectURL != "http://localhost:3000/callback" {
				t.Errorf("unexpected default redirect URI %s", srv.config.RedirectURL)
			}
			if srv.baseURL != spotifyBaseURL {
				t.Errorf("unexpected default API base %s", srv.baseURL)
			}
		})

		t.Run("Custom Scope", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{
				"client_id": "test_client_id",
				"scope":     "user-read-private streaming",
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(srv.config.Scopes) != 2 {
				t.Errorf("expected 2 scopes, got %d", len(srv.config.Scopes))
			}
		})
	})

	t.Run("AuthorizeURL", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{"client_id": "test_client_id"})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		t.Run("With Challenge", func(t *testing.T) {
			authURL := srv.AuthorizeURL("test_state", "test_challenge")

			parsed, err := url.Parse(authURL)
			if err != nil {
				t.Fatalf("failed to parse auth URL: %v", err)
			}

			query := parsed.Query()
			expectations := map[string]string{
				"response_type":         "code",
				"client_id":             "test_client_id",
				"redirect_uri":          "http://localhost:3000/callback",
				"state":                 "test_state",
				"code_challenge_method": "S256",
				"code_challenge":        "test_challenge",
			}
			for key, want := range expectations {
				if got := query.Get(key); got != want {
					t.Errorf("expected %s=%s, got %s", key, want, got)
				}
			}

			if !strings.Contains(query.Get("scope"), "user-read-private") {
				t.Errorf("scope should contain user-read-private, got %s", query.Get("scope"))
			}
		})

		t.Run("Without Challenge", func(t *testing.T) {
			authURL := srv.AuthorizeURL("test_state", "")
			if strings.Contains(authURL, "code_challenge") {
				t.Error("auth URL should omit PKCE params when no challenge is given")
			}
		})
	})

	t.Run("Exchange", func(t *testing.T) {
		t.Run("With Verifier", func(t *testing.T) {
			server, form := stubProvider(t, map[string]any{
				"access_token": "AT1", "refresh_token": "RT1", "expires_in": 3600, "token_type": "Bearer",
			})
			srv := newTestService(t, server, "")

			token, err := srv.Exchange(context.Background(), "abc", "test_verifier")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if token.AccessToken != "AT1" {
				t.Errorf("expected access token AT1, got %s", token.AccessToken)
			}
			if token.RefreshToken != "RT1" {
				t.Errorf("expected refresh token RT1, got %s", token.RefreshToken)
			}

			if form.Get("grant_type") != "authorization_code" {
				t.Errorf("expected grant_type authorization_code, got %s", form.Get("grant_type"))
			}
			if form.Get("code") != "abc" {
				t.Errorf("expected code abc, got %s", form.Get("code"))
			}
			if form.Get("code_verifier") != "test_verifier" {
				t.Errorf("expected code_verifier test_verifier, got %s", form.Get("code_verifier"))
			}
			if form.Get("redirect_uri") != "http://localhost:3000/callback" {
				t.Errorf("expected redirect_uri in form, got %s", form.Get("redirect_uri"))
			}
		})

		t.Run("Provider Error", func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_grant"}`))
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			srv := newTestService(t, server, "")
			if _, err := srv.Exchange(context.Background(), "bad", "v"); err == nil {
				t.Error("expected error for provider rejection")
			}
		})
	})

	t.Run("Refresh", func(t *testing.T) {
		server, form := stubProvider(t, map[string]any{
			"access_token": "AT2", "expires_in": 3600, "token_type": "Bearer",
		})
		srv := newTestService(t, server, "test_secret")

		token, err := srv.Refresh(context.Background(), "RT1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if token.AccessToken != "AT2" {
			t.Errorf("expected access token AT2, got %s", token.AccessToken)
		}
		if form.Get("grant_type") != "refresh_token" {
			t.Errorf("expected grant_type refresh_token, got %s", form.Get("grant_type"))
		}
		if form.Get("refresh_token") != "RT1" {
			t.Errorf("expected stored refresh token forwarded verbatim, got %s", form.Get("refresh_token"))
		}
	})

	t.Run("UserProfile", func(t *testing.T) {
		server, _ := stubProvider(t, nil)
		srv := newTestService(t, server, "")

		user, err := srv.UserProfile(context.Background(), "AT1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if user.ID != "spotify_user_1" {
			t.Errorf("expected user id spotify_user_1, got %s", user.ID)
		}
	})

	t.Run("ProxyProfile", func(t *testing.T) {
		server, _ := stubProvider(t, nil)
		srv := newTestService(t, server, "")

		status, body, err := srv.ProxyProfile(context.Background(), "Bearer AT1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if status != http.StatusOK {
			t.Errorf("expected status 200, got %d", status)
		}
		if !strings.Contains(string(body), "spotify_user_1") {
			t.Errorf("expected profile body, got %s", string(body))
		}
	})
}

// Package server provides HTTP routing, middleware, and the authorization
// relay handlers.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Relay Handler
//
// [Relay] implements the three-step authorization dance for the mobile app:
//
//	GET /login          → 302 to Spotify's authorize URL (PKCE challenge + state)
//	GET /callback       → consume the attempt, exchange the code, 302 back to the app scheme
//	GET /refresh_token  → mint a fresh access token from a persisted refresh token
//	GET /me             → proxy the app's bearer token to Spotify's profile endpoint
//	GET /health         → liveness and variant report
//
// Each login attempt moves through two states: pending (after /login) and
// consumed (after /callback takes the verifier). Expiry is enforced by the
// attempt store's absence-on-lookup contract, not by a third state.
//
// The handler registers multiple routes through [Handler.Routes], so the whole
// relay is one [Handler] implementation parameterized by [RelayOpts].
package server

package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authorization flow errors
	ErrAuthFailed      = fmt.Errorf("authorization failed")
	ErrExchangeFailed  = fmt.Errorf("token exchange failed")
	ErrRefreshFailed   = fmt.Errorf("token refresh failed")
	ErrAttemptNotFound = fmt.Errorf("authorization attempt not found")
	ErrTokenNotFound   = fmt.Errorf("token record not found")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

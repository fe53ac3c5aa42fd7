package revenuecat

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey    = errors.New("revenuecat API key is required")
	ErrMissingAppUserID = errors.New("revenuecat app user ID is required")
	ErrMissingProductID = errors.New("revenuecat product ID is required")
	ErrInvalidBaseURL   = errors.New("invalid revenuecat base URL")
	ErrTransport        = errors.New("revenuecat request failed")
	ErrDecodeResponse   = errors.New("failed to decode revenuecat response")
)

// APIError is returned for any non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("revenuecat api status %d", e.StatusCode)
	}
	return fmt.Sprintf("revenuecat api status %d: %s", e.StatusCode, e.Body)
}

// IsAPIError reports whether err carries a non-2xx backend response.
func IsAPIError(err error) bool {
	var e *APIError
	return errors.As(err, &e)
}

// StatusCode extracts the HTTP status from an APIError, or 0.
func StatusCode(err error) int {
	var e *APIError
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

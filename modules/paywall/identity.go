package paywall

import (
	"net/http"
	"strings"
)

// AppUserResolver returns the app user a new screen acts for. An empty id
// opens an anonymous screen. Returned errors are rendered as is, so a
// handler.HTTPError controls the status.
type AppUserResolver func(r *http.Request) (string, error)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAppUserResolver replaces the default resolver. Hosts that authenticate
// users themselves should pass one backed by their session.
func WithAppUserResolver(resolve AppUserResolver) ServiceOption {
	return func(s *Service) {
		if resolve != nil {
			s.resolveUser = resolve
		}
	}
}

// HeaderAppUser trusts the named header, typically set by an auth proxy in
// front of the service. Requests without it are rejected as unauthorized.
func HeaderAppUser(name string) AppUserResolver {
	return func(r *http.Request) (string, error) {
		id := strings.TrimSpace(r.Header.Get(name))
		if id == "" {
			return "", ErrUnauthenticated
		}
		return id, nil
	}
}

// QueryAppUser reads the app_user_id query parameter. The value is not
// verified, so the route must sit behind the host's own authentication.
func QueryAppUser(r *http.Request) (string, error) {
	return strings.TrimSpace(r.URL.Query().Get("app_user_id")), nil
}

func defaultResolver(cfg Config) AppUserResolver {
	if cfg.UserHeader != "" {
		return HeaderAppUser(cfg.UserHeader)
	}
	return QueryAppUser
}

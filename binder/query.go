package binder

import (
	"net/http"
)

// Query creates a query string binder for fields tagged `query:"name"`.
//
//	type mountRequest struct {
//		AppUserID string `query:"app_user_id"`
//	}
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		q := r.URL.Query()
		return bindTagged(v, "query", func(name string) []string {
			return q[name]
		}, ErrInvalidQuery)
	}
}

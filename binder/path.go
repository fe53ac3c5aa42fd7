package binder

import (
	"net/http"
)

// Path creates a path parameter binder using the router's extractor.
// Only fields tagged `path:"name"` are bound; `path:"-"` and untagged fields are skipped.
//
// Example with chi:
//
//	type intentRequest struct {
//		ScreenID   string `path:"screen"`
//		OfferingID string `path:"offering"`
//	}
//
//	r.Post("/{screen}/select/{offering}", handler.Wrap(selectOffering,
//		handler.WithBinders[handler.Context, intentRequest](binder.Path(chi.URLParam)),
//	))
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return ErrBinderNotApplicable
		}
		return bindTagged(v, "path", func(name string) []string {
			if value := extractor(r, name); value != "" {
				return []string{value}
			}
			return nil
		}, ErrInvalidPath)
	}
}

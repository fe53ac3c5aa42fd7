// Package handler provides typed HTTP handlers that render templ components
// either as full pages or as DataStar server-sent patches.
//
// A HandlerFunc receives a Context and a request value filled by binders and
// returns a Response:
//
//	type intentRequest struct {
//		ScreenID string `path:"screen"`
//	}
//
//	r.Post("/{screen}/dismiss", handler.Wrap(dismiss,
//		handler.WithBinders[handler.Context, intentRequest](binder.Path(chi.URLParam)),
//		handler.WithErrorHandler[handler.Context, intentRequest](errorHandler),
//	))
//
// Responses adapt to the request. Templ, TemplPartial and TemplMulti patch
// elements over SSE when IsDataStar reports true and write HTML otherwise.
// SSE runs a StreamContext handler that can send several patches in
// sequence over the same response. JSON and JSONError write an envelope
// with data or error fields.
//
// NewErrorHandler renders a full error page for plain requests and prepends
// a toast for DataStar requests. HTTPError carries the status code and the
// message shown to the user.
package handler

// Package requestid assigns every HTTP request an identifier.
//
// The middleware trusts an inbound X-Request-ID when it is at most 128
// characters of letters, digits, '-' and '_'. Anything else is replaced by a
// fresh UUID. The id is echoed in the response and stored in the request
// context, where error pages and toasts read it and LoggerExtractor adds it
// to log records.
//
//	r.Use(requestid.Middleware)
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
package requestid

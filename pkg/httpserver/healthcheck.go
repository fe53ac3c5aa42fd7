package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/paywall/pkg/logger"
)

// Probe is a named dependency check used by the readiness endpoint.
type Probe struct {
	Name  string
	Check func(context.Context) error
}

// LivenessHandler always answers 200 "ALIVE".
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ALIVE"))
	}
}

// ReadinessHandler runs every probe with the given per-probe timeout. It
// answers 200 "READY" when all pass and 503 "NOT_READY: <name>" naming the
// first failing probe otherwise.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, probes ...Probe) http.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, p := range probes {
			if p.Check == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			err := p.Check(ctx)
			cancel()
			if err != nil {
				log.ErrorContext(r.Context(), "readiness probe failed",
					logger.Component("httpserver"),
					slog.String("probe", p.Name),
					logger.Error(err),
				)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("NOT_READY: " + p.Name))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}

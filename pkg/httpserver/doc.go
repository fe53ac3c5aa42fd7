// Package httpserver runs the paywall HTTP server with graceful shutdown.
//
// Run listens on the configured address and blocks until its context is
// cancelled or the process gets SIGINT or SIGTERM. In-flight requests then
// drain within the shutdown timeout and the shutdown hooks run. Listen and
// serve failures wrap ErrStart; drain failures wrap ErrShutdown.
//
// Write timeouts are off by default since purchase and restore answer with
// event streams that stay open for the whole billing call.
//
// LivenessHandler and ReadinessHandler back the /healthz and /readyz probes:
//
//	r.Get("/healthz", httpserver.LivenessHandler())
//	r.Get("/readyz", httpserver.ReadinessHandler(log, 2*time.Second,
//		httpserver.Probe{Name: "redis", Check: redis.Healthcheck(client)},
//	))
//	err := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log)).Run(ctx, r)
package httpserver

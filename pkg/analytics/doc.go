// Package analytics records product analytics events and fans them out to sinks.
//
// A Client is a Tracker: callers fire named events with optional properties and
// never see delivery errors. Sinks included:
//
//   - LogSink     - one structured slog line per event
//   - MetricsSink - Prometheus counter per event name
//   - StreamSink  - Redis stream (XADD) for downstream consumers
//   - Recorder    - in-memory, for tests
//
// The app user an event belongs to travels in the context (WithUserID).
//
//	tracker := analytics.New(
//		analytics.WithLogger(log),
//		analytics.WithSink(analytics.LogSink(log)),
//		analytics.WithSink(metricsSink),
//	)
//	tracker.Track(ctx, "purchase_attempted", map[string]any{"product_id": "annual"})
package analytics

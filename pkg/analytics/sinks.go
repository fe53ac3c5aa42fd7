package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/paywall/pkg/logger"
)

var (
	ErrNilRedisClient = errors.New("analytics: redis client is required")
	ErrEmptyStream    = errors.New("analytics: stream name is required")
)

// LogSink writes each event as a structured log line.
func LogSink(l *slog.Logger) Sink {
	if l == nil {
		l = slog.Default()
	}
	return SinkFunc(func(ctx context.Context, e Event) error {
		attrs := []slog.Attr{logger.Event(e.Name), logger.Component("analytics")}
		if e.UserID != "" {
			attrs = append(attrs, logger.UserID(e.UserID))
		}
		if len(e.Properties) > 0 {
			props := make([]slog.Attr, 0, len(e.Properties))
			for _, k := range sortedKeys(e.Properties) {
				props = append(props, slog.Any(k, e.Properties[k]))
			}
			attrs = append(attrs, logger.Group("properties", props...))
		}
		l.LogAttrs(ctx, slog.LevelInfo, "analytics event", attrs...)
		return nil
	})
}

// MetricsSink counts events per name.
type MetricsSink struct {
	events *prometheus.CounterVec
}

// NewMetricsSink registers a counter vector on reg.
// Registering twice on the same registry reuses the existing collector.
func NewMetricsSink(reg prometheus.Registerer, namespace string) (*MetricsSink, error) {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_events_total",
			Help:      "Total number of paywall analytics events by name",
		},
		[]string{"event"},
	)
	if err := reg.Register(events); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("register analytics metrics: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("register analytics metrics: %w", err)
		}
		events = existing
	}
	return &MetricsSink{events: events}, nil
}

func (m *MetricsSink) Send(_ context.Context, e Event) error {
	m.events.WithLabelValues(e.Name).Inc()
	return nil
}

// StreamAdder is the part of the redis client used by StreamSink.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamSink appends events to a Redis stream for downstream consumers.
type StreamSink struct {
	client StreamAdder
	stream string
	maxLen int64
}

// NewStreamSink creates a sink writing to stream. maxLen caps the stream
// length approximately; zero leaves it unbounded.
func NewStreamSink(client StreamAdder, stream string, maxLen int64) (*StreamSink, error) {
	if client == nil {
		return nil, ErrNilRedisClient
	}
	if strings.TrimSpace(stream) == "" {
		return nil, ErrEmptyStream
	}
	return &StreamSink{client: client, stream: stream, maxLen: maxLen}, nil
}

func (s *StreamSink) Send(ctx context.Context, e Event) error {
	props := "{}"
	if len(e.Properties) > 0 {
		raw, err := json.Marshal(e.Properties)
		if err != nil {
			return fmt.Errorf("marshal event properties: %w", err)
		}
		props = string(raw)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"name":       e.Name,
			"user_id":    e.UserID,
			"timestamp":  e.Timestamp.Format(time.RFC3339Nano),
			"properties": props,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.client.XAdd(ctx, args).Err()
}

// Recorder keeps events in memory. Handy in tests and local development.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Names returns recorded event names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name
	}
	return names
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

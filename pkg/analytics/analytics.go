package analytics

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/dmitrymomot/paywall/pkg/logger"
)

// Event is a single analytics record.
type Event struct {
	Name       string         `json:"name"`
	UserID     string         `json:"user_id,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Tracker records named events. Tracking never fails from the caller's point of view.
type Tracker interface {
	Track(ctx context.Context, name string, props map[string]any)
}

// Sink delivers events to a destination.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Send(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Client fans events out to every configured sink.
// A failing sink is logged and does not affect the others.
type Client struct {
	sinks []Sink
	log   *slog.Logger
	now   func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithSink adds a delivery destination. Nil sinks are ignored.
func WithSink(s Sink) Option {
	return func(c *Client) {
		if s != nil {
			c.sinks = append(c.sinks, s)
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Client. Without sinks it drops every event.
func New(opts ...Option) *Client {
	c := &Client{
		log: slog.Default(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Track builds an Event, stamps it with the user from ctx and sends it to all sinks.
func (c *Client) Track(ctx context.Context, name string, props map[string]any) {
	if name == "" {
		return
	}
	e := Event{
		Name:       name,
		UserID:     UserIDFromContext(ctx),
		Properties: maps.Clone(props),
		Timestamp:  c.now().UTC(),
	}
	for _, s := range c.sinks {
		if err := s.Send(ctx, e); err != nil {
			c.log.WarnContext(ctx, "analytics delivery failed",
				logger.Component("analytics"),
				logger.Event(name),
				logger.Error(err),
			)
		}
	}
}

type nopTracker struct{}

func (nopTracker) Track(context.Context, string, map[string]any) {}

// Nop returns a Tracker that discards everything.
func Nop() Tracker {
	return nopTracker{}
}

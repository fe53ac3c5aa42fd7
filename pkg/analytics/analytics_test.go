package analytics_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paywall/pkg/analytics"
)

func TestClient_Track(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	rec := analytics.NewRecorder()
	client := analytics.New(
		analytics.WithSink(rec),
		analytics.WithClock(func() time.Time { return fixed }),
	)

	ctx := analytics.WithUserID(context.Background(), "user_1")
	props := map[string]any{"product_id": "annual"}
	client.Track(ctx, "purchase_attempted", props)
	props["product_id"] = "mutated"
	client.Track(ctx, "", nil)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "purchase_attempted", events[0].Name)
	assert.Equal(t, "user_1", events[0].UserID)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, "annual", events[0].Properties["product_id"])
}

func TestClient_Track_FailingSinkDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	rec := analytics.NewRecorder()
	client := analytics.New(
		analytics.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
		analytics.WithSink(analytics.SinkFunc(func(context.Context, analytics.Event) error {
			return errors.New("sink down")
		})),
		analytics.WithSink(rec),
		analytics.WithSink(nil),
	)

	client.Track(context.Background(), "paywall_viewed", nil)

	assert.Equal(t, []string{"paywall_viewed"}, rec.Names())
	assert.Contains(t, buf.String(), "analytics delivery failed")
	assert.Contains(t, buf.String(), "sink down")
}

func TestNop(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() {
		analytics.Nop().Track(context.Background(), "anything", nil)
	})
}

func TestLogSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := analytics.LogSink(slog.New(slog.NewTextHandler(&buf, nil)))
	err := sink.Send(context.Background(), analytics.Event{
		Name:       "restore_failed",
		UserID:     "user_9",
		Properties: map[string]any{"error": "timeout"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "restore_failed")
	assert.Contains(t, out, "user_9")
	assert.Contains(t, out, "properties.error=timeout")
}

func TestMetricsSink(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := analytics.NewMetricsSink(reg, "paywall")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Send(ctx, analytics.Event{Name: "purchase_success"}))
	require.NoError(t, sink.Send(ctx, analytics.Event{Name: "purchase_success"}))
	require.NoError(t, sink.Send(ctx, analytics.Event{Name: "purchase_failed"}))

	// Second registration on the same registry shares the counters.
	again, err := analytics.NewMetricsSink(reg, "paywall")
	require.NoError(t, err)
	require.NoError(t, again.Send(ctx, analytics.Event{Name: "purchase_failed"}))

	count, err := testutil.GatherAndCount(reg, "paywall_analytics_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	cmd := redis.NewStringCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("1-0")
	}
	return cmd
}

func TestStreamSink(t *testing.T) {
	t.Parallel()

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		_, err := analytics.NewStreamSink(nil, "events", 0)
		assert.ErrorIs(t, err, analytics.ErrNilRedisClient)
		_, err = analytics.NewStreamSink(&fakeStream{}, " ", 0)
		assert.ErrorIs(t, err, analytics.ErrEmptyStream)
	})

	t.Run("writes event fields", func(t *testing.T) {
		t.Parallel()
		fake := &fakeStream{}
		sink, err := analytics.NewStreamSink(fake, "paywall:events", 1000)
		require.NoError(t, err)

		ts := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
		err = sink.Send(context.Background(), analytics.Event{
			Name:       "purchase_attempted",
			UserID:     "user_1",
			Properties: map[string]any{"product_id": "monthly"},
			Timestamp:  ts,
		})
		require.NoError(t, err)

		require.Len(t, fake.args, 1)
		args := fake.args[0]
		assert.Equal(t, "paywall:events", args.Stream)
		assert.Equal(t, int64(1000), args.MaxLen)
		assert.True(t, args.Approx)

		values, ok := args.Values.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "purchase_attempted", values["name"])
		assert.Equal(t, "user_1", values["user_id"])
		assert.JSONEq(t, `{"product_id":"monthly"}`, values["properties"].(string))
		assert.Equal(t, ts.Format(time.RFC3339Nano), values["timestamp"])
	})

	t.Run("propagates redis errors", func(t *testing.T) {
		t.Parallel()
		sink, err := analytics.NewStreamSink(&fakeStream{err: errors.New("READONLY")}, "s", 0)
		require.NoError(t, err)
		err = sink.Send(context.Background(), analytics.Event{Name: "x"})
		assert.EqualError(t, err, "READONLY")
	})
}

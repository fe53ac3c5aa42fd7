package paywall_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paywall/pkg/analytics"
	"github.com/dmitrymomot/paywall/pkg/revenuecat"
	"github.com/dmitrymomot/paywall/svc/paywall"
)

// fakeClient is an EntitlementClient whose behaviour is set per test.
type fakeClient struct {
	fetch    func(ctx context.Context) (paywall.OfferingSet, error)
	purchase func(ctx context.Context, o paywall.Offering) (paywall.EntitlementStatus, error)
	restore  func(ctx context.Context) (paywall.EntitlementStatus, error)

	fetchCalls    atomic.Int32
	purchaseCalls atomic.Int32
	restoreCalls  atomic.Int32
}

func (f *fakeClient) FetchOfferings(ctx context.Context) (paywall.OfferingSet, error) {
	f.fetchCalls.Add(1)
	if f.fetch == nil {
		return paywall.OfferingSet{}, nil
	}
	return f.fetch(ctx)
}

func (f *fakeClient) SubmitPurchase(ctx context.Context, o paywall.Offering) (paywall.EntitlementStatus, error) {
	f.purchaseCalls.Add(1)
	if f.purchase == nil {
		return paywall.EntitlementStatus{Active: true}, nil
	}
	return f.purchase(ctx, o)
}

func (f *fakeClient) QueryAndRestore(ctx context.Context) (paywall.EntitlementStatus, error) {
	f.restoreCalls.Add(1)
	if f.restore == nil {
		return paywall.EntitlementStatus{Active: true}, nil
	}
	return f.restore(ctx)
}

// gate blocks a fake call until released and signals when it is entered.
type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) wait() {
	g.once.Do(func() { close(g.entered) })
	<-g.release
}

func newController(t *testing.T, client paywall.EntitlementClient, opts ...paywall.ControllerOption) (*paywall.Controller, *paywall.NoticeQueue) {
	t.Helper()
	queue := paywall.NewNoticeQueue(0)
	opts = append([]paywall.ControllerOption{paywall.WithNotifier(queue)}, opts...)
	c, err := paywall.NewController(client, paywall.DefaultCatalog(), opts...)
	require.NoError(t, err)
	return c, queue
}

func TestNewController(t *testing.T) {
	t.Parallel()

	_, err := paywall.NewController(nil, paywall.DefaultCatalog())
	assert.ErrorIs(t, err, paywall.ErrNilEntitlements)

	_, err = paywall.NewController(&fakeClient{}, paywall.Catalog{})
	assert.ErrorIs(t, err, paywall.ErrEmptyCatalog)
}

func TestController_InitialState(t *testing.T) {
	t.Parallel()

	c, _ := newController(t, &fakeClient{})
	s := c.State()

	assert.Equal(t, paywall.PhaseIdle, s.Phase)
	assert.Equal(t, "annual", s.Selected)
	assert.Equal(t, paywall.DefaultCatalog().Offerings(), s.Offerings)
	assert.False(t, s.Purchase.InProgress)
	assert.False(t, s.Restoring)
	assert.False(t, s.SuccessVisible)
	assert.Nil(t, s.LastNotice)

	selected, ok := s.SelectedOffering()
	require.True(t, ok)
	assert.Equal(t, "Best Value", selected.Badge)
}

func TestController_Mount(t *testing.T) {
	t.Parallel()

	t.Run("applies live prices", func(t *testing.T) {
		t.Parallel()
		rec := analytics.NewRecorder()
		client := &fakeClient{fetch: func(context.Context) (paywall.OfferingSet, error) {
			return paywall.OfferingSet{Prices: map[string]string{"annual": "$24.99"}}, nil
		}}
		c, queue := newController(t, client,
			paywall.WithControllerTracker(analytics.New(analytics.WithSink(rec))),
			paywall.WithAppUserID("user_1"),
		)

		require.NoError(t, c.Mount(context.Background()))

		s := c.State()
		assert.Equal(t, paywall.PhaseIdle, s.Phase)
		assert.False(t, s.Fetching)
		prices := map[string]string{}
		for _, o := range s.Offerings {
			prices[o.ID] = o.Price
		}
		assert.Equal(t, map[string]string{"monthly": "$4.99", "annual": "$24.99", "lifetime": "$99.99"}, prices)
		assert.Zero(t, queue.Len())

		require.Equal(t, []string{paywall.EventPaywallViewed}, rec.Names())
		assert.Equal(t, "user_1", rec.Events()[0].UserID)
	})

	t.Run("failure keeps fallback prices", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{fetch: func(context.Context) (paywall.OfferingSet, error) {
			return paywall.OfferingSet{}, paywall.ErrBackendUnavailable
		}}
		c, queue := newController(t, client)

		require.NoError(t, c.Mount(context.Background()))

		s := c.State()
		assert.Equal(t, paywall.PhaseIdleWithError, s.Phase)
		assert.Equal(t, paywall.DefaultCatalog().Offerings(), s.Offerings)
		require.NotNil(t, s.LastNotice)
		assert.Equal(t, paywall.NoticeLoadFailed, s.LastNotice.Kind)

		drained := queue.Drain()
		require.Len(t, drained, 1)
		assert.Equal(t, "Error", drained[0].Title)
		assert.Equal(t, "Failed to load subscription options", drained[0].Message)
	})

	t.Run("refresh is single flight", func(t *testing.T) {
		t.Parallel()
		g := newGate()
		client := &fakeClient{fetch: func(context.Context) (paywall.OfferingSet, error) {
			g.wait()
			return paywall.OfferingSet{}, nil
		}}
		c, _ := newController(t, client)

		done := make(chan error, 1)
		go func() { done <- c.Refresh(context.Background()) }()
		<-g.entered

		assert.Equal(t, paywall.PhaseFetchingOfferings, c.State().Phase)
		assert.ErrorIs(t, c.Refresh(context.Background()), paywall.ErrRefreshInProgress)

		close(g.release)
		require.NoError(t, <-done)
		assert.Equal(t, int32(1), client.fetchCalls.Load())
	})
}

func TestController_Select(t *testing.T) {
	t.Parallel()

	c, _ := newController(t, &fakeClient{})

	require.NoError(t, c.Select(context.Background(), "lifetime"))
	assert.Equal(t, "lifetime", c.State().Selected)

	assert.ErrorIs(t, c.Select(context.Background(), "weekly"), paywall.ErrUnknownOffering)
	assert.Equal(t, "lifetime", c.State().Selected)
}

func TestController_Purchase(t *testing.T) {
	t.Parallel()

	t.Run("lifetime activates", func(t *testing.T) {
		t.Parallel()
		var submitted paywall.Offering
		client := &fakeClient{purchase: func(_ context.Context, o paywall.Offering) (paywall.EntitlementStatus, error) {
			submitted = o
			return paywall.EntitlementStatus{Active: true, EntitlementID: "premium"}, nil
		}}
		c, queue := newController(t, client)
		require.NoError(t, c.Select(context.Background(), "lifetime"))

		outcome, err := c.Purchase(context.Background())
		require.NoError(t, err)
		assert.Equal(t, paywall.OutcomeActivated, outcome)
		assert.Equal(t, "lifetime", submitted.ID)

		s := c.State()
		assert.Equal(t, paywall.PhaseSuccess, s.Phase)
		assert.True(t, s.SuccessVisible)
		assert.False(t, s.Purchase.InProgress)
		assert.Empty(t, s.Purchase.ActiveIdentifier)
		require.NotNil(t, s.Entitlement)
		assert.True(t, s.Entitlement.Active)
		assert.Zero(t, queue.Len())
	})

	t.Run("not activated", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{purchase: func(context.Context, paywall.Offering) (paywall.EntitlementStatus, error) {
			return paywall.EntitlementStatus{}, paywall.ErrEntitlementNotActivated
		}}
		c, queue := newController(t, client)

		outcome, err := c.Purchase(context.Background())
		require.NoError(t, err)
		assert.Equal(t, paywall.OutcomeNotActivated, outcome)

		s := c.State()
		assert.Equal(t, paywall.PhaseIdleWithError, s.Phase)
		assert.False(t, s.SuccessVisible)
		assert.False(t, s.Purchase.InProgress)
		assert.Equal(t, []paywall.Notice{paywall.NoticeFor(paywall.NoticePurchaseFailed)}, queue.Drain())
	})

	t.Run("guard rejects second purchase", func(t *testing.T) {
		t.Parallel()
		g := newGate()
		client := &fakeClient{purchase: func(context.Context, paywall.Offering) (paywall.EntitlementStatus, error) {
			g.wait()
			return paywall.EntitlementStatus{Active: true}, nil
		}}
		c, _ := newController(t, client)

		done := make(chan paywall.Outcome, 1)
		go func() {
			outcome, _ := c.Purchase(context.Background())
			done <- outcome
		}()
		<-g.entered

		s := c.State()
		assert.Equal(t, paywall.PhasePurchasing, s.Phase)
		assert.True(t, s.Purchase.InProgress)
		assert.Equal(t, "annual", s.Purchase.ActiveIdentifier)
		assert.True(t, s.Processing("annual"))

		_, err := c.Purchase(context.Background())
		assert.ErrorIs(t, err, paywall.ErrPurchaseInProgress)

		close(g.release)
		assert.Equal(t, paywall.OutcomeActivated, <-done)
		assert.Equal(t, int32(1), client.purchaseCalls.Load())
		assert.False(t, c.State().Purchase.InProgress)
	})

	t.Run("selection changes mid purchase", func(t *testing.T) {
		t.Parallel()
		g := newGate()
		var submitted paywall.Offering
		client := &fakeClient{purchase: func(_ context.Context, o paywall.Offering) (paywall.EntitlementStatus, error) {
			submitted = o
			g.wait()
			return paywall.EntitlementStatus{}, paywall.ErrBackendUnavailable
		}}
		c, _ := newController(t, client)

		done := make(chan struct{})
		go func() {
			_, _ = c.Purchase(context.Background())
			close(done)
		}()
		<-g.entered

		require.NoError(t, c.Select(context.Background(), "monthly"))
		s := c.State()
		assert.Equal(t, "monthly", s.Selected)
		assert.False(t, s.Processing("monthly"))
		assert.True(t, s.Processing("annual"))

		close(g.release)
		<-done
		assert.Equal(t, "annual", submitted.ID)
	})

	t.Run("cancelled request context does not abort the call", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{purchase: func(ctx context.Context, _ paywall.Offering) (paywall.EntitlementStatus, error) {
			return paywall.EntitlementStatus{Active: ctx.Err() == nil}, nil
		}}
		c, _ := newController(t, client)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		outcome, err := c.Purchase(ctx)
		require.NoError(t, err)
		assert.Equal(t, paywall.OutcomeActivated, outcome)
	})
}

// The HTTP 500 scenario runs through the real billing client.
func TestController_PurchaseServerError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v1/receipts", r.URL.Path)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	api, err := revenuecat.New(revenuecat.Config{APIKey: "rc_test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	rec := analytics.NewRecorder()
	ents, err := paywall.NewEntitlements(api, "user_1", paywall.WithTracker(analytics.New(analytics.WithSink(rec))))
	require.NoError(t, err)

	c, queue := newController(t, ents)
	require.NoError(t, c.Select(context.Background(), "monthly"))

	outcome, err := c.Purchase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, paywall.OutcomeFailed, outcome)

	s := c.State()
	assert.Equal(t, paywall.PhaseIdleWithError, s.Phase)
	assert.False(t, s.Purchase.InProgress)
	assert.False(t, s.SuccessVisible)
	assert.Equal(t, []paywall.Notice{paywall.NoticeFor(paywall.NoticePurchaseFailed)}, queue.Drain())
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, []string{paywall.EventPurchaseAttempted, paywall.EventPurchaseFailed}, rec.Names())
}

func TestController_Restore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      paywall.EntitlementStatus
		err         error
		wantOutcome paywall.Outcome
		wantPhase   paywall.Phase
		wantVisible bool
		wantNotice  *paywall.NoticeKind
	}{
		{
			name:        "active",
			status:      paywall.EntitlementStatus{Active: true},
			wantOutcome: paywall.OutcomeActivated,
			wantPhase:   paywall.PhaseSuccess,
			wantVisible: true,
		},
		{
			name:        "inactive",
			status:      paywall.EntitlementStatus{Active: false},
			wantOutcome: paywall.OutcomeNoSubscription,
			wantPhase:   paywall.PhaseIdleWithError,
			wantNotice:  ptr(paywall.NoticeNoSubscription),
		},
		{
			name:        "backend failure",
			err:         errors.Join(paywall.ErrBackendUnavailable, errors.New("timeout")),
			wantOutcome: paywall.OutcomeFailed,
			wantPhase:   paywall.PhaseIdleWithError,
			wantNotice:  ptr(paywall.NoticeRestoreFailed),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := &fakeClient{restore: func(context.Context) (paywall.EntitlementStatus, error) {
				return tt.status, tt.err
			}}
			c, queue := newController(t, client)

			outcome, err := c.Restore(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, outcome)

			s := c.State()
			assert.Equal(t, tt.wantPhase, s.Phase)
			assert.Equal(t, tt.wantVisible, s.SuccessVisible)
			assert.False(t, s.Restoring)

			notices := queue.Drain()
			if tt.wantNotice == nil {
				assert.Empty(t, notices)
				return
			}
			require.Len(t, notices, 1)
			assert.Equal(t, *tt.wantNotice, notices[0].Kind)
		})
	}
}

func TestController_RestoreGuard(t *testing.T) {
	t.Parallel()

	g := newGate()
	client := &fakeClient{restore: func(context.Context) (paywall.EntitlementStatus, error) {
		g.wait()
		return paywall.EntitlementStatus{}, nil
	}}
	c, _ := newController(t, client)

	done := make(chan struct{})
	go func() {
		_, _ = c.Restore(context.Background())
		close(done)
	}()
	<-g.entered

	assert.True(t, c.State().Restoring)
	_, err := c.Restore(context.Background())
	assert.ErrorIs(t, err, paywall.ErrRestoreInProgress)

	close(g.release)
	<-done
	assert.Equal(t, int32(1), client.restoreCalls.Load())
	assert.False(t, c.State().Restoring)
}

func TestController_SettledLogLevel(t *testing.T) {
	t.Parallel()

	settledLine := func(t *testing.T, buf *bytes.Buffer, msg string) string {
		t.Helper()
		for _, line := range strings.Split(buf.String(), "\n") {
			if strings.Contains(line, `msg="`+msg+`"`) {
				return line
			}
		}
		t.Fatalf("no %q record in %s", msg, buf.String())
		return ""
	}

	tests := []struct {
		name    string
		client  *fakeClient
		restore bool
		msg     string
		level   string
	}{
		{
			name:   "purchase activated",
			client: &fakeClient{},
			msg:    "purchase settled",
			level:  "level=INFO",
		},
		{
			name: "purchase not activated",
			client: &fakeClient{purchase: func(context.Context, paywall.Offering) (paywall.EntitlementStatus, error) {
				return paywall.EntitlementStatus{}, paywall.ErrEntitlementNotActivated
			}},
			msg:   "purchase settled",
			level: "level=WARN",
		},
		{
			name: "restore without subscription",
			client: &fakeClient{restore: func(context.Context) (paywall.EntitlementStatus, error) {
				return paywall.EntitlementStatus{}, nil
			}},
			restore: true,
			msg:     "restore settled",
			level:   "level=WARN",
		},
		{
			name: "restore failed",
			client: &fakeClient{restore: func(context.Context) (paywall.EntitlementStatus, error) {
				return paywall.EntitlementStatus{}, paywall.ErrBackendUnavailable
			}},
			restore: true,
			msg:     "restore settled",
			level:   "level=WARN",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			c, _ := newController(t, tt.client, paywall.WithControllerLogger(log))

			var err error
			if tt.restore {
				_, err = c.Restore(context.Background())
			} else {
				_, err = c.Purchase(context.Background())
			}
			require.NoError(t, err)
			assert.Contains(t, settledLine(t, &buf, tt.msg), tt.level)
		})
	}
}

func TestController_PurchaseAndRestoreAreIndependent(t *testing.T) {
	t.Parallel()

	g := newGate()
	client := &fakeClient{
		purchase: func(context.Context, paywall.Offering) (paywall.EntitlementStatus, error) {
			g.wait()
			return paywall.EntitlementStatus{}, paywall.ErrBackendUnavailable
		},
		restore: func(context.Context) (paywall.EntitlementStatus, error) {
			return paywall.EntitlementStatus{Active: true}, nil
		},
	}
	c, _ := newController(t, client)

	done := make(chan struct{})
	go func() {
		_, _ = c.Purchase(context.Background())
		close(done)
	}()
	<-g.entered

	outcome, err := c.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, paywall.OutcomeActivated, outcome)
	assert.True(t, c.State().SuccessVisible)
	assert.True(t, c.State().Purchase.InProgress)

	close(g.release)
	<-done

	s := c.State()
	assert.False(t, s.Purchase.InProgress)
	assert.False(t, s.SuccessVisible, "latest outcome was a failure")
}

func TestController_Dismiss(t *testing.T) {
	t.Parallel()

	rec := analytics.NewRecorder()
	c, _ := newController(t, &fakeClient{},
		paywall.WithControllerTracker(analytics.New(analytics.WithSink(rec))),
	)

	assert.ErrorIs(t, c.Dismiss(context.Background()), paywall.ErrNothingToDismiss)

	_, err := c.Purchase(context.Background())
	require.NoError(t, err)
	require.True(t, c.State().SuccessVisible)

	require.NoError(t, c.Dismiss(context.Background()))
	s := c.State()
	assert.False(t, s.SuccessVisible)
	assert.Equal(t, paywall.PhaseIdle, s.Phase)
	assert.Equal(t, []string{paywall.EventSuccessDismissed}, rec.Names())

	assert.ErrorIs(t, c.Dismiss(context.Background()), paywall.ErrNothingToDismiss)
}

func TestController_ConcurrentIntents(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	c, _ := newController(t, client)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); _, _ = c.Purchase(context.Background()) }()
		go func() { defer wg.Done(); _, _ = c.Restore(context.Background()) }()
		go func() { defer wg.Done(); _ = c.Select(context.Background(), "monthly"); _ = c.State() }()
	}
	wg.Wait()

	s := c.State()
	assert.False(t, s.Purchase.InProgress)
	assert.False(t, s.Restoring)
	assert.True(t, s.SuccessVisible)
}

func TestController_Observer(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		phases []paywall.Phase
	)
	observer := paywall.ObserverFunc(func(_ context.Context, s paywall.State) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, s.Phase)
	})
	client := &fakeClient{purchase: func(context.Context, paywall.Offering) (paywall.EntitlementStatus, error) {
		return paywall.EntitlementStatus{Active: true}, nil
	}}
	c, _ := newController(t, client, paywall.WithObserver(observer))

	_, err := c.Purchase(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Dismiss(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []paywall.Phase{paywall.PhasePurchasing, paywall.PhaseSuccess, paywall.PhaseIdle}, phases)
}

func TestNoticeQueue(t *testing.T) {
	t.Parallel()

	q := paywall.NewNoticeQueue(2)
	q.Notify(context.Background(), paywall.NoticeFor(paywall.NoticeLoadFailed))
	q.Notify(context.Background(), paywall.NoticeFor(paywall.NoticePurchaseFailed))
	q.Notify(context.Background(), paywall.NoticeFor(paywall.NoticeRestoreFailed))

	drained := q.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, paywall.NoticePurchaseFailed, drained[0].Kind)
	assert.Equal(t, paywall.NoticeRestoreFailed, drained[1].Kind)
	assert.Empty(t, q.Drain())
}

func ptr[T any](v T) *T { return &v }

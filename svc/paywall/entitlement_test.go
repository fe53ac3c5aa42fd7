package paywall_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paywall/pkg/analytics"
	"github.com/dmitrymomot/paywall/pkg/revenuecat"
	"github.com/dmitrymomot/paywall/svc/paywall"
)

type fakeBilling struct {
	mu         sync.Mutex
	offerings  *revenuecat.OfferingsResponse
	subscriber *revenuecat.SubscriberResponse
	err        error
	receipts   []revenuecat.Receipt
}

func (f *fakeBilling) Offerings(_ context.Context, _ string) (*revenuecat.OfferingsResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.offerings, nil
}

func (f *fakeBilling) PostReceipt(_ context.Context, r revenuecat.Receipt) (*revenuecat.SubscriberResponse, error) {
	f.mu.Lock()
	f.receipts = append(f.receipts, r)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.subscriber, nil
}

func (f *fakeBilling) Subscriber(_ context.Context, _ string) (*revenuecat.SubscriberResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.subscriber, nil
}

func subscriberWith(active bool) *revenuecat.SubscriberResponse {
	return &revenuecat.SubscriberResponse{Subscriber: revenuecat.Subscriber{
		Entitlements: map[string]revenuecat.Entitlement{
			"premium": {IsActive: &active, ProductIdentifier: "annual"},
		},
	}}
}

func newEntitlements(t *testing.T, api paywall.BillingAPI, opts ...paywall.EntitlementsOption) (*paywall.Entitlements, *analytics.Recorder) {
	t.Helper()
	rec := analytics.NewRecorder()
	opts = append([]paywall.EntitlementsOption{paywall.WithTracker(analytics.New(analytics.WithSink(rec)))}, opts...)
	e, err := paywall.NewEntitlements(api, "user_1", opts...)
	require.NoError(t, err)
	return e, rec
}

func TestNewEntitlements(t *testing.T) {
	t.Parallel()

	_, err := paywall.NewEntitlements(nil, "user_1")
	assert.ErrorIs(t, err, paywall.ErrNilBillingAPI)

	_, err = paywall.NewEntitlements(&fakeBilling{}, "")
	assert.ErrorIs(t, err, paywall.ErrMissingAppUserID)

	e, err := paywall.NewEntitlements(&fakeBilling{}, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "user_1", e.AppUserID())
}

func TestEntitlements_FetchOfferings(t *testing.T) {
	t.Parallel()

	t.Run("current offering prices", func(t *testing.T) {
		t.Parallel()
		api := &fakeBilling{offerings: &revenuecat.OfferingsResponse{
			CurrentOfferingID: "default",
			Offerings: map[string]revenuecat.Offering{
				"default": {Identifier: "default", Packages: []revenuecat.Package{
					{Identifier: "annual", Product: revenuecat.Product{PriceString: "$24.99"}},
					{Identifier: "monthly", Product: revenuecat.Product{}},
				}},
				"legacy": {Identifier: "legacy", Packages: []revenuecat.Package{
					{Identifier: "lifetime", Product: revenuecat.Product{PriceString: "$1.00"}},
				}},
			},
		}}
		e, rec := newEntitlements(t, api)

		set, err := e.FetchOfferings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "default", set.CurrentOfferingID)
		assert.Equal(t, map[string]string{"annual": "$24.99"}, set.Prices)
		assert.Equal(t, []string{paywall.EventOfferingsRequested, paywall.EventOfferingsLoaded}, rec.Names())
		assert.Equal(t, "user_1", rec.Events()[0].UserID)
	})

	t.Run("no current offering", func(t *testing.T) {
		t.Parallel()
		e, _ := newEntitlements(t, &fakeBilling{offerings: &revenuecat.OfferingsResponse{}})
		set, err := e.FetchOfferings(context.Background())
		require.NoError(t, err)
		assert.Empty(t, set.Prices)
	})

	t.Run("backend failure", func(t *testing.T) {
		t.Parallel()
		apiErr := &revenuecat.APIError{StatusCode: 503, Body: "unavailable"}
		e, rec := newEntitlements(t, &fakeBilling{err: apiErr})

		_, err := e.FetchOfferings(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, paywall.ErrBackendUnavailable)
		assert.True(t, revenuecat.IsAPIError(err))
		assert.Equal(t, []string{paywall.EventOfferingsRequested, paywall.EventOfferingsLoadFailed}, rec.Names())
		assert.Contains(t, rec.Events()[1].Properties, "error")
	})
}

func TestEntitlements_SubmitPurchase(t *testing.T) {
	t.Parallel()

	annual, _ := paywall.DefaultCatalog().Get("annual")

	t.Run("active entitlement", func(t *testing.T) {
		t.Parallel()
		api := &fakeBilling{subscriber: subscriberWith(true)}
		e, rec := newEntitlements(t, api)

		status, err := e.SubmitPurchase(context.Background(), annual)
		require.NoError(t, err)
		assert.True(t, status.Active)
		assert.Equal(t, "premium", status.EntitlementID)
		assert.Equal(t, "annual", status.ProductID)

		require.Len(t, api.receipts, 1)
		r := api.receipts[0]
		assert.Equal(t, "user_1", r.AppUserID)
		assert.Equal(t, "annual", r.ProductID)
		assert.Equal(t, "29.99", r.Price)
		assert.Equal(t, "USD", r.Currency)

		assert.Equal(t, []string{paywall.EventPurchaseAttempted, paywall.EventPurchaseSuccess}, rec.Names())
		assert.Equal(t, "annual", rec.Events()[1].Properties["product_id"])
	})

	t.Run("inactive entitlement", func(t *testing.T) {
		t.Parallel()
		e, rec := newEntitlements(t, &fakeBilling{subscriber: subscriberWith(false)})

		status, err := e.SubmitPurchase(context.Background(), annual)
		assert.ErrorIs(t, err, paywall.ErrEntitlementNotActivated)
		assert.False(t, status.Active)
		assert.Equal(t, []string{paywall.EventPurchaseAttempted, paywall.EventPurchaseNotActivated}, rec.Names())
	})

	t.Run("missing entitlement", func(t *testing.T) {
		t.Parallel()
		api := &fakeBilling{subscriber: &revenuecat.SubscriberResponse{}}
		e, _ := newEntitlements(t, api)

		_, err := e.SubmitPurchase(context.Background(), annual)
		assert.ErrorIs(t, err, paywall.ErrEntitlementNotActivated)
	})

	t.Run("custom entitlement id", func(t *testing.T) {
		t.Parallel()
		api := &fakeBilling{subscriber: &revenuecat.SubscriberResponse{Subscriber: revenuecat.Subscriber{
			Entitlements: map[string]revenuecat.Entitlement{"pro": {}},
		}}}
		e, _ := newEntitlements(t, api, paywall.WithEntitlementID("pro"))

		status, err := e.SubmitPurchase(context.Background(), annual)
		require.NoError(t, err)
		assert.True(t, status.Active, "null expiration is lifetime access")
	})

	t.Run("backend failure", func(t *testing.T) {
		t.Parallel()
		e, rec := newEntitlements(t, &fakeBilling{err: errors.New("connection reset")})

		_, err := e.SubmitPurchase(context.Background(), annual)
		assert.ErrorIs(t, err, paywall.ErrBackendUnavailable)
		assert.Equal(t, []string{paywall.EventPurchaseAttempted, paywall.EventPurchaseFailed}, rec.Names())
	})

	t.Run("unparseable price is omitted", func(t *testing.T) {
		t.Parallel()
		api := &fakeBilling{subscriber: subscriberWith(true)}
		e, _ := newEntitlements(t, api)

		_, err := e.SubmitPurchase(context.Background(), paywall.Offering{ID: "promo", Title: "Promo", Price: "Free"})
		require.NoError(t, err)
		require.Len(t, api.receipts, 1)
		assert.Empty(t, api.receipts[0].Price)
	})
}

func TestEntitlements_QueryAndRestore(t *testing.T) {
	t.Parallel()

	t.Run("active", func(t *testing.T) {
		t.Parallel()
		e, rec := newEntitlements(t, &fakeBilling{subscriber: subscriberWith(true)})
		status, err := e.QueryAndRestore(context.Background())
		require.NoError(t, err)
		assert.True(t, status.Active)
		assert.Equal(t, []string{paywall.EventRestoreAttempted, paywall.EventRestoreSuccess}, rec.Names())
	})

	t.Run("inactive is not an error", func(t *testing.T) {
		t.Parallel()
		e, rec := newEntitlements(t, &fakeBilling{subscriber: subscriberWith(false)})
		status, err := e.QueryAndRestore(context.Background())
		require.NoError(t, err)
		assert.False(t, status.Active)
		assert.Equal(t, []string{paywall.EventRestoreAttempted, paywall.EventRestoreNoSubscriber}, rec.Names())
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		expired := now.Add(-time.Hour)
		api := &fakeBilling{subscriber: &revenuecat.SubscriberResponse{Subscriber: revenuecat.Subscriber{
			Entitlements: map[string]revenuecat.Entitlement{"premium": {ExpiresDate: &expired}},
		}}}
		e, _ := newEntitlements(t, api, paywall.WithClock(func() time.Time { return now }))

		status, err := e.QueryAndRestore(context.Background())
		require.NoError(t, err)
		assert.False(t, status.Active)
		require.NotNil(t, status.ExpiresAt)
		assert.True(t, status.ExpiresAt.Equal(expired))
	})

	t.Run("backend failure", func(t *testing.T) {
		t.Parallel()
		e, rec := newEntitlements(t, &fakeBilling{err: &revenuecat.APIError{StatusCode: 500}})
		_, err := e.QueryAndRestore(context.Background())
		assert.ErrorIs(t, err, paywall.ErrBackendUnavailable)
		assert.Equal(t, []string{paywall.EventRestoreAttempted, paywall.EventRestoreFailed}, rec.Names())
	})
}

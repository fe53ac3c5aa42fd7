package paywall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/paywall/pkg/analytics"
	"github.com/dmitrymomot/paywall/pkg/logger"
	"github.com/dmitrymomot/paywall/pkg/price"
	"github.com/dmitrymomot/paywall/pkg/revenuecat"
)

// Analytics event names.
const (
	EventPaywallViewed        = "paywall_viewed"
	EventOfferingsRequested   = "offerings_requested"
	EventOfferingsLoaded      = "offerings_loaded_success"
	EventOfferingsLoadFailed  = "offerings_load_failed"
	EventPurchaseAttempted    = "purchase_attempted"
	EventPurchaseSuccess      = "purchase_success"
	EventPurchaseFailed       = "purchase_failed"
	EventPurchaseNotActivated = "purchase_not_activated"
	EventRestoreAttempted     = "restore_attempted"
	EventRestoreSuccess       = "restore_success"
	EventRestoreNoSubscriber  = "restore_no_subscription"
	EventRestoreFailed        = "restore_failed"
	EventSuccessDismissed     = "success_modal_dismissed"
)

// EntitlementStatus is the outcome of a purchase or restore.
type EntitlementStatus struct {
	Active        bool       `json:"active"`
	EntitlementID string     `json:"entitlement_id"`
	ProductID     string     `json:"product_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// OfferingSet holds live display prices keyed by offering identifier.
type OfferingSet struct {
	CurrentOfferingID string
	Prices            map[string]string
}

// EntitlementClient is the billing collaborator the Controller drives.
// Implementations emit analytics for each attempt and outcome.
type EntitlementClient interface {
	FetchOfferings(ctx context.Context) (OfferingSet, error)
	SubmitPurchase(ctx context.Context, offering Offering) (EntitlementStatus, error)
	QueryAndRestore(ctx context.Context) (EntitlementStatus, error)
}

// BillingAPI is the subset of the billing REST client used here.
// *revenuecat.Client satisfies it.
type BillingAPI interface {
	Offerings(ctx context.Context, appUserID string) (*revenuecat.OfferingsResponse, error)
	PostReceipt(ctx context.Context, r revenuecat.Receipt) (*revenuecat.SubscriberResponse, error)
	Subscriber(ctx context.Context, appUserID string) (*revenuecat.SubscriberResponse, error)
}

// Entitlements implements EntitlementClient for a single app user.
type Entitlements struct {
	api           BillingAPI
	appUserID     string
	entitlementID string
	prices        *price.Parser
	tracker       analytics.Tracker
	logger        *slog.Logger
	now           func() time.Time
}

type EntitlementsOption func(*Entitlements)

// WithEntitlementID sets the entitlement that grants premium access. Default: "premium".
func WithEntitlementID(id string) EntitlementsOption {
	return func(e *Entitlements) {
		if id != "" {
			e.entitlementID = id
		}
	}
}

// WithPriceParser sets the parser that turns display prices into receipt amounts.
func WithPriceParser(p *price.Parser) EntitlementsOption {
	return func(e *Entitlements) {
		if p != nil {
			e.prices = p
		}
	}
}

func WithTracker(t analytics.Tracker) EntitlementsOption {
	return func(e *Entitlements) {
		if t != nil {
			e.tracker = t
		}
	}
}

func WithLogger(l *slog.Logger) EntitlementsOption {
	return func(e *Entitlements) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source used to evaluate expirations.
func WithClock(now func() time.Time) EntitlementsOption {
	return func(e *Entitlements) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEntitlements binds a billing API to appUserID.
func NewEntitlements(api BillingAPI, appUserID string, opts ...EntitlementsOption) (*Entitlements, error) {
	if api == nil {
		return nil, ErrNilBillingAPI
	}
	if appUserID == "" {
		return nil, ErrMissingAppUserID
	}
	e := &Entitlements{
		api:           api,
		appUserID:     appUserID,
		entitlementID: "premium",
		tracker:       analytics.Nop(),
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.prices == nil {
		p, err := Config{Currency: "USD", Locale: "en"}.PriceParser()
		if err != nil {
			return nil, err
		}
		e.prices = p
	}
	return e, nil
}

// AppUserID returns the subscriber identifier this client is bound to.
func (e *Entitlements) AppUserID() string {
	return e.appUserID
}

// FetchOfferings loads live prices for the current offering.
// A response without a current offering yields an empty price map.
func (e *Entitlements) FetchOfferings(ctx context.Context) (OfferingSet, error) {
	ctx = analytics.WithUserID(ctx, e.appUserID)
	e.tracker.Track(ctx, EventOfferingsRequested, nil)

	resp, err := e.api.Offerings(ctx, e.appUserID)
	if err != nil {
		e.tracker.Track(ctx, EventOfferingsLoadFailed, map[string]any{"error": err.Error()})
		e.logFailure(ctx, "fetch_offerings", err)
		return OfferingSet{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	set := OfferingSet{CurrentOfferingID: resp.CurrentOfferingID, Prices: map[string]string{}}
	if current, ok := resp.Current(); ok {
		for _, pkg := range current.Packages {
			if pkg.Identifier != "" && pkg.Product.PriceString != "" {
				set.Prices[pkg.Identifier] = pkg.Product.PriceString
			}
		}
	}

	e.tracker.Track(ctx, EventOfferingsLoaded, map[string]any{
		"current_offering_id": set.CurrentOfferingID,
		"packages":            len(set.Prices),
	})
	return set, nil
}

// SubmitPurchase posts a receipt for offering and evaluates the resulting entitlement.
// An inactive entitlement after a successful call returns ErrEntitlementNotActivated.
func (e *Entitlements) SubmitPurchase(ctx context.Context, offering Offering) (EntitlementStatus, error) {
	ctx = analytics.WithUserID(ctx, e.appUserID)
	e.tracker.Track(ctx, EventPurchaseAttempted, map[string]any{
		"product_id": offering.ID,
		"price":      offering.Price,
	})

	amount, err := e.prices.Amount(offering.Price)
	if err != nil {
		e.logger.WarnContext(ctx, "receipt price not parseable, sending without amount",
			logger.Component("paywall"),
			logger.OfferingID(offering.ID),
			logger.Error(err),
		)
		amount = ""
	}

	resp, err := e.api.PostReceipt(ctx, revenuecat.Receipt{
		AppUserID: e.appUserID,
		ProductID: offering.ID,
		Price:     amount,
		Currency:  e.prices.Currency(),
	})
	if err != nil {
		e.tracker.Track(ctx, EventPurchaseFailed, map[string]any{
			"product_id": offering.ID,
			"error":      err.Error(),
		})
		e.logFailure(ctx, "submit_purchase", err, logger.OfferingID(offering.ID))
		return EntitlementStatus{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	status := e.evaluate(resp.Subscriber)
	if !status.Active {
		e.tracker.Track(ctx, EventPurchaseNotActivated, map[string]any{"product_id": offering.ID})
		return status, ErrEntitlementNotActivated
	}

	e.tracker.Track(ctx, EventPurchaseSuccess, map[string]any{"product_id": offering.ID})
	return status, nil
}

// QueryAndRestore looks up the subscriber and reports whether the entitlement is active.
// An inactive entitlement is a normal outcome, not an error.
func (e *Entitlements) QueryAndRestore(ctx context.Context) (EntitlementStatus, error) {
	ctx = analytics.WithUserID(ctx, e.appUserID)
	e.tracker.Track(ctx, EventRestoreAttempted, nil)

	resp, err := e.api.Subscriber(ctx, e.appUserID)
	if err != nil {
		e.tracker.Track(ctx, EventRestoreFailed, map[string]any{"error": err.Error()})
		e.logFailure(ctx, "restore", err)
		return EntitlementStatus{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	status := e.evaluate(resp.Subscriber)
	if status.Active {
		e.tracker.Track(ctx, EventRestoreSuccess, nil)
	} else {
		e.tracker.Track(ctx, EventRestoreNoSubscriber, nil)
	}
	return status, nil
}

func (e *Entitlements) evaluate(s revenuecat.Subscriber) EntitlementStatus {
	status := EntitlementStatus{EntitlementID: e.entitlementID}
	ent, ok := s.Entitlement(e.entitlementID)
	if !ok {
		return status
	}
	status.Active = ent.Active(e.now())
	status.ProductID = ent.ProductIdentifier
	status.ExpiresAt = ent.ExpiresDate
	return status
}

func (e *Entitlements) logFailure(ctx context.Context, op string, err error, attrs ...slog.Attr) {
	args := []any{
		logger.Component("paywall"),
		logger.Event(op),
		logger.AppUserID(e.appUserID),
		logger.Error(err),
	}
	var apiErr *revenuecat.APIError
	if errors.As(err, &apiErr) {
		args = append(args, logger.StatusCode(apiErr.StatusCode))
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	e.logger.ErrorContext(ctx, "billing request failed", args...)
}

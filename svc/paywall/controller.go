// Package paywall implements the purchase and restore flow of a subscription
// paywall screen over a billing backend.
package paywall

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/paywall/pkg/analytics"
	"github.com/dmitrymomot/paywall/pkg/logger"
	"github.com/dmitrymomot/paywall/pkg/statemachine"
)

// Phase is the screen-level state derived from the independent lanes.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseFetchingOfferings Phase = "fetching_offerings"
	PhasePurchasing        Phase = "purchasing"
	PhaseRestoring         Phase = "restoring"
	PhaseSuccess           Phase = "success"
	PhaseIdleWithError     Phase = "idle_with_error"
)

// Outcome is the settled result of a purchase or restore.
type Outcome string

const (
	OutcomeActivated      Outcome = "activated"
	OutcomeNotActivated   Outcome = "not_activated"
	OutcomeNoSubscription Outcome = "no_subscription"
	OutcomeFailed         Outcome = "failed"
)

// PurchaseState reports the single in-flight purchase, if any.
type PurchaseState struct {
	InProgress       bool   `json:"in_progress"`
	ActiveIdentifier string `json:"active_identifier,omitempty"`
}

// State is a consistent snapshot of a Controller.
type State struct {
	Phase          Phase              `json:"phase"`
	Offerings      []Offering         `json:"offerings"`
	Selected       string             `json:"selected"`
	Purchase       PurchaseState      `json:"purchase"`
	Restoring      bool               `json:"restoring"`
	Fetching       bool               `json:"fetching"`
	SuccessVisible bool               `json:"success_visible"`
	LastNotice     *Notice            `json:"last_notice,omitempty"`
	Entitlement    *EntitlementStatus `json:"entitlement,omitempty"`
}

// SelectedOffering returns the offering referenced by Selected.
func (s State) SelectedOffering() (Offering, bool) {
	for _, o := range s.Offerings {
		if o.ID == s.Selected {
			return o, true
		}
	}
	return Offering{}, false
}

// Processing reports whether the in-flight purchase is for offering id.
func (s State) Processing(id string) bool {
	return s.Purchase.InProgress && s.Purchase.ActiveIdentifier == id
}

// Lane states and events. Each single-flight operation owns a two-state lane;
// firing start on a busy lane has no transition and is rejected.
var (
	laneIdle       = statemachine.StringState("idle")
	lanePurchasing = statemachine.StringState("purchasing")
	laneRestoring  = statemachine.StringState("restoring")
	laneFetching   = statemachine.StringState("fetching")

	dialogHidden = statemachine.StringState("hidden")
	dialogShown  = statemachine.StringState("shown")

	eventStart   = statemachine.StringEvent("start")
	eventFinish  = statemachine.StringEvent("finish")
	eventReveal  = statemachine.StringEvent("reveal")
	eventConceal = statemachine.StringEvent("conceal")
	eventDismiss = statemachine.StringEvent("dismiss")
)

// Controller drives one paywall screen: offering selection, the purchase
// and restore single-flight guards, and the success confirmation.
// Purchase and restore are guarded independently of each other.
type Controller struct {
	client   EntitlementClient
	notifier Notifier
	observer Observer
	tracker  analytics.Tracker
	logger   *slog.Logger
	userID   string

	// mu serializes lane transitions with the fields below so snapshots never
	// observe a half-applied outcome.
	mu          sync.RWMutex
	catalog     Catalog
	selected    string
	activeID    string
	entitlement *EntitlementStatus
	lastNotice  *Notice

	purchase statemachine.StateMachine
	restore  statemachine.StateMachine
	refresh  statemachine.StateMachine
	dialog   statemachine.StateMachine
}

type ControllerOption func(*Controller)

// WithNotifier sets where user-visible notices are delivered.
func WithNotifier(n Notifier) ControllerOption {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithObserver registers o to receive a snapshot after every state change.
func WithObserver(o Observer) ControllerOption {
	return func(c *Controller) {
		c.observer = o
	}
}

func WithControllerTracker(t analytics.Tracker) ControllerOption {
	return func(c *Controller) {
		if t != nil {
			c.tracker = t
		}
	}
}

func WithControllerLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAppUserID attributes screen-level analytics events to the app user.
func WithAppUserID(id string) ControllerOption {
	return func(c *Controller) {
		c.userID = id
	}
}

// NewController returns a Controller in Idle with the catalog's default selection.
func NewController(client EntitlementClient, catalog Catalog, opts ...ControllerOption) (*Controller, error) {
	if client == nil {
		return nil, ErrNilEntitlements
	}
	if catalog.Len() == 0 {
		return nil, ErrEmptyCatalog
	}
	c := &Controller{
		client:   client,
		notifier: nopNotifier{},
		tracker:  analytics.Nop(),
		logger:   slog.Default(),
		catalog:  catalog,
		selected: catalog.DefaultID(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.purchase = statemachine.MustNew(laneIdle,
		statemachine.WithTransition(laneIdle, lanePurchasing, eventStart, statemachine.WithAction(c.holdPurchase)),
		statemachine.WithTransition(lanePurchasing, laneIdle, eventFinish, statemachine.WithAction(c.releasePurchase)),
	)
	c.restore = newLane(laneRestoring)
	c.refresh = newLane(laneFetching)
	c.dialog = statemachine.MustNew(dialogHidden,
		statemachine.WithTransition(dialogHidden, dialogShown, eventReveal),
		statemachine.WithTransition(dialogShown, dialogShown, eventReveal),
		statemachine.WithTransition(dialogShown, dialogHidden, eventConceal),
		statemachine.WithTransition(dialogHidden, dialogHidden, eventConceal),
		statemachine.WithTransition(dialogShown, dialogHidden, eventDismiss),
	)
	return c, nil
}

func newLane(busy statemachine.State) statemachine.StateMachine {
	return statemachine.MustNew(laneIdle,
		statemachine.WithTransition(laneIdle, busy, eventStart),
		statemachine.WithTransition(busy, laneIdle, eventFinish),
	)
}

// holdPurchase and releasePurchase run inside Fire with c.mu held.
func (c *Controller) holdPurchase(_ context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
	id, _ := data.(string)
	c.activeID = id
	return nil
}

func (c *Controller) releasePurchase(context.Context, statemachine.State, statemachine.State, statemachine.Event, any) error {
	c.activeID = ""
	return nil
}

// Mount records the screen view and performs the initial offerings refresh.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.RLock()
	props := map[string]any{"offerings": c.catalog.Len(), "selected": c.selected}
	c.mu.RUnlock()
	c.track(ctx, EventPaywallViewed, props)
	return c.Refresh(ctx)
}

// Refresh fetches live prices and applies them to the catalog.
// Failure keeps the current prices and surfaces a load-failure notice.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if err := c.refresh.Fire(ctx, eventStart, nil); err != nil {
		c.mu.Unlock()
		return laneError(err, ErrRefreshInProgress)
	}
	c.lastNotice = nil
	c.mu.Unlock()
	c.publish(ctx)

	var (
		set OfferingSet
		err error
	)
	defer func() { c.settleRefresh(ctx, set, err) }()

	set, err = c.client.FetchOfferings(context.WithoutCancel(ctx))
	return nil
}

func (c *Controller) settleRefresh(ctx context.Context, set OfferingSet, err error) {
	c.mu.Lock()
	c.finish(ctx, c.refresh, "refresh")
	var notice *Notice
	if err != nil {
		n := NoticeFor(NoticeLoadFailed)
		c.lastNotice = &n
		notice = &n
	} else {
		c.catalog = c.catalog.WithPrices(set.Prices)
	}
	c.mu.Unlock()
	c.publish(ctx)

	if notice != nil {
		c.logger.WarnContext(ctx, "offerings refresh failed",
			logger.Component("paywall"),
			logger.Error(err),
		)
		c.notifier.Notify(ctx, *notice)
	}
}

// Select changes the selected offering. It is permitted while a purchase is
// in flight; the in-flight purchase keeps its original offering.
func (c *Controller) Select(ctx context.Context, id string) error {
	c.mu.Lock()
	if !c.catalog.Has(id) {
		c.mu.Unlock()
		return ErrUnknownOffering
	}
	c.selected = id
	c.mu.Unlock()
	c.publish(ctx)
	return nil
}

// Purchase submits the selected offering. It returns ErrPurchaseInProgress
// without a remote call while another purchase is outstanding. Backend
// failures are settled here and reported through the Outcome and a notice.
func (c *Controller) Purchase(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	offering, ok := c.catalog.Get(c.selected)
	if !ok {
		c.mu.Unlock()
		return "", ErrUnknownOffering
	}
	if err := c.purchase.Fire(ctx, eventStart, offering.ID); err != nil {
		c.mu.Unlock()
		return "", laneError(err, ErrPurchaseInProgress)
	}
	c.lastNotice = nil
	c.mu.Unlock()
	c.publish(ctx)

	outcome := OutcomeFailed
	var status EntitlementStatus
	defer func() { c.settle(ctx, c.purchase, outcome, status, NoticePurchaseFailed) }()

	status, err := c.client.SubmitPurchase(context.WithoutCancel(ctx), offering)
	switch {
	case err == nil && status.Active:
		outcome = OutcomeActivated
	case errors.Is(err, ErrEntitlementNotActivated):
		outcome = OutcomeNotActivated
	}

	c.logger.Log(ctx, settledLevel(outcome), "purchase settled",
		logger.Component("paywall"),
		logger.OfferingID(offering.ID),
		slog.String("outcome", string(outcome)),
		logger.Error(err),
	)
	return outcome, nil
}

// Restore queries the subscriber's entitlement. It returns ErrRestoreInProgress
// without a remote call while another restore is outstanding.
func (c *Controller) Restore(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if err := c.restore.Fire(ctx, eventStart, nil); err != nil {
		c.mu.Unlock()
		return "", laneError(err, ErrRestoreInProgress)
	}
	c.lastNotice = nil
	c.mu.Unlock()
	c.publish(ctx)

	outcome := OutcomeFailed
	kind := NoticeRestoreFailed
	var status EntitlementStatus
	defer func() { c.settle(ctx, c.restore, outcome, status, kind) }()

	status, err := c.client.QueryAndRestore(context.WithoutCancel(ctx))
	switch {
	case err != nil:
	case status.Active:
		outcome = OutcomeActivated
	default:
		outcome = OutcomeNoSubscription
		kind = NoticeNoSubscription
	}

	c.logger.Log(ctx, settledLevel(outcome), "restore settled",
		logger.Component("paywall"),
		slog.String("outcome", string(outcome)),
		logger.Error(err),
	)
	return outcome, nil
}

// settledLevel reports anything short of an activated entitlement at warn.
func settledLevel(outcome Outcome) slog.Level {
	if outcome == OutcomeActivated {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}

// settle releases lane and applies the outcome in one critical section.
// The confirmation is shown only for an activated outcome and hidden otherwise.
func (c *Controller) settle(ctx context.Context, lane statemachine.StateMachine, outcome Outcome, status EntitlementStatus, kind NoticeKind) {
	c.mu.Lock()
	c.finish(ctx, lane, string(outcome))
	var notice *Notice
	if outcome == OutcomeActivated {
		c.entitlement = &status
		c.lastNotice = nil
		c.fireDialog(ctx, eventReveal)
	} else {
		n := NoticeFor(kind)
		c.lastNotice = &n
		notice = &n
		c.fireDialog(ctx, eventConceal)
	}
	c.mu.Unlock()
	c.publish(ctx)

	if notice != nil {
		c.notifier.Notify(ctx, *notice)
	}
}

// Dismiss hides the success confirmation. ErrNothingToDismiss is returned
// when it is not shown.
func (c *Controller) Dismiss(ctx context.Context) error {
	c.mu.Lock()
	err := c.dialog.Fire(ctx, eventDismiss, nil)
	c.mu.Unlock()
	if err != nil {
		return laneError(err, ErrNothingToDismiss)
	}
	c.publish(ctx)
	c.track(ctx, EventSuccessDismissed, nil)
	return nil
}

// State returns a consistent snapshot.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := State{
		Phase:          c.phaseLocked(),
		Offerings:      c.catalog.Offerings(),
		Selected:       c.selected,
		Restoring:      c.restore.Current() == laneRestoring,
		Fetching:       c.refresh.Current() == laneFetching,
		SuccessVisible: c.dialog.Current() == dialogShown,
		Purchase: PurchaseState{
			InProgress:       c.purchase.Current() == lanePurchasing,
			ActiveIdentifier: c.activeID,
		},
	}
	if c.lastNotice != nil {
		n := *c.lastNotice
		s.LastNotice = &n
	}
	if c.entitlement != nil {
		e := *c.entitlement
		s.Entitlement = &e
	}
	return s
}

// phaseLocked collapses the lanes into one display phase. Caller holds c.mu.
func (c *Controller) phaseLocked() Phase {
	switch {
	case c.dialog.Current() == dialogShown:
		return PhaseSuccess
	case c.purchase.Current() == lanePurchasing:
		return PhasePurchasing
	case c.restore.Current() == laneRestoring:
		return PhaseRestoring
	case c.refresh.Current() == laneFetching:
		return PhaseFetchingOfferings
	case c.lastNotice != nil:
		return PhaseIdleWithError
	default:
		return PhaseIdle
	}
}

func (c *Controller) finish(ctx context.Context, lane statemachine.StateMachine, op string) {
	if err := lane.Fire(ctx, eventFinish, nil); err != nil {
		c.logger.ErrorContext(ctx, "lane release failed",
			logger.Component("paywall"),
			logger.Event(op),
			logger.Error(err),
		)
	}
}

func (c *Controller) fireDialog(ctx context.Context, ev statemachine.Event) {
	if err := c.dialog.Fire(ctx, ev, nil); err != nil {
		c.logger.ErrorContext(ctx, "confirmation transition failed",
			logger.Component("paywall"),
			logger.Event(ev.Name()),
			logger.Error(err),
		)
	}
}

func (c *Controller) publish(ctx context.Context) {
	if c.observer != nil {
		c.observer.Observe(ctx, c.State())
	}
}

func (c *Controller) track(ctx context.Context, name string, props map[string]any) {
	if c.userID != "" {
		ctx = analytics.WithUserID(ctx, c.userID)
	}
	c.tracker.Track(ctx, name, props)
}

// laneError maps a rejected lane transition to the caller-facing sentinel.
func laneError(err, busy error) error {
	if statemachine.IsNoTransitionAvailableError(err) {
		return busy
	}
	return err
}

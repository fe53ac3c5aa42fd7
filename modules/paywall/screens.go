package paywall

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/paywall/pkg/analytics"
	"github.com/dmitrymomot/paywall/pkg/broadcast"
	"github.com/dmitrymomot/paywall/pkg/cache"
	svc "github.com/dmitrymomot/paywall/svc/paywall"
)

// anonymousPrefix marks app user ids generated for visitors without an account.
const anonymousPrefix = "$RCAnonymousID:"

// ControllerFactory builds the controller for a newly opened screen.
// opts carry the screen's notifier and observer and must be applied.
type ControllerFactory func(appUserID string, opts ...svc.ControllerOption) (*svc.Controller, error)

// NewControllerFactory resolves the catalog and price parser once and binds
// a fresh entitlement client to every screen's app user.
func NewControllerFactory(api svc.BillingAPI, cfg svc.Config, tracker analytics.Tracker, log *slog.Logger) (ControllerFactory, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	parser, err := cfg.PriceParser()
	if err != nil {
		return nil, err
	}

	return func(appUserID string, opts ...svc.ControllerOption) (*svc.Controller, error) {
		client, err := svc.NewEntitlements(api, appUserID,
			svc.WithEntitlementID(cfg.EntitlementID),
			svc.WithPriceParser(parser),
			svc.WithTracker(tracker),
			svc.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		base := []svc.ControllerOption{
			svc.WithControllerTracker(tracker),
			svc.WithControllerLogger(log),
			svc.WithAppUserID(appUserID),
		}
		return svc.NewController(client, catalog, append(base, opts...)...)
	}, nil
}

// Screen is one mounted paywall with its own controller state.
type Screen struct {
	ID         string
	AppUserID  string
	Controller *svc.Controller

	notices *svc.NoticeQueue
	updates *broadcast.MemoryBroadcaster[svc.State]
}

// Notices drains the notices raised since the last call.
func (s *Screen) Notices() []svc.Notice {
	return s.notices.Drain()
}

// Subscribe streams state snapshots until ctx is done.
func (s *Screen) Subscribe(ctx context.Context) broadcast.Subscriber[svc.State] {
	return s.updates.Subscribe(ctx)
}

// Screens keeps the most recently used screens. A screen evicted for
// capacity or idleness loses its state and its subscribers are closed.
type Screens struct {
	items       *cache.LRUCache[string, *Screen]
	factory     ControllerFactory
	noticeLimit int
}

type screensOptions struct {
	capacity    int
	noticeLimit int
	idleTTL     time.Duration
}

// ScreensOption configures NewScreens.
type ScreensOption func(*screensOptions)

// WithCapacity bounds the number of open screens. Non-positive values keep
// the default of 10000.
func WithCapacity(n int) ScreensOption {
	return func(o *screensOptions) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithNoticeLimit bounds the pending notices kept per screen.
func WithNoticeLimit(n int) ScreensOption {
	return func(o *screensOptions) { o.noticeLimit = n }
}

// WithIdleTTL expires screens untouched for d. Zero disables expiry.
func WithIdleTTL(d time.Duration) ScreensOption {
	return func(o *screensOptions) { o.idleTTL = d }
}

func NewScreens(factory ControllerFactory, opts ...ScreensOption) (*Screens, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}
	o := screensOptions{capacity: 10000}
	for _, opt := range opts {
		opt(&o)
	}
	items := cache.NewLRUCache[string, *Screen](o.capacity,
		cache.WithIdleTTL[string, *Screen](o.idleTTL),
		cache.WithEvictCallback(func(_ string, s *Screen) {
			_ = s.updates.Close()
		}),
	)
	return &Screens{items: items, factory: factory, noticeLimit: o.noticeLimit}, nil
}

// Open mounts a new screen. An empty appUserID gets an anonymous id.
func (s *Screens) Open(appUserID string) (*Screen, error) {
	if appUserID == "" {
		appUserID = anonymousPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	screen := &Screen{
		ID:        uuid.NewString(),
		AppUserID: appUserID,
		notices:   svc.NewNoticeQueue(s.noticeLimit),
		updates:   broadcast.NewMemoryBroadcaster[svc.State](1),
	}
	observer := svc.ObserverFunc(func(ctx context.Context, st svc.State) {
		_ = screen.updates.Broadcast(ctx, broadcast.Message[svc.State]{Data: st})
	})

	ctrl, err := s.factory(appUserID, svc.WithNotifier(screen.notices), svc.WithObserver(observer))
	if err != nil {
		return nil, err
	}
	screen.Controller = ctrl
	s.items.Put(screen.ID, screen)
	return screen, nil
}

// Get returns the screen with id or ErrScreenNotFound.
func (s *Screens) Get(id string) (*Screen, error) {
	screen, ok := s.items.Get(id)
	if !ok {
		return nil, ErrScreenNotFound
	}
	return screen, nil
}

func (s *Screens) Len() int {
	return s.items.Len()
}

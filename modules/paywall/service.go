// Package paywall serves the paywall screen: full page render, the four user
// intents as datastar requests, and a JSON snapshot for native clients.
package paywall

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/paywall/binder"
	"github.com/dmitrymomot/paywall/handler"
	"github.com/dmitrymomot/paywall/pkg/logger"
	"github.com/dmitrymomot/paywall/pkg/requestid"
	svc "github.com/dmitrymomot/paywall/svc/paywall"
)

type Service struct {
	cfg          Config
	screens      *Screens
	views        *Views
	features     []svc.Feature
	resolveUser  AppUserResolver
	log          *slog.Logger
	errorHandler handler.ErrorHandler[handler.Context]
}

// NewService wires the screen registry to the HTTP layer. Nil views fall
// back to DefaultViews. Without WithAppUserResolver the app user comes from
// cfg.UserHeader when set and from the app_user_id query parameter otherwise.
func NewService(cfg Config, factory ControllerFactory, views *Views, log *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	screens, err := NewScreens(factory,
		WithCapacity(cfg.MaxScreens),
		WithNoticeLimit(cfg.NoticeLimit),
		WithIdleTTL(cfg.ScreenIdleTTL),
	)
	if err != nil {
		return nil, err
	}
	views = views.withDefaults()

	s := &Service{
		cfg:         cfg,
		screens:     screens,
		views:       views,
		features:    svc.DefaultFeatures(),
		resolveUser: defaultResolver(cfg),
		log:         log,
		errorHandler: handler.NewErrorHandler(log, handler.ErrorHandlerConfig{
			ErrorPage:   views.ErrorPage,
			ErrorToast:  views.ErrorToast,
			ToastTarget: ToastTarget,
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Screens exposes the registry, mostly for tests and metrics.
func (s *Service) Screens() *Screens {
	return s.screens
}

// Handle returns the router to mount at cfg.BasePath.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()

	r.Get("/", wrap(s, "mount", s.mount))
	r.Route("/{screen}", func(r chi.Router) {
		r.Get("/offerings", wrap(s, "offerings", s.offerings))
		r.Post("/select/{offering}", wrap(s, "select", s.selectOffering))
		r.Post("/purchase", wrap(s, "purchase", s.purchase))
		r.Post("/restore", wrap(s, "restore", s.restore))
		r.Post("/dismiss", wrap(s, "dismiss", s.dismiss))
		r.Get("/state", wrap(s, "state", s.state))
	})

	return r
}

func wrap[R any](s *Service, name string, h handler.HandlerFunc[handler.Context, R]) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](
			binder.Path(chi.URLParam),
			binder.Query(),
		),
		handler.WithErrorHandler[handler.Context, R](s.errorHandler),
		handler.WithDecorators(logIntent[R](s.log, name)),
	)
}

// logIntent logs each handled request at debug level.
func logIntent[R any](log *slog.Logger, name string) handler.Decorator[handler.Context, R] {
	return func(next handler.HandlerFunc[handler.Context, R]) handler.HandlerFunc[handler.Context, R] {
		return func(ctx handler.Context, req R) handler.Response {
			start := time.Now()
			resp := next(ctx, req)
			log.DebugContext(ctx, "paywall request handled",
				logger.Component("paywall"),
				logger.Handler(name),
				logger.RequestID(requestid.FromContext(ctx)),
				logger.Duration(time.Since(start)),
			)
			return resp
		}
	}
}

type ScreenRequest struct {
	ScreenID string `path:"screen"`
}

type SelectRequest struct {
	ScreenID   string `path:"screen"`
	OfferingID string `path:"offering"`
}

func (s *Service) params(screen *Screen, state svc.State) ScreenParams {
	return ScreenParams{
		BasePath:   s.cfg.BasePath,
		ScreenID:   screen.ID,
		Script:     s.cfg.DatastarScript,
		TermsURL:   s.cfg.TermsURL,
		PrivacyURL: s.cfg.PrivacyURL,
		State:      state,
		Features:   s.features,
	}
}

// mount opens a screen for the app user named by the resolver. The screen id
// in the page is the only credential later intents carry.
func (s *Service) mount(ctx handler.Context, _ struct{}) handler.Response {
	appUserID, err := s.resolveUser(ctx.Request())
	if err != nil {
		s.log.WarnContext(ctx, "paywall app user rejected",
			logger.Component("paywall"),
			logger.Error(err),
		)
		return handler.Error(err)
	}
	screen, err := s.screens.Open(appUserID)
	if err != nil {
		return handler.Error(err)
	}
	s.log.InfoContext(ctx, "paywall screen opened",
		logger.Component("paywall"),
		logger.ScreenID(screen.ID),
		logger.AppUserID(screen.AppUserID),
	)
	return handler.Templ(s.views.Page(s.params(screen, screen.Controller.State())))
}

// offerings is requested by the page on load and performs the initial refresh.
func (s *Service) offerings(ctx handler.Context, req ScreenRequest) handler.Response {
	screen, err := s.screens.Get(req.ScreenID)
	if err != nil {
		return handler.Error(httpError(err))
	}
	if err := screen.Controller.Mount(ctx); err != nil {
		return handler.Error(httpError(err))
	}
	return handler.TemplMulti(s.settled(screen)...)
}

func (s *Service) selectOffering(ctx handler.Context, req SelectRequest) handler.Response {
	screen, err := s.screens.Get(req.ScreenID)
	if err != nil {
		return handler.Error(httpError(err))
	}
	if err := screen.Controller.Select(ctx, req.OfferingID); err != nil {
		return handler.Error(httpError(err))
	}
	return handler.TemplMulti(s.fragments(screen, screen.Controller.State())...)
}

func (s *Service) purchase(_ handler.Context, req ScreenRequest) handler.Response {
	screen, err := s.screens.Get(req.ScreenID)
	if err != nil {
		return handler.Error(httpError(err))
	}
	return s.stream(screen, screen.Controller.Purchase)
}

func (s *Service) restore(_ handler.Context, req ScreenRequest) handler.Response {
	screen, err := s.screens.Get(req.ScreenID)
	if err != nil {
		return handler.Error(httpError(err))
	}
	return s.stream(screen, screen.Controller.Restore)
}

func (s *Service) dismiss(ctx handler.Context, req ScreenRequest) handler.Response {
	screen, err := s.screens.Get(req.ScreenID)
	if err != nil {
		return handler.Error(httpError(err))
	}
	if err := screen.Controller.Dismiss(ctx); err != nil {
		if errors.Is(err, svc.ErrNothingToDismiss) {
			return handler.Empty()
		}
		return handler.Error(err)
	}
	p := s.params(screen, screen.Controller.State())
	return handler.TemplPartial(s.views.Dialog(p), s.views.Page(p), handler.WithTarget(DialogTarget))
}

func (s *Service) state(_ handler.Context, req ScreenRequest) handler.Response {
	screen, err := s.screens.Get(req.ScreenID)
	if err != nil {
		return handler.JSONError(httpError(err))
	}
	return handler.JSON(screen.Controller.State(), handler.WithJSONMeta(map[string]any{
		"screen_id":   screen.ID,
		"app_user_id": screen.AppUserID,
	}))
}

// stream runs a purchase or restore, patching every snapshot published while
// it is in flight and then the settled state with any pending notices.
func (s *Service) stream(screen *Screen, run func(context.Context) (svc.Outcome, error)) handler.Response {
	return handler.SSE(func(stream handler.StreamContext) error {
		sub := screen.Subscribe(stream)
		defer func() { _ = sub.Close() }()
		updates := sub.Receive(stream)

		done := make(chan error, 1)
		go func() {
			_, err := run(stream)
			done <- err
		}()

		for {
			select {
			case msg, ok := <-updates:
				if !ok {
					updates = nil
					continue
				}
				if err := stream.SendMultiple(s.fragments(screen, msg.Data)...); err != nil {
					return err
				}
				if err := stream.SendSignals(signals(msg.Data)); err != nil {
					return err
				}
			case err := <-done:
				if err != nil {
					return s.reject(stream, screen, err)
				}
				if err := stream.SendMultiple(s.settled(screen)...); err != nil {
					return err
				}
				return stream.SendSignals(signals(screen.Controller.State()))
			}
		}
	})
}

// reject reports an intent refused by a single-flight guard as a warning
// toast on the already open stream.
func (s *Service) reject(stream handler.StreamContext, screen *Screen, err error) error {
	var httpErr handler.HTTPError
	if !errors.As(httpError(err), &httpErr) {
		return err
	}
	s.log.WarnContext(stream, "paywall intent rejected",
		logger.Component("paywall"),
		logger.ScreenID(screen.ID),
		logger.Error(err),
	)
	if err := stream.SendMultiple(s.fragments(screen, screen.Controller.State())...); err != nil {
		return err
	}
	return stream.SendComponent(
		s.views.ErrorToast(handler.ErrorToastParams{
			Message:   httpErr.Key,
			Type:      "warning",
			RequestID: requestid.FromContext(stream),
		}),
		handler.WithTarget(ToastTarget),
		handler.WithPatchMode(handler.PatchPrepend),
	)
}

// signals mirrors the busy flags the page binds aria-busy to.
func signals(state svc.State) map[string]any {
	return map[string]any{
		"purchasing": state.Purchase.InProgress,
		"restoring":  state.Restoring,
	}
}

// fragments patches the pricing cards and the action buttons.
func (s *Service) fragments(screen *Screen, state svc.State) []handler.TemplPatch {
	p := s.params(screen, state)
	return []handler.TemplPatch{
		handler.Patch(s.views.Pricing(p), handler.WithTarget(PricingTarget)),
		handler.Patch(s.views.Actions(p), handler.WithTarget(ActionsTarget)),
	}
}

// settled patches every fragment plus one toast per drained notice.
func (s *Service) settled(screen *Screen) []handler.TemplPatch {
	p := s.params(screen, screen.Controller.State())
	patches := s.fragments(screen, p.State)
	patches = append(patches, handler.Patch(s.views.Dialog(p), handler.WithTarget(DialogTarget)))
	for _, n := range screen.Notices() {
		patches = append(patches, handler.Patch(s.views.Toast(n),
			handler.WithTarget(ToastTarget),
			handler.WithPatchMode(handler.PatchPrepend),
		))
	}
	return patches
}

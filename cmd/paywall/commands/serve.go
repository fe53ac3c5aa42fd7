package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/paywall/modules/paywall"
	"github.com/dmitrymomot/paywall/pkg/analytics"
	"github.com/dmitrymomot/paywall/pkg/config"
	"github.com/dmitrymomot/paywall/pkg/httpserver"
	"github.com/dmitrymomot/paywall/pkg/logger"
	"github.com/dmitrymomot/paywall/pkg/redis"
	"github.com/dmitrymomot/paywall/pkg/requestid"
	"github.com/dmitrymomot/paywall/pkg/revenuecat"
	svc "github.com/dmitrymomot/paywall/svc/paywall"
)

type serveConfig struct {
	Log       logger.Config
	HTTP      httpserver.Config
	Redis     redis.Config
	Analytics analytics.Config
	Billing   revenuecat.Config
	Paywall   svc.Config
	Screens   paywall.Config
}

func loadServeConfig() (serveConfig, error) {
	var cfg serveConfig
	err := errors.Join(
		config.Load(&cfg.Log),
		config.Load(&cfg.HTTP),
		config.Load(&cfg.Redis),
		config.Load(&cfg.Analytics),
		config.Load(&cfg.Billing),
		config.Load(&cfg.Paywall),
		config.Load(&cfg.Screens),
	)
	return cfg, err
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the paywall HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServeConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg serveConfig) error {
	logOpts, err := logger.FromConfig(cfg.Log)
	if err != nil {
		return err
	}
	log := logger.New(append(logOpts, logger.WithContextExtractors(requestid.LoggerExtractor()))...)
	logger.SetAsDefault(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics, err := analytics.NewMetricsSink(reg, cfg.Analytics.MetricsNamespace)
	if err != nil {
		return err
	}
	sinks := []analytics.Option{
		analytics.WithLogger(log),
		analytics.WithSink(analytics.LogSink(log)),
		analytics.WithSink(metrics),
	}

	var probes []httpserver.Probe
	var shutdownHooks []httpserver.Option
	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		stream, err := analytics.NewStreamSink(client, cfg.Analytics.Stream, cfg.Analytics.StreamMaxLen)
		if err != nil {
			_ = client.Close()
			return err
		}
		sinks = append(sinks, analytics.WithSink(stream))
		probes = append(probes, httpserver.Probe{Name: "redis", Check: redis.Healthcheck(client)})
		shutdownHooks = append(shutdownHooks, httpserver.WithShutdownHook(client.Close))
	}
	tracker := analytics.New(sinks...)

	billing, err := revenuecat.New(cfg.Billing)
	if err != nil {
		return err
	}
	factory, err := paywall.NewControllerFactory(billing, cfg.Paywall, tracker, log)
	if err != nil {
		return err
	}
	service, err := paywall.NewService(cfg.Screens, factory, nil, log)
	if err != nil {
		return err
	}
	if cfg.Screens.UserHeader == "" {
		log.WarnContext(ctx, "app_user_id is read from the query string unverified",
			logger.Component("serve"),
			slog.String("hint", "set PAYWALL_USER_HEADER behind an auth proxy"),
		)
	}
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: cfg.Analytics.MetricsNamespace,
		Name:      "open_screens",
		Help:      "Number of paywall screens currently held in memory",
	}, func() float64 { return float64(service.Screens().Len()) }))

	r := chi.NewRouter()
	r.Use(requestid.Middleware, middleware.RealIP, middleware.Recoverer)
	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(log, 2*time.Second, probes...))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Mount(cfg.Screens.BasePath, service.Handle())
	if cfg.Screens.BasePath != "/" {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, cfg.Screens.BasePath+"/", http.StatusFound)
		})
	}

	log.InfoContext(ctx, "paywall service configured",
		logger.Component("serve"),
		slog.String("billing_url", cfg.Billing.BaseURL),
		slog.String("entitlement", cfg.Paywall.EntitlementID),
		slog.Bool("redis", cfg.Redis.Enabled()),
	)

	opts := append([]httpserver.Option{httpserver.WithLogger(log)}, shutdownHooks...)
	return httpserver.NewFromConfig(cfg.HTTP, opts...).Run(ctx, r)
}

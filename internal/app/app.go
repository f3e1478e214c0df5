// Package app wires the order service together: storage, cache, checkout,
// HTTP transport, health probes, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/feastly/ordercore/internal/api"
	"github.com/feastly/ordercore/internal/checkout"
	"github.com/feastly/ordercore/internal/domain/catalog"
	"github.com/feastly/ordercore/internal/session"
	"github.com/feastly/ordercore/internal/storage/postgres"
	"github.com/feastly/ordercore/internal/storage/rediscache"
	"github.com/feastly/ordercore/pkg/health"
)

// paymentLogObserver surfaces forced payment-method fallbacks in the service
// log, where the front-of-house UI polls them up.
type paymentLogObserver struct {
	lg *zap.Logger
}

func (o paymentLogObserver) PaymentMethodForced(orderID string, method catalog.PaymentMethod) {
	o.lg.Info("Payment method forced to default after voucher removal",
		zap.String("order_id", orderID),
		zap.String("method", string(method)),
	)
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Catalog facts come from Postgres, optionally behind a Redis
	// read-through cache.
	var provider catalog.Provider = postgres.NewCatalogRepository(pool)
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		provider = rediscache.New(provider, rdb, cfg.CacheTTL)
	}

	// Checkout: idempotent commit store plus back-office event queue.
	var notifier checkout.Notifier
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() { _ = client.Close() }()
		notifier = checkout.NewAsynqNotifier(client)
	}
	checkoutSvc := checkout.NewService(postgres.NewCommitStore(pool), notifier)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	if rdb != nil {
		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.SetReady(true)

	apiSrv := api.NewServer(provider, session.NewStore(), checkoutSvc, paymentLogObserver{lg: lg})

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(logRequests(lg))
	r.Use(chimw.Recoverer)
	r.Use(httprate.Limit(cfg.RateLimit.Max, cfg.RateLimit.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP)))

	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Mount("/api", apiSrv.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(r, "ordercore",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/backend"
	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/storefront"
	"github.com/xenking/kart-storefront/internal/handler"
	"github.com/xenking/kart-storefront/internal/session"
	"github.com/xenking/kart-storefront/internal/storage/redis"
	"github.com/xenking/kart-storefront/pkg/health"
	"github.com/xenking/kart-storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("backend", cfg.BackendURL),
	)

	// Backend client. Sessions derive their own copies bound to their token.
	client, err := backend.New(backend.Config{
		BaseURL:        cfg.BackendURL,
		Timeout:        cfg.BackendTimeout,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	}, nil, lg.Named("backend"))
	if err != nil {
		return errors.Wrap(err, "create backend client")
	}

	// Optional product cache.
	var rdb *goredis.Client
	if cfg.Redis.URL != "" {
		rdb, err = redis.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()
		lg.Info("Product cache enabled", zap.Duration("ttl", cfg.Redis.TTL))
	}

	binder := session.BinderFunc(func(tokens auth.TokenSource) session.Backends {
		c := client.WithTokens(tokens)
		if rdb == nil {
			return session.Backends{Cart: c, Catalog: c, Views: c}
		}
		cached := redis.NewCachedCatalog(c, rdb, cfg.Redis.TTL, lg.Named("cache"))
		return session.Backends{
			Cart:    c,
			Catalog: cached,
			Views:   cachedViews{Backend: c, products: cached},
		}
	})
	sessions := session.NewRegistry(binder, session.Config{
		IdleTTL:        cfg.Session.IdleTTL,
		MaxSessions:    cfg.Session.Max,
		AlertTTL:       cfg.Cart.AlertTTL,
		JoinLimit:      cfg.Cart.JoinLimit,
		Logger:         lg.Named("session"),
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	go sessions.Run(ctx, cfg.Session.SweepInterval)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.AddReadinessCheck("backend", 5*time.Second, health.PingCheck("backend", client))
	if rdb != nil {
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck("redis", pingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})))
	}
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.New(sessions, client).Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Cart operations wait on the backend, possibly behind queued mutations.
		WriteTimeout:   cfg.BackendTimeout + 10*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("kart-storefront", m),
			httpmiddleware.LogRequests(),
			httpmiddleware.Gzip(pgzip.DefaultCompression),
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
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// cachedViews serves single product lookups of the views from the cache.
type cachedViews struct {
	storefront.Backend
	products cart.Catalog
}

func (v cachedViews) Product(ctx context.Context, id string) (*cart.Product, error) {
	return v.products.Product(ctx, id)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

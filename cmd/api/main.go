package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/electromart/internal/audit"
	"github.com/noah-isme/electromart/internal/auth"
	"github.com/noah-isme/electromart/internal/cart"
	"github.com/noah-isme/electromart/internal/catalog"
	"github.com/noah-isme/electromart/internal/checkout"
	"github.com/noah-isme/electromart/internal/common"
	"github.com/noah-isme/electromart/internal/config"
	"github.com/noah-isme/electromart/internal/health"
	"github.com/noah-isme/electromart/internal/lock"
	"github.com/noah-isme/electromart/internal/obs"
	"github.com/noah-isme/electromart/internal/policy"
	"github.com/noah-isme/electromart/internal/ratelimit"
	"github.com/noah-isme/electromart/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "electromart-api",
			Endpoint:      cfg.TracingEndpoint,
			SamplingRatio: cfg.TracingSamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var (
		registry    *prometheus.Registry
		httpMetrics *obs.HTTPMetrics
		domain      *obs.DomainMetrics
		breakers    *resilience.Metrics
	)
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, nil, registry)
		domain = obs.NewDomainMetrics(cfg.MetricsNamespace, registry)
		breakers = resilience.NewMetrics(cfg.MetricsNamespace, registry)
	}

	holder, err := policy.LoadFile(cfg.DiscountPolicyPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load discount policy")
	}
	logger.Info().Str("path", cfg.DiscountPolicyPath).Int64("version", holder.Version()).Msg("discount policy loaded")

	if cfg.CatalogMigrationsAuto {
		if err := catalog.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate catalog")
		}
	}

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := catalog.NewPool(startCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(startCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if tracingEnabled {
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(startCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	catalogStore := catalog.GuardedStore{
		Store: catalog.PGStore{Pool: pool},
		Breaker: resilience.NewBreaker(resilience.Settings{
			Target:       "catalog_db",
			MinRequests:  cfg.CatalogBreakerMinRequests,
			FailureRatio: cfg.CatalogBreakerFailureRatio,
			OpenFor:      cfg.CatalogBreakerOpenFor,
			Metrics:      breakers,
			Logger:       logger,
		}),
	}
	catalogSvc, err := catalog.NewService(catalogStore, catalog.NewCache(redisClient, cfg.CatalogCacheTTL), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}

	authSvc, err := auth.NewService(auth.Config{
		Secret:       cfg.JWTSecret,
		PasswordHash: cfg.AdminPasswordHash,
		TokenTTL:     cfg.AdminTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	if !authSvc.Enabled() {
		logger.Warn().Msg("ADMIN_PASSWORD_HASH not set, admin endpoints disabled")
	}

	cartSvc := &cart.Service{
		Store:   cart.Store{R: redisClient, TTL: cfg.CartTTL},
		Locker:  lock.Locker{R: redisClient, Prefix: "lock:cart:"},
		Catalog: catalogSvc,
		Policy:  holder,
		Metrics: domain,
		Logger:  logger,
	}
	checkoutSvc, err := checkout.NewService(cartSvc, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise checkout service")
	}

	limiterStore, err := ratelimit.NewStore(redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	auditStore := audit.RedisStore{R: redisClient, MaxEntries: cfg.AuditMaxEntries}
	auditSvc := &audit.Service{Store: auditStore, Enabled: cfg.AuditEnabled}

	srvDeps := &server{
		cfg:          cfg,
		logger:       logger,
		registry:     registry,
		httpMetrics:  httpMetrics,
		tracing:      tracingEnabled,
		limiterStore: limiterStore,
		idem:         common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL},
		attempts:     ratelimit.Limiter{Client: redisClient, Prefix: "attempts:"},
		health: health.Handler{
			Checker:      health.Deps{DB: pool, Redis: redisClient},
			Policy:       holder.Version,
			DBTimeout:    cfg.HealthDBTimeout,
			RedisTimeout: cfg.HealthRedisTimeout,
		},
		catalog:  &catalog.Handler{Service: catalogSvc, Policy: holder, Metrics: domain, Logger: logger},
		policy:   &policy.Handler{Holder: holder, Metrics: domain, Logger: logger},
		carts:    &cart.Handler{Svc: cartSvc, Logger: logger},
		checkout: &checkout.Handler{Svc: checkoutSvc, Logger: logger},
		login:    &auth.Handler{Service: authSvc, Logger: logger},
		admin:    auth.Middleware{Service: authSvc},
		audit: audit.HTTPRecorder{Service: auditSvc, OnError: func(err error) {
			logger.Warn().Err(err).Msg("record audit entry")
		}},
		auditLog: audit.Handler{Store: auditStore},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srvDeps.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
		return
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Dur("grace", cfg.ShutdownGracePeriod).Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

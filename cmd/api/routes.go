package main

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/electromart/internal/audit"
	"github.com/noah-isme/electromart/internal/auth"
	"github.com/noah-isme/electromart/internal/cart"
	"github.com/noah-isme/electromart/internal/catalog"
	"github.com/noah-isme/electromart/internal/checkout"
	"github.com/noah-isme/electromart/internal/common"
	"github.com/noah-isme/electromart/internal/config"
	"github.com/noah-isme/electromart/internal/health"
	"github.com/noah-isme/electromart/internal/obs"
	"github.com/noah-isme/electromart/internal/policy"
	"github.com/noah-isme/electromart/internal/ratelimit"
	"github.com/noah-isme/electromart/internal/security"
)

// server bundles everything the router needs.
type server struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry

	httpMetrics  *obs.HTTPMetrics
	tracing      bool
	limiterStore limiter.Store
	idem         common.Idem
	attempts     ratelimit.Limiter

	health   health.Handler
	catalog  *catalog.Handler
	policy   *policy.Handler
	carts    *cart.Handler
	checkout *checkout.Handler
	login    *auth.Handler
	admin    auth.Middleware
	audit    audit.HTTPRecorder
	auditLog audit.Handler
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(common.RealIP(s.cfg.TrustedProxies))
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if s.tracing {
		r.Use(obs.TracingMiddleware)
	}
	if s.httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: s.httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: s.logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(s.cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", common.IdempotencyHeader},
		ExposedHeaders: []string{"X-Total-Count", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{
		Enable:                s.cfg.SecurityHeaders,
		EnableHSTS:            s.cfg.HSTSEnabled,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		NoStorePrefixes:       []string{"/api/v1/admin", "/api/v1/carts", "/api/v1/checkout"},
	}.Middleware)
	r.Use(security.BodyLimit{Max: s.cfg.BodyLimitBytes}.Middleware)
	r.Use(ratelimit.Global(s.limiterStore, s.cfg.RateLimitPerMinute))

	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	if s.cfg.PprofEnabled {
		r.Mount("/debug", protectPprof(middleware.Profiler(), s.cfg.PprofBasicUser, s.cfg.PprofBasicPass))
	}
	r.Get("/health/live", s.health.Live)
	r.Get("/health/ready", s.health.Ready)

	onLimiterError := func(err error) {
		s.logger.Warn().Err(err).Msg("attempt limiter unavailable")
	}
	couponAttempts := ratelimit.Handler{
		Limiter: s.attempts,
		Config: ratelimit.Config{
			Key:    ratelimit.ClientKey,
			Window: s.cfg.CouponAttemptsWindow,
			Max:    s.cfg.CouponAttemptsMax,
		},
		OnError: onLimiterError,
	}
	cartCouponAttempts := couponAttempts
	cartCouponAttempts.Config.Key = ratelimit.CartClientKey(cart.IDParam)
	loginAttempts := couponAttempts
	loginAttempts.Config.Key = func(r *http.Request) string { return "login:" + ratelimit.ClientKey(r) }
	loginAttempts.Config.Message = "too many login attempts, try again later"

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/categories", s.catalog.Categories)
		v.Get("/products", s.catalog.Products)
		v.Get("/products/{slug}", s.catalog.ProductDetail)

		v.With(couponAttempts.Middleware).Post("/coupons/validate", s.policy.ValidateCoupon)

		v.Route("/carts", func(c chi.Router) {
			c.Get("/{id}", s.carts.Get)
			c.Group(func(g chi.Router) {
				g.Use(s.idem.Middleware)
				g.Post("/", s.carts.Create)
				g.Post("/{id}/items", s.carts.AddItem)
				g.Delete("/{id}/items", s.carts.Clear)
				g.Put("/{id}/items/{sku}", s.carts.UpdateItem)
				g.Delete("/{id}/items/{sku}", s.carts.RemoveItem)
				g.With(cartCouponAttempts.Middleware).Post("/{id}/coupon", s.carts.ApplyCoupon)
				g.Delete("/{id}/coupon", s.carts.RemoveCoupon)
			})
		})

		v.With(s.idem.Middleware).Post("/checkout", s.checkout.Checkout)

		v.Route("/admin", func(admin chi.Router) {
			admin.With(loginAttempts.Middleware, s.audit.Middleware(audit.HTTPConfig{
				Action:       "admin.login",
				MetadataFunc: loginOutcome,
			})).Post("/login", s.login.Login)
			admin.Group(func(g chi.Router) {
				g.Use(s.admin.RequireAdmin)
				g.Get("/discounts", s.policy.Get)
				g.With(s.audit.Middleware(audit.HTTPConfig{Action: "policy.replace"})).Put("/discounts", s.policy.Replace)
				g.Get("/audit", s.auditLog.List)
			})
		})
	})
	return r
}

func loginOutcome(_ *http.Request, status int) map[string]any {
	return map[string]any{"success": status == http.StatusOK}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/electromart/internal/common"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	TrustedProxies     []netip.Prefix

	DiscountPolicyPath string
	CurrencyCode       string

	CatalogCacheTTL time.Duration
	CartTTL         time.Duration
	IdempotencyTTL  time.Duration

	JWTSecret         string
	AdminPasswordHash string
	AdminTokenTTL     time.Duration

	RateLimitPerMinute   int64
	CouponAttemptsMax    int
	CouponAttemptsWindow time.Duration
	BodyLimitBytes       int64

	LogFormat             string
	LogLevel              string
	MetricsNamespace      string
	MetricsEnabled        bool
	TracingEnabled        bool
	TracingEndpoint       string
	TracingSamplingRatio  float64
	SecurityHeaders       bool
	HSTSEnabled           bool
	HealthDBTimeout       time.Duration
	HealthRedisTimeout    time.Duration
	ShutdownGracePeriod   time.Duration
	CatalogMigrationsAuto bool

	PprofEnabled   bool
	PprofBasicUser string
	PprofBasicPass string

	AuditEnabled    bool
	AuditMaxEntries int64

	CatalogBreakerMinRequests  int
	CatalogBreakerFailureRatio float64
	CatalogBreakerOpenFor      time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		DiscountPolicyPath: strings.TrimSpace(k.String("DISCOUNT_POLICY_PATH")),
		CurrencyCode:       valueOrDefault(k.String("CURRENCY_CODE"), "BDT"),

		CatalogCacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CartTTL:         parseDuration(k.String("CART_TTL"), "168h"),
		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		JWTSecret:         k.String("JWT_SECRET"),
		AdminPasswordHash: strings.TrimSpace(k.String("ADMIN_PASSWORD_HASH")),
		AdminTokenTTL:     parseDuration(k.String("ADMIN_TOKEN_TTL"), "1h"),

		RateLimitPerMinute:   parseInt64(k.String("RATE_LIMIT_PER_MINUTE"), 300),
		CouponAttemptsMax:    int(parseInt64(k.String("COUPON_ATTEMPTS_MAX"), 10)),
		CouponAttemptsWindow: parseDuration(k.String("COUPON_ATTEMPTS_WINDOW"), "1m"),
		BodyLimitBytes:       parseInt64(k.String("BODY_LIMIT_BYTES"), 1<<20),

		LogFormat:             valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:              valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:      valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "electromart"),
		MetricsEnabled:        parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
		TracingEnabled:        parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
		TracingEndpoint:       strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSamplingRatio:  parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		SecurityHeaders:       parseBoolDefault(k.String("SECURITY_HEADERS_ENABLED"), true),
		HSTSEnabled:           parseBool(k.String("SECURITY_HSTS_ENABLED")),
		HealthDBTimeout:       parseDuration(k.String("HEALTH_READY_DB_TIMEOUT"), "500ms"),
		HealthRedisTimeout:    parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
		ShutdownGracePeriod:   parseDuration(k.String("SHUTDOWN_GRACE_PERIOD"), "10s"),
		CatalogMigrationsAuto: parseBool(k.String("CATALOG_MIGRATIONS_AUTO")),

		PprofEnabled:   parseBool(k.String("OBS_ENABLE_PPROF")),
		PprofBasicUser: strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
		PprofBasicPass: strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),

		AuditEnabled:    parseBoolDefault(k.String("AUDIT_ENABLED"), true),
		AuditMaxEntries: parseInt64(k.String("AUDIT_MAX_ENTRIES"), 1000),

		CatalogBreakerMinRequests:  int(parseInt64(k.String("CIRCUIT_CATALOG_MIN_REQUESTS"), 10)),
		CatalogBreakerFailureRatio: parseFloat(k.String("CIRCUIT_CATALOG_FAILURE_RATIO"), 0.5),
		CatalogBreakerOpenFor:      parseDuration(k.String("CIRCUIT_CATALOG_OPEN_FOR"), "15s"),
	}

	proxies, err := common.ParseTrustedProxies(splitAndTrim(k.String("TRUSTED_PROXIES")))
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	cfg.TrustedProxies = proxies

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.DiscountPolicyPath == "" {
		return nil, errors.New("DISCOUNT_POLICY_PATH is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// AdminEnabled reports whether an admin credential has been configured.
func (c *Config) AdminEnabled() bool {
	return c.AdminPasswordHash != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt64(value string, fallback int64) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}

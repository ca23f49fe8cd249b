package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	MongoURL           string
	MongoDatabase      string
	CartStore          string
	JWTSecret          string
	CORSAllowedOrigins []string
	AccessTokenTTL     time.Duration
	CookieDomain       string
	CookieSecure       bool
	CookieSameSite     http.SameSite
	UserCookieName     string
	AdminCookieName    string
	CartCookieName     string
	CartCookieTTL      time.Duration

	CartMaxLineQty       int
	LookupConcurrency    int
	ProductCacheTTL      time.Duration
	CatalogDefaultLimit  int
	CatalogMaxLimit      int
	CheckoutLockTTL      time.Duration
	LockRetryBackoff     time.Duration
	IdempotencyTTL       time.Duration
	RateLimitLoginMax    int
	RateLimitLoginWindow time.Duration
	RateLimitCart        string
	BodyLimitBytes       int64
	CSRFEnabled          bool
	SecurityHeaders      bool
	AuditEnabled         bool
	AuditSamplingRate    float64
	QueueConcurrency     int
	NotifyEmailFrom      string
	NotifyEmailEnabled   bool

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	TracingExporter  string
	TracingEndpoint  string
	TracingSampling  float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string
}

// Cart store backends selectable with CART_STORE.
const (
	CartStorePostgres = "postgres"
	CartStoreMongo    = "mongo"
)

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
		MongoURL:           strings.TrimSpace(k.String("MONGO_URL")),
		MongoDatabase:      valueOrDefault(k.String("MONGO_DATABASE"), "toko"),
		CartStore:          strings.ToLower(valueOrDefault(k.String("CART_STORE"), CartStorePostgres)),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		AccessTokenTTL:     parseDuration(k.String("ACCESS_TOKEN_TTL"), "24h"),
		CookieDomain:       strings.TrimSpace(k.String("COOKIE_DOMAIN")),
		CookieSecure:       parseBool(k.String("COOKIE_SECURE")),
		CookieSameSite:     parseSameSite(k.String("COOKIE_SAMESITE")),
		UserCookieName:     valueOrDefault(k.String("USER_COOKIE_NAME"), "tokenUser"),
		AdminCookieName:    valueOrDefault(k.String("ADMIN_COOKIE_NAME"), "token"),
		CartCookieName:     valueOrDefault(k.String("CART_COOKIE_NAME"), "cartId"),
		CartCookieTTL:      parseDuration(k.String("CART_COOKIE_TTL"), "8760h"),

		CartMaxLineQty:       parseInt(k.String("CART_MAX_LINE_QTY"), 999),
		LookupConcurrency:    parseInt(k.String("PRICING_LOOKUP_CONCURRENCY"), 8),
		ProductCacheTTL:      parseDuration(k.String("PRODUCT_CACHE_TTL"), "5m"),
		CatalogDefaultLimit:  parseInt(k.String("CATALOG_DEFAULT_LIMIT"), 12),
		CatalogMaxLimit:      parseInt(k.String("CATALOG_MAX_LIMIT"), 100),
		CheckoutLockTTL:      parseDuration(k.String("CHECKOUT_LOCK_TTL"), "15s"),
		LockRetryBackoff:     parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		IdempotencyTTL:       parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitLoginMax:    parseInt(k.String("RATE_LIMIT_LOGIN_MAX"), 10),
		RateLimitLoginWindow: parseDuration(k.String("RATE_LIMIT_LOGIN_WINDOW"), "1m"),
		RateLimitCart:        valueOrDefault(k.String("RATE_LIMIT_CART"), "120-M"),
		BodyLimitBytes:       int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		CSRFEnabled:          parseBool(k.String("CSRF_ENABLED")),
		SecurityHeaders:      parseBoolDefault(k.String("SECURITY_HEADERS_ENABLED"), true),
		AuditEnabled:         parseBoolDefault(k.String("AUDIT_ENABLED"), true),
		AuditSamplingRate:    parseFloat(k.String("AUDIT_SAMPLING_RATE"), 1),
		QueueConcurrency:     parseInt(k.String("QUEUE_CONCURRENCY"), 10),
		NotifyEmailFrom:      valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "no-reply@toko.local"),
		NotifyEmailEnabled:   parseBoolDefault(k.String("NOTIFY_EMAIL_ENABLED"), true),

		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko"),
		TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "none"),
		TracingEndpoint:  k.String("OBS_TRACING_ENDPOINT"),
		TracingSampling:  parseFloat(k.String("OBS_TRACING_SAMPLER_RATIO"), 0.1),
		PprofEnabled:     parseBool(k.String("PPROF_ENABLED")),
		PprofUser:        k.String("PPROF_USER"),
		PprofPass:        k.String("PPROF_PASS"),
	}

	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	switch cfg.CartStore {
	case CartStorePostgres:
	case CartStoreMongo:
		if cfg.MongoURL == "" {
			return nil, errors.New("MONGO_URL is required when CART_STORE=mongo")
		}
	default:
		return nil, fmt.Errorf("CART_STORE must be %q or %q, got %q", CartStorePostgres, CartStoreMongo, cfg.CartStore)
	}
	if cfg.CartMaxLineQty < 1 {
		return nil, errors.New("CART_MAX_LINE_QTY must be positive")
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
		return value
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

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return parseBool(value)
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
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

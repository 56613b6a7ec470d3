package config

import (
	"errors"
	"fmt"
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
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string

	AccessTokenTTL time.Duration

	CurrencyCode          string
	PricingTaxRateBPS     int
	ShippingFlatFee       int64
	ShippingFreeThreshold int64

	PaymentProvider   string
	PaymentFailureBPS int
	PaymentMinDelay   time.Duration
	PaymentMaxDelay   time.Duration

	IdempotencyTTL time.Duration
	CartTTL        time.Duration

	RateLimit string

	QueueRedisPrefix      string
	ReceiptWebhookURL     string
	WebhookRequestTimeout time.Duration
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
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		AccessTokenTTL: parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),

		CurrencyCode:          valueOrDefault(k.String("CURRENCY_CODE"), "JPY"),
		PricingTaxRateBPS:     parseInt(k.String("PRICING_TAX_RATE_BPS"), 1000),
		ShippingFlatFee:       parseInt64(k.String("SHIPPING_FLAT_FEE"), 500),
		ShippingFreeThreshold: parseInt64(k.String("SHIPPING_FREE_THRESHOLD"), 0),

		PaymentProvider:   valueOrDefault(k.String("PAYMENT_PROVIDER"), "square-bridge"),
		PaymentFailureBPS: parseInt(k.String("PAYMENT_FAILURE_BPS"), 500),
		PaymentMinDelay:   parseDuration(k.String("PAYMENT_MIN_DELAY"), "500ms"),
		PaymentMaxDelay:   parseDuration(k.String("PAYMENT_MAX_DELAY"), "1s"),

		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "15m"),
		CartTTL:        parseDuration(k.String("CART_TTL"), "168h"),

		RateLimit: valueOrDefault(k.String("RATE_LIMIT"), "120-M"),

		QueueRedisPrefix:      valueOrDefault(k.String("QUEUE_REDIS_PREFIX"), "storefront:queue"),
		ReceiptWebhookURL:     k.String("RECEIPT_WEBHOOK_URL"),
		WebhookRequestTimeout: parseDuration(k.String("WEBHOOK_REQUEST_TIMEOUT"), "5s"),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.PaymentFailureBPS < 0 || cfg.PaymentFailureBPS > 10000 {
		return nil, fmt.Errorf("PAYMENT_FAILURE_BPS out of range: %d", cfg.PaymentFailureBPS)
	}
	if cfg.PaymentMaxDelay < cfg.PaymentMinDelay {
		cfg.PaymentMaxDelay = cfg.PaymentMinDelay
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

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return n
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return n
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

package config

import (
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"REDIS_URL":  "redis://localhost:6379/0",
		"JWT_SECRET": "test-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %q, want 8080", cfg.Port)
	}
	if cfg.CurrencyCode != "JPY" {
		t.Fatalf("currency = %q, want JPY", cfg.CurrencyCode)
	}
	if cfg.PricingTaxRateBPS != 1000 {
		t.Fatalf("tax rate = %d, want 1000", cfg.PricingTaxRateBPS)
	}
	if cfg.ShippingFlatFee != 500 {
		t.Fatalf("shipping fee = %d, want 500", cfg.ShippingFlatFee)
	}
	if cfg.PaymentProvider != "square-bridge" {
		t.Fatalf("provider = %q, want square-bridge", cfg.PaymentProvider)
	}
	if cfg.PaymentFailureBPS != 500 {
		t.Fatalf("failure bps = %d, want 500", cfg.PaymentFailureBPS)
	}
	if cfg.PaymentMinDelay != 500*time.Millisecond || cfg.PaymentMaxDelay != time.Second {
		t.Fatalf("delays = %v/%v, want 500ms/1s", cfg.PaymentMinDelay, cfg.PaymentMaxDelay)
	}
	if cfg.IdempotencyTTL != 15*time.Minute {
		t.Fatalf("idempotency ttl = %v, want 15m", cfg.IdempotencyTTL)
	}
	if cfg.CartTTL != 168*time.Hour {
		t.Fatalf("cart ttl = %v, want 168h", cfg.CartTTL)
	}
	if cfg.RateLimit != "120-M" {
		t.Fatalf("rate limit = %q, want 120-M", cfg.RateLimit)
	}
}

func TestLoadRequiresRedisAndSecret(t *testing.T) {
	env := baseEnv()
	env["REDIS_URL"] = ""
	if _, err := LoadForTests(env); err == nil {
		t.Fatal("expected error when REDIS_URL is missing")
	}

	env = baseEnv()
	env["JWT_SECRET"] = ""
	if _, err := LoadForTests(env); err == nil {
		t.Fatal("expected error when JWT_SECRET is missing")
	}
}

func TestLoadOverridesAndValidation(t *testing.T) {
	env := baseEnv()
	env["PAYMENT_FAILURE_BPS"] = "10001"
	if _, err := LoadForTests(env); err == nil {
		t.Fatal("expected error for out-of-range failure bps")
	}

	env = baseEnv()
	env["PAYMENT_MIN_DELAY"] = "2s"
	env["PAYMENT_MAX_DELAY"] = "1s"
	cfg, err := LoadForTests(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PaymentMaxDelay != cfg.PaymentMinDelay {
		t.Fatalf("max delay should be raised to min, got %v < %v", cfg.PaymentMaxDelay, cfg.PaymentMinDelay)
	}

	env = baseEnv()
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, https://b.example"
	cfg, err = LoadForTests(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestHTTPAddr(t *testing.T) {
	cfg := &Config{Port: "9090"}
	if got := cfg.HTTPAddr(); got != ":9090" {
		t.Fatalf("addr = %q, want :9090", got)
	}
	cfg.Port = ":7070"
	if got := cfg.HTTPAddr(); got != ":7070" {
		t.Fatalf("addr = %q, want :7070", got)
	}
	cfg.Port = ""
	if got := cfg.HTTPAddr(); got != ":8080" {
		t.Fatalf("addr = %q, want :8080", got)
	}
}

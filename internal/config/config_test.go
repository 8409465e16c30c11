package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "orders.status_changed", cfg.OrderStatusTopic)
	assert.Equal(t, 30*time.Second, cfg.CheckoutLockTTLDuration())
	assert.Equal(t, 5, cfg.CheckoutRateLimit().Burst)

	policy := cfg.PricingPolicy()
	assert.Equal(t, "0.18", policy.TaxRate.String())
	assert.Equal(t, "1000", policy.FreeShippingThreshold.String())
	assert.Equal(t, "50", policy.ShippingFee.String())
}

func TestLoad_PricingOverrides(t *testing.T) {
	t.Setenv("TAX_RATE", "0.05")
	t.Setenv("FREE_SHIPPING_THRESHOLD", "499.99")
	t.Setenv("SHIPPING_FEE", "40")

	cfg, err := Load()
	require.NoError(t, err)

	policy := cfg.PricingPolicy()
	assert.Equal(t, "0.05", policy.TaxRate.String())
	assert.Equal(t, "499.99", policy.FreeShippingThreshold.String())
	assert.Equal(t, "40", policy.ShippingFee.String())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"port", "STOREFRONT_HTTP_PORT", "0", "invalid HTTP port"},
		{"sample rate", "OTEL_SAMPLE_RATE", "2.0", "OTEL_SAMPLE_RATE must be between 0.0 and 1.0"},
		{"tax rate", "TAX_RATE", "1.5", "tax rate must be between 0 and 1"},
		{"negative fee", "SHIPPING_FEE", "-1", "shipping fee must not be negative"},
		{"relative url", "ORDER_API_URL", "/orders", "ORDER_API_URL must be an absolute URL"},
		{"lock shorter than submit", "CHECKOUT_LOCK_TTL_SECONDS", "10", "must exceed ORDER_SUBMIT_TIMEOUT_SECONDS"},
		{"non decimal", "TAX_RATE", "lots", "parse config"},
		{"zero burst", "CHECKOUT_RATE_LIMIT_BURST", "0", "CHECKOUT_RATE_LIMIT_BURST at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_DerivedClientConfigs(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://u:p@db:5432/store")
	t.Setenv("CB_FAILURE_RATIO", "0.25")
	t.Setenv("REDIS_ADDR", "redis.prod:6380")

	cfg, err := Load()
	require.NoError(t, err)

	pg := cfg.Postgres()
	assert.Equal(t, "postgres://u:p@db:5432/store", pg.DSN())

	assert.Equal(t, "redis.prod:6380", cfg.Redis().Addr)

	cb := cfg.CircuitBreaker("order-api")
	assert.Equal(t, "order-api", cb.Name)
	assert.Equal(t, 0.25, cb.FailureRatio)
	assert.Equal(t, 30*time.Second, cb.Timeout)

	tc := cfg.Tracing()
	assert.Equal(t, ServiceName, tc.ServiceName)
	assert.False(t, tc.Enabled)
}

func TestConfig_RequestTimeout(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 60, cfg.ProductCacheSeconds)

	t.Setenv("ORDER_SUBMIT_TIMEOUT_SECONDS", "40")
	t.Setenv("CHECKOUT_LOCK_TTL_SECONDS", "60")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout())
}

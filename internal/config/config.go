package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	pkgconfig "github.com/Arya602/craft-heart-connect/pkg/config"
	"github.com/Arya602/craft-heart-connect/pkg/database"
	"github.com/Arya602/craft-heart-connect/pkg/httpclient"
	"github.com/Arya602/craft-heart-connect/pkg/middleware"
	"github.com/Arya602/craft-heart-connect/pkg/tracing"
)

// ServiceName tags logs, metrics and traces.
const ServiceName = "storefront"

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout int `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"15"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Session carts and wishlists expire after this many hours (default 7 days).
	SessionTTLHours int `env:"SESSION_TTL_HOURS" envDefault:"168"`

	// PostgreSQL
	PostgresURL      string `env:"POSTGRES_URL" envDefault:""`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"storefront"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	SlowQueryMillis  int    `env:"POSTGRES_SLOW_QUERY_MS" envDefault:"200"`

	// Kafka
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	OrderStatusTopic string   `env:"ORDER_STATUS_TOPIC" envDefault:"orders.status_changed"`
	ConsumerGroup    string   `env:"CONSUMER_GROUP" envDefault:"storefront-order-sync"`

	// Downstream APIs
	OrderAPIURL          string  `env:"ORDER_API_URL" envDefault:"http://localhost:5000"`
	ProductAPIURL        string  `env:"PRODUCT_API_URL" envDefault:"http://localhost:5000"`
	OrderSubmitTimeout   int     `env:"ORDER_SUBMIT_TIMEOUT_SECONDS" envDefault:"15"`
	HTTPClientRetries    int     `env:"HTTP_CLIENT_MAX_RETRIES" envDefault:"2"`
	CBFailureRatio       float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests        uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`
	CBOpenTimeoutSeconds int     `env:"CB_OPEN_TIMEOUT_SECONDS" envDefault:"30"`

	// Checkout
	CheckoutLockTTL        int     `env:"CHECKOUT_LOCK_TTL_SECONDS" envDefault:"30"`
	CheckoutRateLimitRPS   float64 `env:"CHECKOUT_RATE_LIMIT_RPS" envDefault:"0.5"`
	CheckoutRateLimitBurst int     `env:"CHECKOUT_RATE_LIMIT_BURST" envDefault:"5"`

	// Pricing policy
	TaxRate               decimal.Decimal `env:"TAX_RATE" envDefault:"0.18"`
	FreeShippingThreshold decimal.Decimal `env:"FREE_SHIPPING_THRESHOLD" envDefault:"1000"`
	ShippingFee           decimal.Decimal `env:"SHIPPING_FEE" envDefault:"50"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Public product listings may be cached by browsers and CDNs for this long.
	ProductCacheSeconds int `env:"PRODUCT_CACHE_SECONDS" envDefault:"60"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof is only reachable from these CIDRs.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required"))
	}
	if c.SessionTTLHours < 1 {
		errs = append(errs, errors.New("SESSION_TTL_HOURS must be at least 1"))
	}
	if c.CheckoutLockTTL < 1 {
		errs = append(errs, errors.New("CHECKOUT_LOCK_TTL_SECONDS must be at least 1"))
	}
	if c.OrderSubmitTimeout < 1 {
		errs = append(errs, errors.New("ORDER_SUBMIT_TIMEOUT_SECONDS must be at least 1"))
	}
	if c.CheckoutLockTTL <= c.OrderSubmitTimeout {
		errs = append(errs, errors.New("CHECKOUT_LOCK_TTL_SECONDS must exceed ORDER_SUBMIT_TIMEOUT_SECONDS"))
	}
	if c.CheckoutRateLimitRPS <= 0 || c.CheckoutRateLimitBurst < 1 {
		errs = append(errs, errors.New("CHECKOUT_RATE_LIMIT_RPS must be positive and CHECKOUT_RATE_LIMIT_BURST at least 1"))
	}
	if c.ProductCacheSeconds < 0 {
		errs = append(errs, errors.New("PRODUCT_CACHE_SECONDS must not be negative"))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		errs = append(errs, errors.New("OTEL_SAMPLE_RATE must be between 0.0 and 1.0"))
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1 {
		errs = append(errs, errors.New("CB_FAILURE_RATIO must be in (0, 1]"))
	}
	for name, raw := range map[string]string{"ORDER_API_URL": c.OrderAPIURL, "PRODUCT_API_URL": c.ProductAPIURL} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL", name))
		}
	}
	if err := c.PricingPolicy().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SessionTTL is how long an idle cart or wishlist survives.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// CheckoutLockTTLDuration bounds how long a session's in-flight checkout flag lives.
func (c *Config) CheckoutLockTTLDuration() time.Duration {
	return time.Duration(c.CheckoutLockTTL) * time.Second
}

// OrderSubmitTimeoutDuration is the deadline for one order submission.
func (c *Config) OrderSubmitTimeoutDuration() time.Duration {
	return time.Duration(c.OrderSubmitTimeout) * time.Second
}

// RequestTimeout bounds one HTTP request, leaving room for a full order
// submission.
func (c *Config) RequestTimeout() time.Duration {
	return max(30*time.Second, c.OrderSubmitTimeoutDuration()+5*time.Second)
}

// PricingPolicy builds the checkout pricing policy.
func (c *Config) PricingPolicy() domain.Policy {
	return domain.Policy{
		TaxRate:               c.TaxRate,
		FreeShippingThreshold: c.FreeShippingThreshold,
		ShippingFee:           c.ShippingFee,
	}
}

// Postgres builds the connection pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.URL = c.PostgresURL
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPassword
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSLMode
	pg.MaxConns = c.PostgresMaxConns
	return pg
}

// Redis builds the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Addr = c.RedisAddr
	rc.Password = c.RedisPass
	rc.DB = c.RedisDB
	return rc
}

// HTTPClient builds the retrying client configuration for downstream APIs.
func (c *Config) HTTPClient() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.MaxRetries = c.HTTPClientRetries
	return hc
}

// CircuitBreaker builds the breaker configuration for the named downstream.
func (c *Config) CircuitBreaker(name string) httpclient.CircuitBreakerConfig {
	cb := httpclient.DefaultCircuitBreakerConfig(name)
	cb.FailureRatio = c.CBFailureRatio
	cb.MinRequests = c.CBMinRequests
	cb.Timeout = time.Duration(c.CBOpenTimeoutSeconds) * time.Second
	return cb
}

// Tracing builds the OpenTelemetry configuration.
func (c *Config) Tracing() tracing.Config {
	tc := tracing.DefaultConfig(ServiceName)
	tc.Environment = c.Environment
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	tc.Enabled = c.OTELEnabled
	return tc
}

// CheckoutRateLimit builds the per-session limit on order placement.
func (c *Config) CheckoutRateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		RPS:     c.CheckoutRateLimitRPS,
		Burst:   c.CheckoutRateLimitBurst,
		IdleTTL: 10 * time.Minute,
	}
}

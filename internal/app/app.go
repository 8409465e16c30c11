package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Arya602/craft-heart-connect/internal/config"
	"github.com/Arya602/craft-heart-connect/internal/event"
	handler "github.com/Arya602/craft-heart-connect/internal/handler/http"
	"github.com/Arya602/craft-heart-connect/internal/orderapi"
	"github.com/Arya602/craft-heart-connect/internal/repository/postgres"
	redisrepo "github.com/Arya602/craft-heart-connect/internal/repository/redis"
	"github.com/Arya602/craft-heart-connect/internal/service"
	"github.com/Arya602/craft-heart-connect/migrations"
	"github.com/Arya602/craft-heart-connect/pkg/database"
	"github.com/Arya602/craft-heart-connect/pkg/health"
	"github.com/Arya602/craft-heart-connect/pkg/httpclient"
	pkgkafka "github.com/Arya602/craft-heart-connect/pkg/kafka"
	"github.com/Arya602/craft-heart-connect/pkg/middleware"
	"github.com/Arya602/craft-heart-connect/pkg/tracing"
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	orderStatus    *pkgkafka.Consumer
	httpServer     *http.Server
	limiter        *middleware.RateLimiter
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Redis holds carts, wishlists, checkout flags and consumed event ids.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)

	// PostgreSQL holds order receipts.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, config.ServiceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryMillis > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryMillis)*time.Millisecond, logger)
	}

	// Initialize Kafka producer and dead-letter producer.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Repositories.
	sessionTTL := cfg.SessionTTL()
	cartRepo := redisrepo.NewCartRepository(rdb, sessionTTL)
	wishlistRepo := redisrepo.NewWishlistRepository(rdb, sessionTTL)
	guard := redisrepo.NewCheckoutGuard(rdb)
	eventStore := redisrepo.NewEventStore(rdb, redisrepo.DefaultEventRetention)
	receiptRepo := postgres.NewReceiptRepository(pool)

	// Downstream APIs, each behind its own breaker so a failing catalog does
	// not block checkout.
	orders := orderapi.New(newBreaker(cfg, "order-api", logger), cfg.OrderAPIURL, cfg.ProductAPIURL, logger)
	products := orderapi.New(newBreaker(cfg, "product-api", logger), cfg.OrderAPIURL, cfg.ProductAPIURL, logger)

	// Services.
	eventProducer := event.NewProducer(producer, logger)
	catalogService := service.NewCatalogService(products, logger)
	cartService := service.NewCartService(cartRepo, eventProducer, logger, sessionTTL).WithCatalog(catalogService)
	svcs := handler.Services{
		Cart:     cartService,
		Wishlist: service.NewWishlistService(wishlistRepo, eventProducer, logger),
		Checkout: service.NewCheckoutService(cartService, guard, receiptRepo, orders, eventProducer, logger, service.CheckoutConfig{
			Policy:        cfg.PricingPolicy(),
			SubmitTimeout: cfg.OrderSubmitTimeoutDuration(),
			LockTTL:       cfg.CheckoutLockTTLDuration(),
		}),
		Catalog: catalogService,
	}

	// Order status events keep receipts current.
	orderSync := service.NewOrderSyncService(receiptRepo, logger)
	orderStatus := event.NewOrderStatusConsumer(event.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.OrderStatusTopic,
		GroupID: cfg.ConsumerGroup,
	}, event.NewConsumerHandler(orderSync, logger), eventStore, dlq, logger)

	// Health checks. Carts live in Redis, so only Redis gates readiness.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.Environment = cfg.Environment
	if len(cfg.CORSAllowedOrigins) > 0 {
		corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	}
	requestTimeout := cfg.RequestTimeout()
	limiter := middleware.NewRateLimiter(cfg.CheckoutRateLimit(), logger)
	router := handler.NewRouter(svcs, healthHandler, logger, handler.RouterConfig{
		ServiceName:         config.ServiceName,
		CORS:                corsCfg,
		PprofCIDRs:          cfg.PprofAllowedCIDRs,
		ProductCacheSeconds: cfg.ProductCacheSeconds,
		RequestTimeout:      requestTimeout,
		CheckoutLimiter:     limiter,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		pool:           pool,
		producer:       producer,
		dlq:            dlq,
		orderStatus:    orderStatus,
		httpServer:     httpServer,
		limiter:        limiter,
		tracerShutdown: tracerShutdown,
	}, nil
}

func newBreaker(cfg *config.Config, name string, logger *slog.Logger) *httpclient.CircuitBreakerClient {
	cbCfg := cfg.CircuitBreaker(name)
	logger.Info("circuit breaker initialized",
		slog.String("name", cbCfg.Name),
		slog.Float64("failure_ratio", cbCfg.FailureRatio),
		slog.Uint64("min_requests", uint64(cbCfg.MinRequests)),
		slog.Duration("open_timeout", cbCfg.Timeout),
	)
	return httpclient.NewCircuitBreakerClient(httpclient.New(cfg.HTTPClient()), cbCfg, logger).
		WithFallback(orderapi.CircuitOpenFallback)
}

// Run starts the HTTP server and the order status consumer, then blocks until
// the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := a.orderStatus.Start(ctx); err != nil {
			errCh <- fmt.Errorf("order status consumer: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush spans from drained requests)
// 3. Kafka consumer, DLQ producer and producer
// 4. PostgreSQL pool and Redis client
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.ShutdownTimeout)*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.limiter.Close()

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.orderStatus.Close(); err != nil {
		a.logger.Error("order status consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.dlq.Close(); err != nil {
		a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()
	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

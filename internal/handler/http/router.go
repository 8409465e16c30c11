package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Arya602/craft-heart-connect/internal/service"
	"github.com/Arya602/craft-heart-connect/pkg/health"
	"github.com/Arya602/craft-heart-connect/pkg/middleware"
)

// Services bundles the business services exposed over HTTP.
type Services struct {
	Cart     *service.CartService
	Wishlist *service.WishlistService
	Checkout *service.CheckoutService
	Catalog  *service.CatalogService
}

// RouterConfig holds the transport settings of the router.
type RouterConfig struct {
	ServiceName string
	CORS        middleware.CORSConfig
	PprofCIDRs  []string
	// ProductCacheSeconds is the max-age of the public product listing.
	ProductCacheSeconds int
	// RequestTimeout bounds every request. It must exceed the order submit timeout.
	RequestTimeout time.Duration
	// CheckoutLimiter throttles order placement per session. Nil disables it.
	CheckoutLimiter *middleware.RateLimiter
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	svcs Services,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	cartHandler := NewCartHandler(svcs.Cart, logger)
	wishlistHandler := NewWishlistHandler(svcs.Wishlist, logger)
	checkoutHandler := NewCheckoutHandler(svcs.Checkout, logger)
	productHandler := NewProductHandler(svcs.Catalog, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(middleware.CacheControl(cfg.ProductCacheSeconds), middleware.RequestLogger(logger)).
			Get("/products", productHandler.List)

		// Session-scoped endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Session())
			r.Use(middleware.RequestLogger(logger))
			r.Use(middleware.NoStore)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)

				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{productId}", cartHandler.UpdateItemQuantity)
				r.Delete("/items/{productId}", cartHandler.RemoveItem)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", wishlistHandler.List)
				r.Get("/{productId}", wishlistHandler.Contains)
				r.Post("/{productId}", wishlistHandler.Add)
				r.Delete("/{productId}", wishlistHandler.Remove)
				r.Post("/{productId}/toggle", wishlistHandler.Toggle)
			})

			r.Get("/checkout/quote", checkoutHandler.Quote)
			if cfg.CheckoutLimiter != nil {
				r.With(cfg.CheckoutLimiter.Middleware).Post("/checkout", checkoutHandler.PlaceOrder)
			} else {
				r.Post("/checkout", checkoutHandler.PlaceOrder)
			}

			r.Get("/orders", checkoutHandler.ListOrders)
			r.Get("/orders/{orderId}", checkoutHandler.GetOrder)
		})
	})

	return r
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	"github.com/Arya602/craft-heart-connect/internal/event"
	"github.com/Arya602/craft-heart-connect/internal/service"
	"github.com/Arya602/craft-heart-connect/pkg/health"
	"github.com/Arya602/craft-heart-connect/pkg/httputil"
	pkgkafka "github.com/Arya602/craft-heart-connect/pkg/kafka"
	"github.com/Arya602/craft-heart-connect/pkg/middleware"
	"github.com/Arya602/craft-heart-connect/pkg/pagination"
)

// ============================================================================
// Mocks
// ============================================================================

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, sessionID string) (domain.Cart, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(domain.Cart), args.Error(1)
}

func (m *mockCartRepository) SaveIfVersion(ctx context.Context, cart domain.Cart, expectedVersion int) (domain.Cart, bool, error) {
	args := m.Called(ctx, cart, expectedVersion)
	return args.Get(0).(domain.Cart), args.Bool(1), args.Error(2)
}

type mockWishlistRepository struct {
	mock.Mock
}

func (m *mockWishlistRepository) List(ctx context.Context, sessionID string) (domain.Wishlist, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(domain.Wishlist), args.Error(1)
}

func (m *mockWishlistRepository) Add(ctx context.Context, sessionID, productID string) (bool, error) {
	args := m.Called(ctx, sessionID, productID)
	return args.Bool(0), args.Error(1)
}

func (m *mockWishlistRepository) Remove(ctx context.Context, sessionID, productID string) (bool, error) {
	args := m.Called(ctx, sessionID, productID)
	return args.Bool(0), args.Error(1)
}

func (m *mockWishlistRepository) Contains(ctx context.Context, sessionID, productID string) (bool, error) {
	args := m.Called(ctx, sessionID, productID)
	return args.Bool(0), args.Error(1)
}

func (m *mockWishlistRepository) Update(ctx context.Context, sessionID string, fn func(domain.Wishlist) (domain.Wishlist, error)) (domain.Wishlist, bool, error) {
	args := m.Called(ctx, sessionID)
	if err := args.Error(2); err != nil {
		return domain.Wishlist{}, false, err
	}
	next, err := fn(args.Get(0).(domain.Wishlist))
	if err != nil {
		return domain.Wishlist{}, false, err
	}
	return next, args.Bool(1), nil
}

type mockGuard struct {
	mock.Mock
}

func (m *mockGuard) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, sessionID, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockGuard) Release(ctx context.Context, sessionID, token string) error {
	return m.Called(ctx, sessionID, token).Error(0)
}

type mockReceiptRepository struct {
	mock.Mock
}

func (m *mockReceiptRepository) Create(ctx context.Context, receipt domain.Receipt) error {
	return m.Called(ctx, receipt).Error(0)
}

func (m *mockReceiptRepository) ListBySession(ctx context.Context, sessionID string, page pagination.Params) ([]domain.Receipt, int, error) {
	args := m.Called(ctx, sessionID, page)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Receipt), args.Int(1), args.Error(2)
}

func (m *mockReceiptRepository) UpdateStatus(ctx context.Context, orderID string, status domain.Status, at time.Time) error {
	return m.Called(ctx, orderID, status, at).Error(0)
}

type mockOrderAPI struct {
	mock.Mock
}

func (m *mockOrderAPI) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderConfirmation, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.OrderConfirmation), args.Error(1)
}

func (m *mockOrderAPI) GetOrder(ctx context.Context, orderID string) (domain.OrderConfirmation, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(domain.OrderConfirmation), args.Error(1)
}

type mockProductSource struct {
	mock.Mock
}

func (m *mockProductSource) ListProducts(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

// ============================================================================
// Test helpers
// ============================================================================

const testSession = "sess-0001"

type fixture struct {
	router   http.Handler
	carts    *mockCartRepository
	wishlist *mockWishlistRepository
	guard    *mockGuard
	receipts *mockReceiptRepository
	orders   *mockOrderAPI
	products *mockProductSource
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture wires real services over mocked stores behind the production
// router, so middleware and routing are tested end-to-end.
func newFixture() *fixture {
	f := &fixture{
		carts:    new(mockCartRepository),
		wishlist: new(mockWishlistRepository),
		guard:    new(mockGuard),
		receipts: new(mockReceiptRepository),
		orders:   new(mockOrderAPI),
		products: new(mockProductSource),
	}

	logger := testLogger()
	producer := event.NewProducer(discardPublisher{}, logger)
	cartSvc := service.NewCartService(f.carts, producer, logger, 24*time.Hour)

	svcs := Services{
		Cart:     cartSvc,
		Wishlist: service.NewWishlistService(f.wishlist, producer, logger),
		Checkout: service.NewCheckoutService(cartSvc, f.guard, f.receipts, f.orders, producer, logger, service.CheckoutConfig{
			Policy:        domain.DefaultPolicy(),
			SubmitTimeout: time.Second,
			LockTTL:       5 * time.Second,
		}),
		Catalog: service.NewCatalogService(f.products, logger),
	}

	f.router = NewRouter(svcs, health.NewHandler(), logger, RouterConfig{
		ServiceName:         "storefront-test",
		CORS:                middleware.DefaultCORSConfig(),
		ProductCacheSeconds: 60,
		RequestTimeout:      5 * time.Second,
	})
	return f
}

// do sends a request as testSession unless the caller sets another session header.
func (f *fixture) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		buf, _ := json.Marshal(b)
		reader = bytes.NewBuffer(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.SessionIDHeader, testSession)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// decodeResponse reads the response body into the standard Response struct.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// decodeData reads the data member of the envelope as a JSON object.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	resp := decodeResponse(t, rec)
	require.Nil(t, resp.Error)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is not an object: %#v", resp.Data)
	return data
}

package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	"github.com/Arya602/craft-heart-connect/internal/event"
	pkgkafka "github.com/Arya602/craft-heart-connect/pkg/kafka"
	"github.com/Arya602/craft-heart-connect/pkg/pagination"
)

// --- Mock CartRepository ---

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

// --- Mock WishlistRepository ---

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

// Update applies fn to the wishlist the test supplies and returns the write
// outcome the test configured.
func (m *mockWishlistRepository) Update(ctx context.Context, sessionID string, fn func(domain.Wishlist) (domain.Wishlist, error)) (domain.Wishlist, bool, error) {
	args := m.Called(ctx, sessionID)
	if err := args.Error(2); err != nil {
		return domain.Wishlist{}, false, err
	}
	next, err := fn(args.Get(0).(domain.Wishlist))
	if err != nil {
		return domain.Wishlist{}, false, err
	}
	if !args.Bool(1) {
		return domain.Wishlist{}, false, nil
	}
	return next, true, nil
}

// --- Mock InFlightGuard ---

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

// --- Mock ReceiptRepository ---

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

// --- Mock OrderAPI ---

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

// --- Mock ProductSource ---

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

// --- Recording event publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []*pkgkafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, e *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProducer() (*event.Producer, *recordingPublisher) {
	pub := &recordingPublisher{}
	return event.NewProducer(pub, newTestLogger()), pub
}

var fixedNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

const testTTL = 7 * 24 * time.Hour

func newTestCartService(repo *mockCartRepository) (*CartService, *recordingPublisher) {
	producer, pub := newTestProducer()
	svc := NewCartService(repo, producer, newTestLogger(), testTTL)
	svc.now = func() time.Time { return fixedNow }
	return svc, pub
}

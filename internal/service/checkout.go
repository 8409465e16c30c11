package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	"github.com/Arya602/craft-heart-connect/internal/event"
	"github.com/Arya602/craft-heart-connect/internal/repository"
	apperrors "github.com/Arya602/craft-heart-connect/pkg/errors"
	"github.com/Arya602/craft-heart-connect/pkg/pagination"
	"github.com/Arya602/craft-heart-connect/pkg/validator"
)

// CodeCheckoutInProgress is returned while another submission for the same
// session is pending.
const CodeCheckoutInProgress = "CHECKOUT_IN_PROGRESS"

// settleTimeout bounds the post-confirmation steps, which run detached from
// the request so a disconnecting client cannot leave them half done.
const settleTimeout = 10 * time.Second

// Checkout outcomes recorded by checkoutTotal.
const (
	outcomePlaced   = "placed"
	outcomeFailed   = "failed"
	outcomeRejected = "rejected"
)

var checkoutTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "checkout_total",
		Help:      "Checkout submissions by outcome",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(checkoutTotal)
}

// OrderAPI is the part of the order API client the checkout flow uses.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderConfirmation, error)
	GetOrder(ctx context.Context, orderID string) (domain.OrderConfirmation, error)
}

// CheckoutConfig holds pricing and timing for checkout.
type CheckoutConfig struct {
	Policy domain.Policy
	// SubmitTimeout bounds the call to the order API.
	SubmitTimeout time.Duration
	// LockTTL is how long the in-flight flag outlives a crashed submission.
	// It must exceed SubmitTimeout.
	LockTTL time.Duration
}

// PlaceOrderInput holds the shopper's checkout form.
type PlaceOrderInput struct {
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method" validate:"required"`
	// IdempotencyKey is taken from the Idempotency-Key request header. A
	// fresh key is generated when the client sends none.
	IdempotencyKey string `json:"-"`
}

// CheckoutQuote is the payable breakdown of the current cart, rounded for display.
type CheckoutQuote struct {
	TotalItems int `json:"total_items"`
	domain.Quote
	FreeShippingGap decimal.Decimal `json:"free_shipping_gap"`
}

// CheckoutService implements the checkout flow:
// cart populated -> pending submission -> order confirmed (cart cleared) or
// failed (cart retained).
type CheckoutService struct {
	carts    *CartService
	guard    repository.InFlightGuard
	receipts repository.ReceiptRepository
	orders   OrderAPI
	producer *event.Producer
	logger   *slog.Logger
	cfg      CheckoutConfig
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	carts *CartService,
	guard repository.InFlightGuard,
	receipts repository.ReceiptRepository,
	orders OrderAPI,
	producer *event.Producer,
	logger *slog.Logger,
	cfg CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		carts:    carts,
		guard:    guard,
		receipts: receipts,
		orders:   orders,
		producer: producer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Quote prices the session's current cart.
func (s *CheckoutService) Quote(ctx context.Context, sessionID string) (CheckoutQuote, error) {
	cart, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return CheckoutQuote{}, err
	}

	totals := cart.Totals()
	return CheckoutQuote{
		TotalItems:      totals.TotalItems,
		Quote:           s.cfg.Policy.Quote(totals.TotalPrice).Rounded(),
		FreeShippingGap: s.cfg.Policy.FreeShippingGap(totals.TotalPrice),
	}, nil
}

// PlaceOrder submits the session's cart as an order. Only one submission per
// session may be pending at a time; a concurrent one fails with 409
// CHECKOUT_IN_PROGRESS. On success the cart is cleared and a receipt kept; on
// failure the cart is left as it was.
func (s *CheckoutService) PlaceOrder(ctx context.Context, sessionID string, input PlaceOrderInput) (domain.OrderConfirmation, error) {
	if sessionID == "" {
		return domain.OrderConfirmation{}, apperrors.InvalidInput("session id is required")
	}
	if err := validator.Validate(input); err != nil {
		return domain.OrderConfirmation{}, err
	}
	method, err := domain.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return domain.OrderConfirmation{}, err
	}

	token, acquired, err := s.guard.Acquire(ctx, sessionID, s.cfg.LockTTL)
	if err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("acquire checkout flag: %w", err)
	}
	if !acquired {
		checkoutTotal.WithLabelValues(outcomeRejected).Inc()
		return domain.OrderConfirmation{}, apperrors.ConflictWithCode(CodeCheckoutInProgress,
			"an order for this session is already being placed")
	}
	defer s.release(ctx, sessionID, token)

	cart, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return domain.OrderConfirmation{}, err
	}

	key := input.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	quote := s.cfg.Policy.Quote(cart.Totals().TotalPrice)
	req, err := domain.NewOrderRequest(cart, quote, input.ShippingAddress, method, key)
	if err != nil {
		return domain.OrderConfirmation{}, err
	}

	conf, err := s.submit(ctx, req)
	if err != nil {
		err = userFacing(err)
		s.recordFailure(ctx, sessionID, err)
		return domain.OrderConfirmation{}, err
	}

	receipt := domain.NewReceipt(sessionID, req, conf)
	s.complete(ctx, cart, receipt)

	checkoutTotal.WithLabelValues(outcomePlaced).Inc()
	s.logger.InfoContext(ctx, "order placed",
		slog.String("session_id", sessionID),
		slog.String("order_id", conf.OrderID),
		slog.String("total_price", req.TotalPrice.StringFixed(2)),
	)
	return conf, nil
}

// GetOrder returns the current status and tracking history of an order.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID string) (domain.OrderConfirmation, error) {
	if orderID == "" {
		return domain.OrderConfirmation{}, apperrors.InvalidInput("order id is required")
	}
	conf, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("get order: %w", err)
	}
	return conf, nil
}

// ListReceipts returns one page of the session's order history, newest first.
func (s *CheckoutService) ListReceipts(ctx context.Context, sessionID string, page pagination.Params) ([]domain.Receipt, int, error) {
	if sessionID == "" {
		return nil, 0, apperrors.InvalidInput("session id is required")
	}
	receipts, total, err := s.receipts.ListBySession(ctx, sessionID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list receipts: %w", err)
	}
	return receipts, total, nil
}

func (s *CheckoutService) submit(ctx context.Context, req domain.OrderRequest) (domain.OrderConfirmation, error) {
	if s.cfg.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SubmitTimeout)
		defer cancel()
	}
	return s.orders.CreateOrder(ctx, req)
}

// complete runs the post-confirmation steps. The order already exists, so
// their failures are logged rather than returned. Only the ordered lines leave
// the cart; edits made while the order was pending are kept.
func (s *CheckoutService) complete(ctx context.Context, ordered domain.Cart, receipt domain.Receipt) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	sessionID := receipt.SessionID
	if _, err := s.carts.settle(ctx, sessionID, ordered); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after order",
			slog.String("session_id", sessionID),
			slog.String("order_id", receipt.OrderID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.receipts.Create(ctx, receipt); err != nil {
		s.logger.ErrorContext(ctx, "failed to store receipt",
			slog.String("order_id", receipt.OrderID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishOrderPlaced(ctx, receipt); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.placed event",
			slog.String("order_id", receipt.OrderID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CheckoutService) recordFailure(ctx context.Context, sessionID string, err error) {
	checkoutTotal.WithLabelValues(outcomeFailed).Inc()

	code := "INTERNAL_ERROR"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}

	s.logger.WarnContext(ctx, "order submission failed",
		slog.String("session_id", sessionID),
		slog.String("code", code),
		slog.String("error", err.Error()),
	)
	if pubErr := s.producer.PublishCheckoutFailed(ctx, sessionID, code, err.Error()); pubErr != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout.failed event",
			slog.String("session_id", sessionID),
			slog.String("error", pubErr.Error()),
		)
	}
}

// release clears the in-flight flag even when the request context is done.
func (s *CheckoutService) release(ctx context.Context, sessionID, token string) {
	if err := s.guard.Release(context.WithoutCancel(ctx), sessionID, token); err != nil {
		s.logger.ErrorContext(ctx, "failed to release checkout flag",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

// userFacing keeps errors the order API explained and turns everything else
// into a retryable 503 that says the cart was kept.
func userFacing(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &apperrors.AppError{
			Code:    "ORDER_TIMEOUT",
			Message: "the order service did not answer in time; your cart has been kept, please retry",
			Status:  http.StatusServiceUnavailable,
			Err:     errors.Join(apperrors.ErrServiceUnavail, err),
		}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError {
		return appErr
	}
	if errors.As(err, &appErr) && appErr.Status == http.StatusServiceUnavailable {
		return appErr
	}
	return &apperrors.AppError{
		Code:    "ORDER_FAILED",
		Message: "the order could not be placed; your cart has been kept, please retry",
		Status:  http.StatusServiceUnavailable,
		Err:     errors.Join(apperrors.ErrServiceUnavail, err),
	}
}

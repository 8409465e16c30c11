package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/Arya602/craft-heart-connect/pkg/errors"
	"github.com/Arya602/craft-heart-connect/pkg/validator"
)

// PaymentMethod selects how an order is paid.
type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentStripe PaymentMethod = "STRIPE"
	PaymentUPI    PaymentMethod = "UPI"
)

// Enabled reports whether orders can currently be placed with m. Only pay on
// delivery is offered.
func (m PaymentMethod) Enabled() bool {
	return m == PaymentCOD
}

// ParsePaymentMethod accepts any recognised method, case-insensitively.
// Recognised but disabled methods yield a NOT_AVAILABLE error.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case PaymentCOD:
		return m, nil
	case PaymentStripe, PaymentUPI:
		return m, apperrors.NotImplemented(fmt.Sprintf("payment method %s is not available yet", m))
	default:
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown payment method %q", s))
	}
}

// Status is the lifecycle state of an order as reported by the order service.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", apperrors.InvalidInput(fmt.Sprintf("unknown order status %q", s))
}

// ShippingAddress is where an order is delivered.
type ShippingAddress struct {
	FullName   string `json:"full_name,omitempty" validate:"omitempty,max=100"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,phone"`
	Address    string `json:"address" validate:"required,max=300"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state,omitempty" validate:"omitempty,max=100"`
	PostalCode string `json:"postal_code" validate:"required,pincode"`
	Country    string `json:"country" validate:"required,max=60"`
}

// OrderItem is a line item snapshot inside an order submission.
type OrderItem struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
	Image     string          `json:"image,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderRequest is the payload submitted to the order API. It is built once by
// NewOrderRequest and not modified afterwards.
type OrderRequest struct {
	Items           []OrderItem     `json:"items" validate:"required,min=1,dive"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method" validate:"required,oneof=COD STRIPE UPI"`
	ItemsPrice      decimal.Decimal `json:"items_price"`
	TaxPrice        decimal.Decimal `json:"tax_price"`
	ShippingPrice   decimal.Decimal `json:"shipping_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	IdempotencyKey  string          `json:"-"`
}

// ItemCount is the total quantity across all items.
func (r OrderRequest) ItemCount() int {
	n := 0
	for _, it := range r.Items {
		n += it.Quantity
	}
	return n
}

// NewOrderRequest snapshots cart and prices it with quote, rounded to two
// places. The result is validated field by field; an empty cart is rejected.
func NewOrderRequest(cart Cart, quote Quote, addr ShippingAddress, method PaymentMethod, idempotencyKey string) (OrderRequest, error) {
	if cart.IsEmpty() {
		return OrderRequest{}, apperrors.InvalidInput("cart is empty")
	}

	items := make([]OrderItem, len(cart.Items))
	for i, li := range cart.Items {
		items[i] = OrderItem{
			ProductID: li.ProductID,
			Name:      li.Title,
			Quantity:  li.Quantity,
			Image:     li.ImageURL,
			UnitPrice: li.UnitPrice,
		}
	}

	q := quote.Rounded()
	req := OrderRequest{
		Items:           items,
		ShippingAddress: addr,
		PaymentMethod:   method,
		ItemsPrice:      q.Subtotal,
		TaxPrice:        q.Tax,
		ShippingPrice:   q.Shipping,
		TotalPrice:      q.GrandTotal,
		IdempotencyKey:  idempotencyKey,
	}

	if err := validator.Validate(req); err != nil {
		return OrderRequest{}, err
	}
	return req, nil
}

// TrackingUpdate is one entry in an order's delivery history.
type TrackingUpdate struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderConfirmation is what the order API returns for a created or fetched order.
type OrderConfirmation struct {
	OrderID           string           `json:"order_id"`
	Status            Status           `json:"status"`
	ItemsPrice        decimal.Decimal  `json:"items_price"`
	TaxPrice          decimal.Decimal  `json:"tax_price"`
	ShippingPrice     decimal.Decimal  `json:"shipping_price"`
	TotalPrice        decimal.Decimal  `json:"total_price"`
	CreatedAt         time.Time        `json:"created_at"`
	EstimatedDelivery *time.Time       `json:"estimated_delivery,omitempty"`
	TrackingUpdates   []TrackingUpdate `json:"tracking_updates,omitempty"`
}

// Receipt is the storefront's local record of a placed order, used for the
// session's order history.
type Receipt struct {
	OrderID       string          `json:"order_id"`
	SessionID     string          `json:"session_id"`
	Status        Status          `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	ItemCount     int             `json:"item_count"`
	ItemsPrice    decimal.Decimal `json:"items_price"`
	TaxPrice      decimal.Decimal `json:"tax_price"`
	ShippingPrice decimal.Decimal `json:"shipping_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewReceipt records a confirmed submission. Totals come from the request the
// storefront sent; status and timestamps from the confirmation.
func NewReceipt(sessionID string, req OrderRequest, conf OrderConfirmation) Receipt {
	status := conf.Status
	if status == "" {
		status = StatusPending
	}
	created := conf.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return Receipt{
		OrderID:       conf.OrderID,
		SessionID:     sessionID,
		Status:        status,
		PaymentMethod: req.PaymentMethod,
		ItemCount:     req.ItemCount(),
		ItemsPrice:    req.ItemsPrice,
		TaxPrice:      req.TaxPrice,
		ShippingPrice: req.ShippingPrice,
		TotalPrice:    req.TotalPrice,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

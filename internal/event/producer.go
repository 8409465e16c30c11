package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	pkgkafka "github.com/Arya602/craft-heart-connect/pkg/kafka"
	"github.com/Arya602/craft-heart-connect/pkg/logger"
)

// Kafka topics the storefront publishes.
var (
	TopicCartUpdated     = pkgkafka.Topic("cart", "updated")
	TopicCartCleared     = pkgkafka.Topic("cart", "cleared")
	TopicWishlistUpdated = pkgkafka.Topic("wishlist", "updated")
	TopicOrderPlaced     = pkgkafka.Topic("order", "placed")
	TopicCheckoutFailed  = pkgkafka.Topic("checkout", "failed")
)

// Aggregate types.
const (
	AggregateTypeCart     = "cart"
	AggregateTypeWishlist = "wishlist"
	AggregateTypeOrder    = "order"
	AggregateTypeCheckout = "checkout"
)

// SourceStorefront identifies events originating from this service.
const SourceStorefront = "storefront"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID  string          `json:"session_id"`
	Items      []CartItemData  `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Version    int             `json:"version"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// WishlistUpdatedData is the payload for a wishlist.updated event.
type WishlistUpdatedData struct {
	SessionID string `json:"session_id"`
	ProductID string `json:"product_id"`
	Saved     bool   `json:"saved"`
}

// OrderPlacedData is the payload for an order.placed event.
type OrderPlacedData struct {
	OrderID       string          `json:"order_id"`
	SessionID     string          `json:"session_id"`
	PaymentMethod string          `json:"payment_method"`
	ItemCount     int             `json:"item_count"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

// CheckoutFailedData is the payload for a checkout.failed event.
type CheckoutFailedData struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
}

// Publisher sends an event to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart domain.Cart) error {
	items := make([]CartItemData, len(cart.Items))
	for i, li := range cart.Items {
		items[i] = CartItemData{
			ProductID: li.ProductID,
			Title:     li.Title,
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
		}
	}
	totals := cart.Totals()

	data := CartUpdatedData{
		SessionID:  cart.SessionID,
		Items:      items,
		TotalItems: totals.TotalItems,
		TotalPrice: totals.TotalPrice,
		Version:    cart.Version,
	}
	return p.publish(ctx, TopicCartUpdated, cart.SessionID, AggregateTypeCart, data)
}

// PublishCartCleared publishes a cart.cleared event. reason is "user" or
// "checkout".
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID, reason string) error {
	return p.publish(ctx, TopicCartCleared, sessionID, AggregateTypeCart, CartClearedData{
		SessionID: sessionID,
		Reason:    reason,
	})
}

// PublishWishlistUpdated publishes a wishlist.updated event.
func (p *Producer) PublishWishlistUpdated(ctx context.Context, sessionID, productID string, saved bool) error {
	return p.publish(ctx, TopicWishlistUpdated, sessionID, AggregateTypeWishlist, WishlistUpdatedData{
		SessionID: sessionID,
		ProductID: productID,
		Saved:     saved,
	})
}

// PublishOrderPlaced publishes an order.placed event.
func (p *Producer) PublishOrderPlaced(ctx context.Context, receipt domain.Receipt) error {
	return p.publish(ctx, TopicOrderPlaced, receipt.OrderID, AggregateTypeOrder, OrderPlacedData{
		OrderID:       receipt.OrderID,
		SessionID:     receipt.SessionID,
		PaymentMethod: string(receipt.PaymentMethod),
		ItemCount:     receipt.ItemCount,
		TotalPrice:    receipt.TotalPrice,
	})
}

// PublishCheckoutFailed publishes a checkout.failed event.
func (p *Producer) PublishCheckoutFailed(ctx context.Context, sessionID, code, reason string) error {
	return p.publish(ctx, TopicCheckoutFailed, sessionID, AggregateTypeCheckout, CheckoutFailedData{
		SessionID: sessionID,
		Code:      code,
		Reason:    reason,
	})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	if id := logger.SessionIDFromContext(ctx); id != "" {
		event.WithMetadata("session_id", id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

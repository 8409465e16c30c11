package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	"github.com/Arya602/craft-heart-connect/internal/event"
	"github.com/Arya602/craft-heart-connect/internal/repository"
	apperrors "github.com/Arya602/craft-heart-connect/pkg/errors"
	"github.com/Arya602/craft-heart-connect/pkg/validator"
)

// Cart operation upper-bound limits to prevent abuse.
const (
	// MaxQuantityPerItem is the maximum quantity allowed for a single cart item.
	MaxQuantityPerItem = 100
	// MaxItemsPerCart is the maximum number of distinct items allowed in a cart.
	MaxItemsPerCart = 50

	// maxSaveAttempts bounds how often a mutation is replayed after losing a
	// version race.
	maxSaveAttempts = 3
)

// MaxUnitPrice is the highest unit price accepted for a cart item.
var MaxUnitPrice = decimal.NewFromInt(1_000_000)

// Reasons carried by cart.cleared events.
const (
	ClearReasonUser     = "user"
	ClearReasonCheckout = "checkout"
)

// AddItemInput holds the product being added to the cart.
type AddItemInput struct {
	ProductID string          `json:"product_id" validate:"required,max=64"`
	Title     string          `json:"title" validate:"required,max=200"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageURL  string          `json:"image_url" validate:"max=500"`
	Artisan   string          `json:"artisan" validate:"max=100"`
}

func (in AddItemInput) item() domain.Item {
	return domain.Item{
		ProductID: in.ProductID,
		Title:     in.Title,
		UnitPrice: in.UnitPrice,
		ImageURL:  in.ImageURL,
		Artisan:   in.Artisan,
	}
}

// ProductLookup resolves a product id to its published listing.
// *CatalogService satisfies it.
type ProductLookup interface {
	Product(ctx context.Context, id string) (domain.Product, error)
}

// UpdateQuantityInput holds the new quantity of a cart item. Values below 1
// remove the item.
type UpdateQuantityInput struct {
	Quantity int `json:"quantity" validate:"lte=100"`
}

// CartService implements the business logic for cart operations.
type CartService struct {
	repo     repository.CartRepository
	catalog  ProductLookup
	producer *event.Producer
	logger   *slog.Logger
	cartTTL  time.Duration
	now      func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(repo repository.CartRepository, producer *event.Producer, logger *slog.Logger, cartTTL time.Duration) *CartService {
	return &CartService{
		repo:     repo,
		producer: producer,
		logger:   logger,
		cartTTL:  cartTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithCatalog makes AddItem take title, price and artisan from the catalog
// listing instead of the request body.
func (s *CartService) WithCatalog(catalog ProductLookup) *CartService {
	s.catalog = catalog
	return s
}

// GetCart retrieves the session's cart. A session without a cart gets an
// empty one, which is not persisted until it is first modified.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (domain.Cart, error) {
	if sessionID == "" {
		return domain.Cart{}, apperrors.InvalidInput("session id is required")
	}

	cart, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NewCart(sessionID, s.now(), s.cartTTL), nil
		}
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// AddItem adds one unit of a product. Adding a product already in the cart
// increments its quantity. With a catalog attached the stored price is the
// listing's, whatever the client sent.
func (s *CartService) AddItem(ctx context.Context, sessionID string, input AddItemInput) (domain.Cart, error) {
	if err := validator.Validate(input); err != nil {
		return domain.Cart{}, err
	}

	item := input.item()
	if s.catalog != nil {
		product, err := s.catalog.Product(ctx, input.ProductID)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("look up product: %w", err)
		}
		item = product.CartItem()
	}
	if item.UnitPrice.IsNegative() {
		return domain.Cart{}, apperrors.InvalidInput("unit price must not be negative")
	}
	if item.UnitPrice.GreaterThan(MaxUnitPrice) {
		return domain.Cart{}, apperrors.InvalidInput(fmt.Sprintf("unit price must not exceed %s", MaxUnitPrice))
	}

	cart, err := s.mutate(ctx, sessionID, func(c domain.Cart) (domain.Cart, error) {
		if li, ok := c.Find(input.ProductID); ok {
			if li.Quantity >= MaxQuantityPerItem {
				return c, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
			}
		} else if c.Len() >= MaxItemsPerCart {
			return c, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
		}
		return c.Add(item), nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("session_id", sessionID),
		slog.String("product_id", input.ProductID),
	)
	s.publishUpdated(ctx, cart)
	return cart, nil
}

// RemoveItem deletes a product from the cart. Removing a product that is not
// in the cart leaves it unchanged.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID string) (domain.Cart, error) {
	if productID == "" {
		return domain.Cart{}, apperrors.InvalidInput("product id is required")
	}

	cart, err := s.mutate(ctx, sessionID, func(c domain.Cart) (domain.Cart, error) {
		return c.Remove(productID), nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	s.publishUpdated(ctx, cart)
	return cart, nil
}

// UpdateItemQuantity sets a product's quantity exactly. A quantity below 1
// removes the product; unknown products leave the cart unchanged.
func (s *CartService) UpdateItemQuantity(ctx context.Context, sessionID, productID string, input UpdateQuantityInput) (domain.Cart, error) {
	if productID == "" {
		return domain.Cart{}, apperrors.InvalidInput("product id is required")
	}
	if err := validator.Validate(input); err != nil {
		return domain.Cart{}, err
	}

	cart, err := s.mutate(ctx, sessionID, func(c domain.Cart) (domain.Cart, error) {
		return c.SetQuantity(productID, input.Quantity), nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	s.publishUpdated(ctx, cart)
	return cart, nil
}

// ClearCart empties the session's cart.
func (s *CartService) ClearCart(ctx context.Context, sessionID string) (domain.Cart, error) {
	return s.clear(ctx, sessionID, ClearReasonUser)
}

func (s *CartService) clear(ctx context.Context, sessionID, reason string) (domain.Cart, error) {
	cart, err := s.mutate(ctx, sessionID, func(c domain.Cart) (domain.Cart, error) {
		return c.Clear(), nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	if err := s.producer.PublishCartCleared(ctx, sessionID, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
	return cart, nil
}

// settle takes the ordered lines out of the cart after a confirmed order.
// When nobody touched the cart since it was read for the order it is emptied;
// otherwise only the ordered quantities are subtracted, so products added or
// topped up while the order was pending stay.
func (s *CartService) settle(ctx context.Context, sessionID string, ordered domain.Cart) (domain.Cart, error) {
	cart, err := s.mutate(ctx, sessionID, func(c domain.Cart) (domain.Cart, error) {
		if c.Version == ordered.Version {
			return c.Clear(), nil
		}
		return c.Subtract(ordered), nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	if !cart.IsEmpty() {
		s.logger.InfoContext(ctx, "cart changed during checkout, kept unordered items",
			slog.String("session_id", sessionID),
			slog.Int("items_left", cart.Len()),
		)
		s.publishUpdated(ctx, cart)
		return cart, nil
	}
	if err := s.producer.PublishCartCleared(ctx, sessionID, ClearReasonCheckout); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
	return cart, nil
}

// mutate loads the cart, applies fn and stores the result only if nobody else
// wrote the cart in between. A lost race replays fn against the fresh
// snapshot, up to maxSaveAttempts times.
func (s *CartService) mutate(ctx context.Context, sessionID string, fn func(domain.Cart) (domain.Cart, error)) (domain.Cart, error) {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		current, err := s.GetCart(ctx, sessionID)
		if err != nil {
			return domain.Cart{}, err
		}

		next, err := fn(current)
		if err != nil {
			return domain.Cart{}, err
		}
		next = next.Touch(s.now(), s.cartTTL)

		saved, ok, err := s.repo.SaveIfVersion(ctx, next, current.Version)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("save cart: %w", err)
		}
		if ok {
			return saved, nil
		}

		s.logger.WarnContext(ctx, "cart version conflict, retrying",
			slog.String("session_id", sessionID),
			slog.Int("expected_version", current.Version),
			slog.Int("attempt", attempt),
		)
	}
	return domain.Cart{}, apperrors.Conflict("cart was modified concurrently, please retry")
}

func (s *CartService) publishUpdated(ctx context.Context, cart domain.Cart) {
	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("session_id", cart.SessionID),
			slog.String("error", err.Error()),
		)
	}
}

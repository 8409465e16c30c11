package repository

import (
	"context"
	"time"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	"github.com/Arya602/craft-heart-connect/pkg/pagination"
)

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Get retrieves the cart for a session. A missing cart is ErrNotFound.
	Get(ctx context.Context, sessionID string) (domain.Cart, error)

	// SaveIfVersion stores cart only when the stored version still equals
	// expectedVersion, bumping the stored version by one. It reports false
	// when another writer got there first.
	SaveIfVersion(ctx context.Context, cart domain.Cart, expectedVersion int) (domain.Cart, bool, error)
}

// WishlistRepository defines the interface for wishlist persistence operations.
type WishlistRepository interface {
	// List returns the saved product ids in the order they were saved.
	List(ctx context.Context, sessionID string) (domain.Wishlist, error)

	// Add saves productID and reports whether it was newly added.
	Add(ctx context.Context, sessionID, productID string) (bool, error)

	// Remove unsaves productID and reports whether it was present.
	Remove(ctx context.Context, sessionID, productID string) (bool, error)

	// Contains reports whether productID is saved.
	Contains(ctx context.Context, sessionID, productID string) (bool, error)

	// Update reads the wishlist, applies fn and writes the difference back in
	// one transaction. It reports false, without writing, when the wishlist
	// changed after it was read.
	Update(ctx context.Context, sessionID string, fn func(domain.Wishlist) (domain.Wishlist, error)) (domain.Wishlist, bool, error)
}

// InFlightGuard marks a session as having a checkout in progress.
type InFlightGuard interface {
	// Acquire sets the session's flag if it is not already set. The returned
	// token must be passed to Release. ok is false when the flag was held.
	Acquire(ctx context.Context, sessionID string, ttl time.Duration) (token string, ok bool, err error)

	// Release clears the flag if it is still owned by token.
	Release(ctx context.Context, sessionID, token string) error
}

// ReceiptRepository defines the interface for order receipt persistence.
type ReceiptRepository interface {
	Create(ctx context.Context, receipt domain.Receipt) error

	// ListBySession returns one page of the session's receipts, newest first,
	// with the total number of receipts.
	ListBySession(ctx context.Context, sessionID string, page pagination.Params) ([]domain.Receipt, int, error)

	// UpdateStatus sets the status of an existing receipt as of at. A missing
	// receipt, or one already updated after at, is ErrNotFound.
	UpdateStatus(ctx context.Context, orderID string, status domain.Status, at time.Time) error
}

// EventStore records which consumed event ids have already been handled.
type EventStore interface {
	Contains(ctx context.Context, eventID string) (bool, error)
	Add(ctx context.Context, eventID string) error
}

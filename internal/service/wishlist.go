package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	"github.com/Arya602/craft-heart-connect/internal/event"
	"github.com/Arya602/craft-heart-connect/internal/repository"
	apperrors "github.com/Arya602/craft-heart-connect/pkg/errors"
)

// MaxWishlistItems caps how many products one session can save.
const MaxWishlistItems = 200

// WishlistToggle is the outcome of a toggle.
type WishlistToggle struct {
	Wishlist domain.Wishlist `json:"wishlist"`
	Saved    bool            `json:"saved"`
}

// WishlistService implements the business logic for wishlist operations.
type WishlistService struct {
	repo     repository.WishlistRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewWishlistService creates a new wishlist service.
func NewWishlistService(repo repository.WishlistRepository, producer *event.Producer, logger *slog.Logger) *WishlistService {
	return &WishlistService{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

// List returns the session's saved products in the order they were saved.
func (s *WishlistService) List(ctx context.Context, sessionID string) (domain.Wishlist, error) {
	if sessionID == "" {
		return domain.Wishlist{}, apperrors.InvalidInput("session id is required")
	}
	w, err := s.repo.List(ctx, sessionID)
	if err != nil {
		return domain.Wishlist{}, fmt.Errorf("list wishlist: %w", err)
	}
	return w, nil
}

// Contains reports whether productID is saved.
func (s *WishlistService) Contains(ctx context.Context, sessionID, productID string) (bool, error) {
	if err := requireIDs(sessionID, productID); err != nil {
		return false, err
	}
	ok, err := s.repo.Contains(ctx, sessionID, productID)
	if err != nil {
		return false, fmt.Errorf("check wishlist: %w", err)
	}
	return ok, nil
}

// Add saves productID. Saving a product twice is a no-op.
func (s *WishlistService) Add(ctx context.Context, sessionID, productID string) (domain.Wishlist, error) {
	if err := requireIDs(sessionID, productID); err != nil {
		return domain.Wishlist{}, err
	}
	current, err := s.List(ctx, sessionID)
	if err != nil {
		return domain.Wishlist{}, err
	}
	if current.Contains(productID) {
		return current, nil
	}
	if current.Len() >= MaxWishlistItems {
		return domain.Wishlist{}, apperrors.InvalidInput(fmt.Sprintf("wishlist must not contain more than %d items", MaxWishlistItems))
	}

	added, err := s.repo.Add(ctx, sessionID, productID)
	if err != nil {
		return domain.Wishlist{}, fmt.Errorf("add to wishlist: %w", err)
	}
	if added {
		s.publish(ctx, sessionID, productID, true)
	}
	return current.Add(productID), nil
}

// Remove unsaves productID. Removing a product that is not saved is a no-op.
func (s *WishlistService) Remove(ctx context.Context, sessionID, productID string) (domain.Wishlist, error) {
	if err := requireIDs(sessionID, productID); err != nil {
		return domain.Wishlist{}, err
	}

	removed, err := s.repo.Remove(ctx, sessionID, productID)
	if err != nil {
		return domain.Wishlist{}, fmt.Errorf("remove from wishlist: %w", err)
	}
	if removed {
		s.publish(ctx, sessionID, productID, false)
	}
	return s.List(ctx, sessionID)
}

// Toggle flips whether productID is saved. The read and the write happen in
// one repository transaction, so two toggles racing on the same product end
// with one saved and one unsaved rather than both saving.
func (s *WishlistService) Toggle(ctx context.Context, sessionID, productID string) (WishlistToggle, error) {
	if err := requireIDs(sessionID, productID); err != nil {
		return WishlistToggle{}, err
	}

	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		var saved bool
		w, ok, err := s.repo.Update(ctx, sessionID, func(current domain.Wishlist) (domain.Wishlist, error) {
			next, nowSaved := current.Toggle(productID)
			if nowSaved && next.Len() > MaxWishlistItems {
				return current, apperrors.InvalidInput(fmt.Sprintf("wishlist must not contain more than %d items", MaxWishlistItems))
			}
			saved = nowSaved
			return next, nil
		})
		if err != nil {
			return WishlistToggle{}, fmt.Errorf("toggle wishlist: %w", err)
		}
		if ok {
			s.publish(ctx, sessionID, productID, saved)
			return WishlistToggle{Wishlist: w, Saved: saved}, nil
		}

		s.logger.WarnContext(ctx, "wishlist changed during toggle, retrying",
			slog.String("session_id", sessionID),
			slog.Int("attempt", attempt),
		)
	}
	return WishlistToggle{}, apperrors.Conflict("wishlist was modified concurrently, please retry")
}

func (s *WishlistService) publish(ctx context.Context, sessionID, productID string, saved bool) {
	if err := s.producer.PublishWishlistUpdated(ctx, sessionID, productID, saved); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish wishlist.updated event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func requireIDs(sessionID, productID string) error {
	if sessionID == "" {
		return apperrors.InvalidInput("session id is required")
	}
	if productID == "" {
		return apperrors.InvalidInput("product id is required")
	}
	return nil
}

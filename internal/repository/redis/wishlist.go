package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Arya602/craft-heart-connect/internal/domain"
)

const wishlistKeyPrefix = "storefront:wishlist:"

func wishlistKey(sessionID string) string { return wishlistKeyPrefix + sessionID }

// WishlistRepository stores each session's wishlist as a sorted set scored by
// the time a product was saved, so ZRANGE returns save order.
type WishlistRepository struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewWishlistRepository creates a new Redis-backed wishlist repository.
func NewWishlistRepository(client *redis.Client, ttl time.Duration) *WishlistRepository {
	return &WishlistRepository{client: client, ttl: ttl, now: time.Now}
}

// List returns the session's saved products, oldest first.
func (r *WishlistRepository) List(ctx context.Context, sessionID string) (domain.Wishlist, error) {
	ids, err := r.client.ZRange(ctx, wishlistKey(sessionID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Wishlist{}, fmt.Errorf("redis zrange wishlist: %w", err)
	}
	w := domain.NewWishlist(sessionID)
	if len(ids) > 0 {
		w.ProductIDs = ids
	}
	return w, nil
}

// Add saves productID. Re-adding keeps the original position.
func (r *WishlistRepository) Add(ctx context.Context, sessionID, productID string) (bool, error) {
	key := wishlistKey(sessionID)
	var added *redis.IntCmd

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.ZAddNX(ctx, key, redis.Z{
			Score:  float64(r.now().UnixMicro()),
			Member: productID,
		})
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis zadd wishlist: %w", err)
	}
	return added.Val() == 1, nil
}

// Remove unsaves productID.
func (r *WishlistRepository) Remove(ctx context.Context, sessionID, productID string) (bool, error) {
	n, err := r.client.ZRem(ctx, wishlistKey(sessionID), productID).Result()
	if err != nil {
		return false, fmt.Errorf("redis zrem wishlist: %w", err)
	}
	return n == 1, nil
}

// Update runs fn against the stored wishlist under WATCH. Products fn added
// are scored after every existing entry so save order holds.
func (r *WishlistRepository) Update(ctx context.Context, sessionID string, fn func(domain.Wishlist) (domain.Wishlist, error)) (domain.Wishlist, bool, error) {
	key := wishlistKey(sessionID)
	var (
		next  domain.Wishlist
		fnErr error
	)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		ids, err := tx.ZRange(ctx, key, 0, -1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis zrange wishlist: %w", err)
		}
		current := domain.NewWishlist(sessionID)
		if len(ids) > 0 {
			current.ProductIDs = ids
		}

		next, fnErr = fn(current)
		if fnErr != nil {
			return fnErr
		}

		added, removed := diffWishlists(current, next)
		if len(added) == 0 && len(removed) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(removed) > 0 {
				pipe.ZRem(ctx, key, removed...)
			}
			score := r.now().UnixMicro()
			for i, id := range added {
				pipe.ZAdd(ctx, key, redis.Z{Score: float64(score + int64(i)), Member: id})
			}
			pipe.Expire(ctx, key, r.ttl)
			return nil
		})
		return err
	}, key)

	switch {
	case fnErr != nil:
		return domain.Wishlist{}, false, fnErr
	case errors.Is(err, redis.TxFailedErr):
		return domain.Wishlist{}, false, nil
	case err != nil:
		return domain.Wishlist{}, false, fmt.Errorf("redis update wishlist: %w", err)
	}
	return next, true, nil
}

func diffWishlists(before, after domain.Wishlist) (added []string, removed []any) {
	for _, id := range after.ProductIDs {
		if !before.Contains(id) {
			added = append(added, id)
		}
	}
	for _, id := range before.ProductIDs {
		if !after.Contains(id) {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// Contains reports whether productID is saved.
func (r *WishlistRepository) Contains(ctx context.Context, sessionID, productID string) (bool, error) {
	_, err := r.client.ZScore(ctx, wishlistKey(sessionID), productID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis zscore wishlist: %w", err)
	}
	return true, nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	apperrors "github.com/Arya602/craft-heart-connect/pkg/errors"
)

const cartKeyPrefix = "storefront:cart:"

func cartKey(sessionID string) string { return cartKeyPrefix + sessionID }

// CartRepository implements repository.CartRepository using Redis.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a session's cart from Redis.
func (r *CartRepository) Get(ctx context.Context, sessionID string) (domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Cart{}, apperrors.NotFound("cart", sessionID)
		}
		return domain.Cart{}, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return domain.Cart{}, fmt.Errorf("unmarshal cart: %w", err)
	}
	return cart, nil
}

// SaveIfVersion writes cart under WATCH so a concurrent writer between the
// version check and the write aborts the transaction. A missing cart counts
// as version 0.
func (r *CartRepository) SaveIfVersion(ctx context.Context, cart domain.Cart, expectedVersion int) (domain.Cart, bool, error) {
	key := cartKey(cart.SessionID)
	var saved domain.Cart

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current := 0
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis get cart: %w", err)
		default:
			var stored domain.Cart
			if err := json.Unmarshal(data, &stored); err != nil {
				return fmt.Errorf("unmarshal cart: %w", err)
			}
			current = stored.Version
		}

		if current != expectedVersion {
			return redis.TxFailedErr
		}

		next := cart
		next.Version = expectedVersion + 1
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal cart: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		saved = next
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return domain.Cart{}, false, nil
	}
	if err != nil {
		return domain.Cart{}, false, fmt.Errorf("redis save cart: %w", err)
	}
	return saved, true, nil
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const checkoutKeyPrefix = "storefront:checkout:inflight:"

// releaseScript deletes the flag only if it still holds the caller's token,
// so a release after TTL expiry cannot clear a newer submission's flag.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CheckoutGuard implements repository.InFlightGuard with SET NX PX.
type CheckoutGuard struct {
	client *redis.Client
}

// NewCheckoutGuard creates a new Redis-backed in-flight checkout guard.
func NewCheckoutGuard(client *redis.Client) *CheckoutGuard {
	return &CheckoutGuard{client: client}
}

// Acquire sets the session's in-flight flag if it is free.
func (g *CheckoutGuard) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, checkoutKeyPrefix+sessionID, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx checkout flag: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release clears the session's flag if token still owns it.
func (g *CheckoutGuard) Release(ctx context.Context, sessionID, token string) error {
	if err := releaseScript.Run(ctx, g.client, []string{checkoutKeyPrefix + sessionID}, token).Err(); err != nil {
		return fmt.Errorf("redis release checkout flag: %w", err)
	}
	return nil
}

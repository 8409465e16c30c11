package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	eventKeyPrefix = "storefront:event:processed:"

	// DefaultEventRetention outlives any realistic redelivery window.
	DefaultEventRetention = 7 * 24 * time.Hour
)

// EventStore remembers consumed Kafka event ids so redeliveries are skipped.
type EventStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewEventStore creates a new Redis-backed processed-event store.
func NewEventStore(client *redis.Client, retention time.Duration) *EventStore {
	return &EventStore{client: client, retention: retention}
}

// Contains reports whether eventID has been recorded.
func (s *EventStore) Contains(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, eventKeyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists event: %w", err)
	}
	return n == 1, nil
}

// Add records eventID for the retention period.
func (s *EventStore) Add(ctx context.Context, eventID string) error {
	if err := s.client.Set(ctx, eventKeyPrefix+eventID, 1, s.retention).Err(); err != nil {
		return fmt.Errorf("redis set event: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingOrderPrefix = "pending_payment_order:"

// PendingOrderStore remembers the order a user is paying for, so the payment
// return flow can find it when the gateway redirect drops the order id.
type PendingOrderStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPendingOrderStore(client *redis.Client, ttl time.Duration) *PendingOrderStore {
	return &PendingOrderStore{client: client, ttl: ttl}
}

func (s *PendingOrderStore) Save(ctx context.Context, userID, orderID string) error {
	if err := s.client.Set(ctx, pendingOrderPrefix+userID, orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("save pending order for user %s: %w", userID, err)
	}
	return nil
}

// Get returns the pending order id, or "" if there is none.
func (s *PendingOrderStore) Get(ctx context.Context, userID string) (string, error) {
	orderID, err := s.client.Get(ctx, pendingOrderPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read pending order for user %s: %w", userID, err)
	}
	return orderID, nil
}

func (s *PendingOrderStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, pendingOrderPrefix+userID).Err(); err != nil {
		return fmt.Errorf("clear pending order for user %s: %w", userID, err)
	}
	return nil
}

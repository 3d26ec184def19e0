package cache

import (
	"context"
	"errors"
	"fmt"

	"careerguide/internal/model"

	"github.com/redis/go-redis/v9"
)

// UsageCounterStore keeps local usage counters in Redis. A counter lives for
// retentionMonths calendar months including its own, so stale months
// disappear without a sweep.
type UsageCounterStore struct {
	client          *redis.Client
	retentionMonths int
}

func NewUsageCounterStore(client *redis.Client, retentionMonths int) *UsageCounterStore {
	if retentionMonths < 1 {
		retentionMonths = 1
	}
	return &UsageCounterStore{client: client, retentionMonths: retentionMonths}
}

// expiresAt is the instant the counter for month stops being useful.
func (s *UsageCounterStore) expiresAt(month model.YearMonth) model.YearMonth {
	return month.AddMonths(s.retentionMonths)
}

func (s *UsageCounterStore) Increment(ctx context.Context, key model.CounterKey) (int, error) {
	k := key.StorageKey()
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireAt(ctx, k, s.expiresAt(key.Month).Start())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment usage counter %s: %w", k, err)
	}
	return int(incr.Val()), nil
}

func (s *UsageCounterStore) Get(ctx context.Context, key model.CounterKey) (int, error) {
	k := key.StorageKey()
	n, err := s.client.Get(ctx, k).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage counter %s: %w", k, err)
	}
	return n, nil
}

package usage

import (
	"context"

	"careerguide/internal/model"
)

// Store persists local usage counters. A missing counter reads as zero.
type Store interface {
	Increment(ctx context.Context, key model.CounterKey) (int, error)
	Get(ctx context.Context, key model.CounterKey) (int, error)
}

// Sweeper is implemented by stores that need explicit removal of old months.
// Stores with native expiry do not implement it.
type Sweeper interface {
	Sweep(ctx context.Context, before model.YearMonth) (int64, error)
}

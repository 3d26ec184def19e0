// Package usage keeps the optimistic, per-month local usage counters that
// approximate quota consumption between backend syncs. Nothing here is an
// access boundary; the backend's usage in the subscription snapshot is.
package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"careerguide/internal/metrics"
	"careerguide/internal/model"

	"github.com/rs/zerolog"
)

// ErrUnknownMeter is returned for features that carry no quota.
var ErrUnknownMeter = errors.New("unknown metered feature")

// Listener receives the recomputed estimate after every recorded use.
type Listener func(userID string, estimate model.LocalUsageEstimate)

// Tracker records and reports local usage estimates.
type Tracker struct {
	store  Store
	now    func() time.Time
	logger zerolog.Logger

	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
}

// NewTracker creates a tracker on top of store. now defaults to time.Now.
func NewTracker(store Store, now func() time.Time, logger zerolog.Logger) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		store:     store,
		now:       now,
		logger:    logger.With().Str("service", "UsageTracker").Logger(),
		listeners: make(map[uint64]Listener),
	}
}

func (t *Tracker) key(userID string, meter model.Meter) model.CounterKey {
	return model.CounterKey{UserID: userID, Feature: meter, Month: model.MonthOf(t.now())}
}

// RecordUsage increments the current month's counter for the user and meter
// and returns the recomputed estimate for tier.
func (t *Tracker) RecordUsage(ctx context.Context, userID string, meter model.Meter, tier model.Tier) (model.LocalUsageEstimate, error) {
	limit, ok := QuotaFor(tier, meter)
	if !ok {
		return model.LocalUsageEstimate{}, fmt.Errorf("%w: %s", ErrUnknownMeter, meter)
	}
	key := t.key(userID, meter)
	count, err := t.store.Increment(ctx, key)
	if err != nil {
		t.logger.Error().Err(err).Str("user_id", userID).Str("feature", string(meter)).Msg("Failed to record local usage")
		return model.LocalUsageEstimate{}, fmt.Errorf("record usage %s for user %s: %w", meter, userID, err)
	}
	metrics.UsageRecorded.WithLabelValues(string(meter)).Inc()

	est := estimate(meter, key.Month, count, limit)
	t.notify(userID, est)
	return est, nil
}

// CurrentUsage returns the estimate for the current month. A month with no
// counter reads as zero.
func (t *Tracker) CurrentUsage(ctx context.Context, userID string, meter model.Meter, tier model.Tier) (model.LocalUsageEstimate, error) {
	limit, ok := QuotaFor(tier, meter)
	if !ok {
		return model.LocalUsageEstimate{}, fmt.Errorf("%w: %s", ErrUnknownMeter, meter)
	}
	key := t.key(userID, meter)
	count, err := t.store.Get(ctx, key)
	if err != nil {
		return model.LocalUsageEstimate{}, fmt.Errorf("read usage %s for user %s: %w", meter, userID, err)
	}
	return estimate(meter, key.Month, count, limit), nil
}

// Summary returns the current estimate of every meter.
func (t *Tracker) Summary(ctx context.Context, userID string, tier model.Tier) ([]model.LocalUsageEstimate, error) {
	out := make([]model.LocalUsageEstimate, 0, len(Meters()))
	for _, m := range Meters() {
		est, err := t.CurrentUsage(ctx, userID, m, tier)
		if err != nil {
			return nil, err
		}
		out = append(out, est)
	}
	return out, nil
}

// Subscribe registers a listener and returns a function that removes it.
func (t *Tracker) Subscribe(l Listener) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = l
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.listeners, id)
			t.mu.Unlock()
		})
	}
}

func (t *Tracker) notify(userID string, est model.LocalUsageEstimate) {
	t.mu.RLock()
	ls := make([]Listener, 0, len(t.listeners))
	for _, l := range t.listeners {
		ls = append(ls, l)
	}
	t.mu.RUnlock()
	for _, l := range ls {
		l(userID, est)
	}
}

func estimate(meter model.Meter, month model.YearMonth, count, limit int) model.LocalUsageEstimate {
	return model.LocalUsageEstimate{
		Feature:   meter,
		Month:     month.String(),
		Count:     count,
		Limit:     limit,
		Remaining: model.Remaining(count, limit),
		Unlimited: limit == model.Unlimited,
	}
}

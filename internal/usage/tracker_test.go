package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"careerguide/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestTracker(store Store) (*Tracker, *clock) {
	c := &clock{now: time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)}
	return NewTracker(store, c.Now, zerolog.Nop()), c
}

func TestRecordUsage(t *testing.T) {
	tr, _ := newTestTracker(NewMemoryStore())
	ctx := context.Background()

	var last model.LocalUsageEstimate
	unsubscribe := tr.Subscribe(func(userID string, est model.LocalUsageEstimate) {
		assert.Equal(t, "user-1", userID)
		last = est
	})
	defer unsubscribe()

	for i := 1; i <= 6; i++ {
		est, err := tr.RecordUsage(ctx, "user-1", model.MeterAssessment, model.TierFree)
		require.NoError(t, err)
		assert.Equal(t, i, est.Count)
	}

	assert.Equal(t, 6, last.Count)
	assert.Equal(t, 5, last.Limit)
	assert.Equal(t, 0, last.Remaining, "remaining never goes negative")
	assert.Equal(t, "2026-03", last.Month)
}

func TestCurrentUsageMonthRollover(t *testing.T) {
	tr, c := newTestTracker(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := tr.RecordUsage(ctx, "user-1", model.MeterCareerView, model.TierFree)
		require.NoError(t, err)
	}
	est, err := tr.CurrentUsage(ctx, "user-1", model.MeterCareerView, model.TierFree)
	require.NoError(t, err)
	assert.Equal(t, 3, est.Count)

	c.now = c.now.AddDate(0, 1, 0)
	est, err = tr.CurrentUsage(ctx, "user-1", model.MeterCareerView, model.TierFree)
	require.NoError(t, err)
	assert.Equal(t, 0, est.Count)
	assert.Equal(t, "2026-04", est.Month)
}

func TestCurrentUsageLimitsByTier(t *testing.T) {
	tr, _ := newTestTracker(NewMemoryStore())
	ctx := context.Background()

	tests := []struct {
		tier      model.Tier
		limit     int
		unlimited bool
	}{
		{model.TierFree, 5, false},
		{model.TierBasic, 20, false},
		{model.TierPremium, model.Unlimited, true},
		{model.TierPro, model.Unlimited, true},
		{"gold", 5, false},
	}
	for _, tt := range tests {
		est, err := tr.CurrentUsage(ctx, "user-1", model.MeterAssessment, tt.tier)
		require.NoError(t, err)
		assert.Equal(t, tt.limit, est.Limit, "tier %s", tt.tier)
		assert.Equal(t, tt.unlimited, est.Unlimited, "tier %s", tt.tier)
	}
}

func TestUnknownMeter(t *testing.T) {
	tr, _ := newTestTracker(NewMemoryStore())
	_, err := tr.RecordUsage(context.Background(), "user-1", "horoscope", model.TierFree)
	assert.ErrorIs(t, err, ErrUnknownMeter)
	_, err = tr.CurrentUsage(context.Background(), "user-1", "horoscope", model.TierFree)
	assert.ErrorIs(t, err, ErrUnknownMeter)
}

type failingStore struct{}

func (failingStore) Increment(context.Context, model.CounterKey) (int, error) {
	return 0, errors.New("store down")
}

func (failingStore) Get(context.Context, model.CounterKey) (int, error) {
	return 0, errors.New("store down")
}

func TestStoreErrorsPropagate(t *testing.T) {
	tr, _ := newTestTracker(failingStore{})
	_, err := tr.RecordUsage(context.Background(), "user-1", model.MeterAssessment, model.TierFree)
	assert.ErrorContains(t, err, "store down")
	_, err = tr.Summary(context.Background(), "user-1", model.TierFree)
	assert.ErrorContains(t, err, "store down")
}

func TestSummary(t *testing.T) {
	tr, _ := newTestTracker(NewMemoryStore())
	_, err := tr.RecordUsage(context.Background(), "user-1", model.MeterRoadmapLevel, model.TierBasic)
	require.NoError(t, err)

	sum, err := tr.Summary(context.Background(), "user-1", model.TierBasic)
	require.NoError(t, err)
	require.Len(t, sum, 3)
	assert.Equal(t, model.MeterRoadmapLevel, sum[2].Feature)
	assert.Equal(t, 1, sum[2].Count)
	assert.Equal(t, 2, sum[2].Remaining)
}

func TestMemoryStoreSweep(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	march := model.YearMonth{Year: 2026, Month: time.March}
	for i := 0; i < 4; i++ {
		_, err := s.Increment(ctx, model.CounterKey{UserID: "u", Feature: model.MeterAssessment, Month: march.AddMonths(-i)})
		require.NoError(t, err)
	}

	removed, err := s.Sweep(ctx, march.AddMonths(-1))
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)
	assert.Equal(t, 2, s.Len())
}

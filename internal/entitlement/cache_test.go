package entitlement

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"careerguide/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingFetcher struct {
	calls atomic.Int32

	mu   sync.Mutex
	snap *model.SubscriptionSnapshot
	err  error
}

func (f *countingFetcher) FetchSnapshot(ctx context.Context) (*model.SubscriptionSnapshot, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.err
}

func (f *countingFetcher) set(snap *model.SubscriptionSnapshot, err error) {
	f.mu.Lock()
	f.snap, f.err = snap, err
	f.mu.Unlock()
}

func freeSnapshot() *model.SubscriptionSnapshot {
	return &model.SubscriptionSnapshot{
		PlanName: "Free",
		Status:   "active",
		Limits:   map[string]int{"assessment": 5},
		Usage: []model.ServerUsage{
			{Feature: model.MeterAssessment, CurrentUsage: 2, Limit: 5, Remaining: 3, Allowed: true},
		},
	}
}

func newTestCache(f Fetcher) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	return NewCache(f, WithClock(clock.Now)), clock
}

func TestCacheFreshnessWindow(t *testing.T) {
	f := &countingFetcher{snap: freeSnapshot()}
	c, clock := newTestCache(f)
	ctx := context.Background()

	require.NoError(t, c.Fetch(ctx, false))
	assert.EqualValues(t, 1, f.calls.Load())

	clock.Advance(29 * time.Second)
	require.NoError(t, c.Fetch(ctx, false))
	assert.EqualValues(t, 1, f.calls.Load(), "fresh snapshot must not hit the backend")

	clock.Advance(2 * time.Second)
	require.NoError(t, c.Fetch(ctx, false))
	assert.EqualValues(t, 2, f.calls.Load(), "stale snapshot must be refetched")
}

func TestCacheForceBypassesFreshness(t *testing.T) {
	f := &countingFetcher{snap: freeSnapshot()}
	c, _ := newTestCache(f)
	ctx := context.Background()

	require.NoError(t, c.Fetch(ctx, false))
	require.NoError(t, c.Fetch(ctx, true))
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestCacheSingleFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetcher := FetcherFunc(func(ctx context.Context) (*model.SubscriptionSnapshot, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		return freeSnapshot(), nil
	})
	c, _ := newTestCache(fetcher)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = c.Fetch(context.Background(), false)
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[1] = c.Fetch(context.Background(), false)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, "Free", c.State().Snapshot.PlanName)
}

func TestCacheSkipsFetchWhenAnotherLandsAfterStaleCheck(t *testing.T) {
	f := &countingFetcher{snap: freeSnapshot()}
	c, clock := newTestCache(f)
	ctx := context.Background()

	require.NoError(t, c.Fetch(ctx, false))
	clock.Advance(31 * time.Second)

	// A second caller completes its own fetch after this caller saw the
	// snapshot as stale but before it started a flight.
	var landed bool
	c.afterFreshnessCheck = func() {
		if landed {
			return
		}
		landed = true
		require.NoError(t, c.Fetch(ctx, true))
	}

	require.NoError(t, c.Fetch(ctx, false))
	assert.True(t, landed)
	assert.EqualValues(t, 2, f.calls.Load(), "the stale caller must reuse the fetch that just landed")
	assert.Equal(t, clock.Now(), c.State().FetchedAt)

	// Forced fetches still always go to the backend.
	c.afterFreshnessCheck = nil
	require.NoError(t, c.Fetch(ctx, true))
	assert.EqualValues(t, 3, f.calls.Load())
}

func TestCacheFailureKeepsPreviousSnapshot(t *testing.T) {
	f := &countingFetcher{snap: freeSnapshot()}
	c, _ := newTestCache(f)
	ctx := context.Background()

	require.NoError(t, c.Fetch(ctx, false))
	prev := c.State().Snapshot

	f.set(nil, errors.New("backend unavailable"))
	err := c.Fetch(ctx, true)
	require.Error(t, err)

	st := c.State()
	assert.Same(t, prev, st.Snapshot)
	assert.Equal(t, "backend unavailable", st.Err)

	f.set(freeSnapshot(), nil)
	require.NoError(t, c.Fetch(ctx, true))
	assert.Empty(t, c.State().Err)
}

func TestCacheInvalidate(t *testing.T) {
	f := &countingFetcher{snap: freeSnapshot()}
	c, _ := newTestCache(f)
	ctx := context.Background()

	require.NoError(t, c.Fetch(ctx, false))
	c.Invalidate()

	st := c.State()
	assert.Nil(t, st.Snapshot)
	assert.True(t, st.FetchedAt.IsZero())
	assert.Empty(t, st.Err)
	assert.Equal(t, model.TierFree, st.Tier())

	require.NoError(t, c.Fetch(ctx, false))
	assert.EqualValues(t, 2, f.calls.Load(), "fetch after invalidate must hit the backend")
}

func TestCacheInvalidateDuringFetchDiscardsResult(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var calls atomic.Int32
	fetcher := FetcherFunc(func(ctx context.Context) (*model.SubscriptionSnapshot, error) {
		if calls.Add(1) == 1 {
			entered <- struct{}{}
			<-release
			return freeSnapshot(), nil
		}
		return &model.SubscriptionSnapshot{PlanName: "Premium", IsPremium: true}, nil
	})
	c, _ := newTestCache(fetcher)

	done := make(chan error, 1)
	go func() { done <- c.Fetch(context.Background(), false) }()
	<-entered

	c.Invalidate()
	require.NoError(t, c.Fetch(context.Background(), false))
	assert.Equal(t, "Premium", c.State().Snapshot.PlanName)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "Premium", c.State().Snapshot.PlanName, "stale result must not overwrite newer state")
	assert.EqualValues(t, 2, calls.Load())
}

func TestCacheListeners(t *testing.T) {
	f := &countingFetcher{snap: freeSnapshot()}
	c, _ := newTestCache(f)

	var mu sync.Mutex
	var events []Event
	unsubscribe := c.Subscribe(func(ev Event, _ State) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	require.NoError(t, c.Fetch(context.Background(), false))
	f.set(nil, errors.New("boom"))
	_ = c.Fetch(context.Background(), true)
	c.Invalidate()

	unsubscribe()
	unsubscribe()
	_ = c.Fetch(context.Background(), true)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Event{
		EventFetchStart, EventFetchSuccess,
		EventFetchStart, EventFetchFailure,
		EventInvalidated,
	}, events)
}

func TestCacheDerivedPremium(t *testing.T) {
	f := &countingFetcher{snap: &model.SubscriptionSnapshot{PlanName: "Premium", IsPremium: false}}
	c, _ := newTestCache(f)

	require.NoError(t, c.Fetch(context.Background(), false))
	st := c.State()
	assert.True(t, st.IsPremium())
	assert.True(t, st.Plan.Disagree())
	assert.Equal(t, model.TierPremium, st.Tier())
	assert.True(t, st.HasFeature(FeatureFullReport))
}

func TestCacheSnapshotIsCopied(t *testing.T) {
	src := freeSnapshot()
	f := &countingFetcher{snap: src}
	c, _ := newTestCache(f)

	require.NoError(t, c.Fetch(context.Background(), false))
	src.Usage[0].CurrentUsage = 99
	src.Limits["assessment"] = 99

	st := c.State()
	assert.Equal(t, 2, st.Snapshot.Usage[0].CurrentUsage)
	assert.Equal(t, 5, st.Snapshot.Limits["assessment"])
}

func TestCacheCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	fetcher := FetcherFunc(func(ctx context.Context) (*model.SubscriptionSnapshot, error) {
		<-release
		return freeSnapshot(), nil
	})
	c, _ := newTestCache(fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Fetch(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	assert.Eventually(t, func() bool { return c.State().Snapshot != nil }, time.Second, 5*time.Millisecond,
		"in-flight fetch completes for other callers")
}

package entitlement

import (
	"context"
	"strconv"
	"sync"
	"time"

	"careerguide/internal/metrics"
	"careerguide/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultFreshness is how long a fetched snapshot is served without a network call.
const DefaultFreshness = 30 * time.Second

// Fetcher loads the current subscription snapshot from the backend.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (*model.SubscriptionSnapshot, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*model.SubscriptionSnapshot, error)

func (f FetcherFunc) FetchSnapshot(ctx context.Context) (*model.SubscriptionSnapshot, error) {
	return f(ctx)
}

// Event names a cache state transition.
type Event string

const (
	EventFetchStart   Event = "fetch_start"
	EventFetchSuccess Event = "fetch_success"
	EventFetchFailure Event = "fetch_failure"
	EventInvalidated  Event = "invalidated"
)

// State is a read-only view of the cache. Snapshot is shared by every reader
// and must not be modified.
type State struct {
	Snapshot  *model.SubscriptionSnapshot
	FetchedAt time.Time
	Loading   bool
	Err       string
	Plan      PlanSignals
}

// Tier is the plan tier derived from the snapshot (free when empty).
func (s State) Tier() model.Tier {
	return s.Plan.Tier
}

// IsPremium is true if either the server flag or the plan name says so.
func (s State) IsPremium() bool {
	return s.Plan.IsPremium()
}

// HasFeature checks the feature matrix for the state's tier.
func (s State) HasFeature(feature model.Feature) bool {
	return HasFeature(s.Tier(), feature)
}

// Listener is called after every cache transition.
type Listener func(Event, State)

// Option configures a Cache.
type Option func(*Cache)

// WithFreshness overrides DefaultFreshness.
func WithFreshness(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.freshness = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// Cache holds the last snapshot fetched for one user. It serves fresh
// snapshots from memory, collapses concurrent fetches into one backend call,
// and keeps the previous snapshot when a refresh fails.
type Cache struct {
	fetcher   Fetcher
	freshness time.Duration
	now       func() time.Time
	logger    zerolog.Logger
	group     singleflight.Group

	// afterFreshnessCheck runs between the freshness check and the flight.
	// Tests use it to land a fetch in that gap.
	afterFreshnessCheck func()

	mu         sync.RWMutex
	snapshot   *model.SubscriptionSnapshot
	fetchedAt  time.Time
	lastErr    string
	plan       PlanSignals
	inflight   int
	generation uint64
	listeners  map[uint64]Listener
	nextID     uint64
}

// NewCache creates an empty cache around fetcher.
func NewCache(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:   fetcher,
		freshness: DefaultFreshness,
		now:       time.Now,
		logger:    zerolog.Nop(),
		plan:      ResolvePlan(nil),
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current view of the cache.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

func (c *Cache) stateLocked() State {
	return State{
		Snapshot:  c.snapshot,
		FetchedAt: c.fetchedAt,
		Loading:   c.inflight > 0,
		Err:       c.lastErr,
		Plan:      c.plan,
	}
}

// Fetch refreshes the snapshot. Without force, a snapshot younger than the
// freshness window is kept and no call is made. Callers arriving while a
// fetch is in flight wait for that fetch instead of starting another.
// The returned error is also recorded in State.Err; the previous snapshot is
// kept on failure.
func (c *Cache) Fetch(ctx context.Context, force bool) error {
	c.mu.RLock()
	fresh := c.snapshot != nil && c.now().Sub(c.fetchedAt) < c.freshness
	gen := c.generation
	c.mu.RUnlock()

	if fresh && !force {
		metrics.EntitlementCacheHits.Inc()
		return nil
	}
	if c.afterFreshnessCheck != nil {
		c.afterFreshnessCheck()
	}

	// Keying by generation keeps callers after an Invalidate from joining a
	// fetch that started before it.
	key := "snapshot:" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// A flight for this generation may have finished since the check above.
		if !force && c.freshFor(gen) {
			metrics.EntitlementCacheHits.Inc()
			return nil, nil
		}
		return nil, c.load(context.WithoutCancel(ctx), gen)
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.EntitlementSharedFetches.Inc()
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) freshFor(gen uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return gen == c.generation && c.snapshot != nil && c.now().Sub(c.fetchedAt) < c.freshness
}

func (c *Cache) load(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	c.inflight++
	state := c.stateLocked()
	c.mu.Unlock()
	c.notify(EventFetchStart, state)

	snap, err := c.fetcher.FetchSnapshot(ctx)

	c.mu.Lock()
	c.inflight--
	if gen != c.generation {
		// Invalidated while in flight; the result belongs to the old generation.
		state = c.stateLocked()
		c.mu.Unlock()
		c.logger.Debug().Msg("Discarding entitlement fetch started before invalidation")
		return err
	}

	if err != nil {
		c.lastErr = err.Error()
		state = c.stateLocked()
		c.mu.Unlock()
		metrics.EntitlementFetches.WithLabelValues("failure").Inc()
		c.logger.Error().Err(err).Bool("has_previous", state.Snapshot != nil).Msg("Failed to fetch subscription snapshot")
		c.notify(EventFetchFailure, state)
		return err
	}

	stored := snap.Clone()
	if stored == nil {
		stored = &model.SubscriptionSnapshot{}
	}
	c.snapshot = stored
	c.fetchedAt = c.now()
	c.lastErr = ""
	c.plan = ResolvePlan(stored)
	state = c.stateLocked()
	c.mu.Unlock()

	metrics.EntitlementFetches.WithLabelValues("success").Inc()
	if state.Plan.Disagree() {
		metrics.PremiumSignalDisagreements.Inc()
		c.logger.Warn().
			Str("plan_name", stored.PlanName).
			Bool("premium_flag", state.Plan.FlagPremium).
			Bool("premium_by_name", state.Plan.NamePremium).
			Msg("Premium flag disagrees with plan name")
	}
	if !state.Plan.Recognized && stored.PlanName != "" {
		c.logger.Warn().Str("plan_name", stored.PlanName).Str("fallback_tier", string(state.Plan.Tier)).Msg("Unrecognised plan name")
	}
	c.notify(EventFetchSuccess, state)
	return nil
}

// Invalidate drops the snapshot, fetch time and error. The next Fetch always
// goes to the backend.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.snapshot = nil
	c.fetchedAt = time.Time{}
	c.lastErr = ""
	c.plan = ResolvePlan(nil)
	state := c.stateLocked()
	c.mu.Unlock()
	c.notify(EventInvalidated, state)
}

// Subscribe registers a listener and returns a function that removes it.
func (c *Cache) Subscribe(l Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Cache) notify(ev Event, state State) {
	c.mu.RLock()
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.mu.RUnlock()
	for _, l := range ls {
		l(ev, state)
	}
}

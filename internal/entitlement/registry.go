package entitlement

import (
	"context"
	"errors"
	"sync"

	"careerguide/internal/model"

	"github.com/rs/zerolog"
)

// ErrNoToken is returned by Refresh when the user has no known bearer token.
var ErrNoToken = errors.New("no bearer token known for user")

// SnapshotSource reads a user's subscription snapshot with their bearer token.
type SnapshotSource interface {
	GetUsage(ctx context.Context, token string) (*model.SubscriptionSnapshot, error)
}

type userEntry struct {
	cache *Cache

	mu    sync.RWMutex
	token string
}

func (e *userEntry) setToken(token string) {
	if token == "" {
		return
	}
	e.mu.Lock()
	e.token = token
	e.mu.Unlock()
}

func (e *userEntry) currentToken() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.token
}

// Registry owns one Cache per user.
type Registry struct {
	source SnapshotSource
	opts   []Option
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[string]*userEntry
}

// NewRegistry creates a registry whose caches read from source. opts are
// applied to every cache it creates.
func NewRegistry(source SnapshotSource, logger zerolog.Logger, opts ...Option) *Registry {
	return &Registry{
		source:  source,
		opts:    opts,
		logger:  logger.With().Str("service", "EntitlementRegistry").Logger(),
		entries: make(map[string]*userEntry),
	}
}

// For returns the user's cache, creating it on first use. A non-empty token
// replaces the one used for the user's future fetches.
func (r *Registry) For(userID, token string) *Cache {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userID]
	if !ok {
		entry = &userEntry{}
		fetcher := FetcherFunc(func(ctx context.Context) (*model.SubscriptionSnapshot, error) {
			return r.source.GetUsage(ctx, entry.currentToken())
		})
		opts := append([]Option{WithLogger(r.logger.With().Str("user_id", userID).Logger())}, r.opts...)
		entry.cache = NewCache(fetcher, opts...)
		r.entries[userID] = entry
	}
	entry.setToken(token)
	return entry.cache
}

// Lookup returns the user's cache without creating one.
func (r *Registry) Lookup(userID string) (*Cache, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return entry.cache, true
}

// Invalidate clears the user's cached snapshot, if any.
func (r *Registry) Invalidate(userID string) {
	if c, ok := r.Lookup(userID); ok {
		c.Invalidate()
	}
}

// Refresh invalidates the user's cache and fetches again with the last known
// token. Users without a cache are left alone.
func (r *Registry) Refresh(ctx context.Context, userID string) error {
	r.mu.Lock()
	entry, ok := r.entries[userID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	entry.cache.Invalidate()
	if entry.currentToken() == "" {
		return ErrNoToken
	}
	return entry.cache.Fetch(ctx, true)
}

// Forget drops the user's cache entirely, as on logout.
func (r *Registry) Forget(userID string) {
	r.mu.Lock()
	entry, ok := r.entries[userID]
	delete(r.entries, userID)
	r.mu.Unlock()
	if ok {
		entry.cache.Invalidate()
	}
}

// Len returns the number of users with a cache.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

package pubsub

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// LocalBus delivers events to subscribers in the same process. It is used
// when no GCP project is configured.
type LocalBus struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	nextID   int
	handlers map[int]chan Event
}

func NewLocalBus(logger zerolog.Logger) *LocalBus {
	return &LocalBus{
		logger:   logger.With().Str("service", "LocalBus").Logger(),
		handlers: make(map[int]chan Event),
	}
}

// Publish hands the event to every active receiver. A receiver whose buffer is
// full misses the event.
func (b *LocalBus) Publish(_ context.Context, event Event) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.handlers {
		select {
		case ch <- event:
		default:
			b.logger.Warn().Int("receiver", id).Str("event_id", event.ID).Msg("Receiver buffer full, dropping event")
		}
	}
	return event.ID, nil
}

// Receive runs handler for each published event until ctx is done.
func (b *LocalBus) Receive(ctx context.Context, handler Handler) error {
	ch := make(chan Event, 64)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-ch:
			if err := handler(ctx, event); err != nil {
				b.logger.Warn().Err(err).Str("event_id", event.ID).Msg("Signal handler failed")
			}
		}
	}
}

// Receivers reports how many Receive loops are attached.
func (b *LocalBus) Receivers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

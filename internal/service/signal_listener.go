package service

import (
	"context"
	"errors"

	"careerguide/internal/entitlement"
	"careerguide/internal/metrics"
	"careerguide/internal/pubsub"

	"github.com/rs/zerolog"
)

// SignalListener refreshes cached entitlements when another instance or a
// background worker reports a subscription change.
type SignalListener struct {
	subscriber pubsub.Subscriber
	registry   *entitlement.Registry
	instanceID string
	logger     zerolog.Logger
}

// NewSignalListener builds a listener for the instance identified by
// instanceID. Events stamped with that origin were already applied locally.
func NewSignalListener(subscriber pubsub.Subscriber, registry *entitlement.Registry, instanceID string, logger zerolog.Logger) *SignalListener {
	return &SignalListener{
		subscriber: subscriber,
		registry:   registry,
		instanceID: instanceID,
		logger:     logger.With().Str("service", "SignalListener").Logger(),
	}
}

// Run blocks until ctx is done.
func (l *SignalListener) Run(ctx context.Context) error {
	l.logger.Info().Msg("Listening for subscription signals")
	return l.subscriber.Receive(ctx, l.Handle)
}

// Handle invalidates and refetches the user's cache. Events this instance
// published and users it has never served are ignored.
func (l *SignalListener) Handle(ctx context.Context, event pubsub.Event) error {
	metrics.SignalsReceived.WithLabelValues(string(event.Type)).Inc()
	if event.FromOrigin(l.instanceID) {
		return nil
	}
	if _, ok := l.registry.Lookup(event.UserID); !ok {
		return nil
	}
	l.logger.Info().
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Str("user_id", event.UserID).
		Msg("Refreshing entitlements")

	err := l.registry.Refresh(ctx, event.UserID)
	if errors.Is(err, entitlement.ErrNoToken) {
		return nil
	}
	if err != nil {
		// The failure is recorded in the cache state; redelivery would not help.
		l.logger.Warn().Err(err).Str("user_id", event.UserID).Msg("Refetch after signal failed")
	}
	return nil
}

package pubsub

import (
	"context"
	"fmt"
	"time"

	"careerguide/internal/config"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// Publisher sends signal events to every gateway instance.
type Publisher interface {
	Publish(ctx context.Context, event Event) (string, error)
}

// Handler processes one received event. A returned error nacks the message.
type Handler func(ctx context.Context, event Event) error

// Subscriber delivers signal events until ctx is done.
type Subscriber interface {
	Receive(ctx context.Context, handler Handler) error
}

type originPublisher struct {
	next   Publisher
	origin string
}

// WithOrigin stamps every event that has no origin yet with instanceID before
// handing it to next. Listeners use the stamp to skip their own events.
func WithOrigin(next Publisher, instanceID string) Publisher {
	return &originPublisher{next: next, origin: instanceID}
}

func (p *originPublisher) Publish(ctx context.Context, event Event) (string, error) {
	if event.Origin == "" {
		event.Origin = p.origin
	}
	return p.next.Publish(ctx, event)
}

// PubSubPublisher is an implementation of Publisher using Google Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  string
}

// NewPublisher creates a new PubSubPublisher using the GCP project from config.
func NewPublisher(ctx context.Context, cfg *config.Config) (*PubSubPublisher, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PubSubPublisher{client: client, topic: cfg.PubSubSignalsTopic}, nil
}

func newClient(ctx context.Context, cfg *config.Config) (*pubsub.Client, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("failed to create Pub/Sub client: GCP project ID is not set")
	}
	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return client, nil
}

// Publish sends the event to the signals topic and returns the message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, event Event) (string, error) {
	payload, err := event.Encode()
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}
	t := p.client.Topic(p.topic)
	attrs := map[string]string{"type": string(event.Type)}
	if event.Origin != "" {
		attrs["origin"] = event.Origin
	}
	result := t.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: attrs,
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish message to topic %s: %w", p.topic, err)
	}
	return id, nil
}

func (p *PubSubPublisher) Close() error {
	return p.client.Close()
}

// subscriptionExpiry lets Pub/Sub reap subscriptions of instances that died
// without deleting their own. One day is the minimum Pub/Sub accepts.
const subscriptionExpiry = 24 * time.Hour

// PubSubSubscriber receives events on a subscription owned by one gateway
// instance, so every instance sees every signal.
type PubSubSubscriber struct {
	client       *pubsub.Client
	subscription string
	logger       zerolog.Logger
}

// SubscriptionName is the per-instance subscription derived from the
// configured prefix.
func SubscriptionName(cfg *config.Config, instanceID string) string {
	return fmt.Sprintf("%s-%s", cfg.PubSubSignalsSub, instanceID)
}

// NewSubscriber creates the instance's subscription on the signals topic.
// Close deletes it again.
func NewSubscriber(ctx context.Context, cfg *config.Config, instanceID string, logger zerolog.Logger) (*PubSubSubscriber, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("failed to create Pub/Sub subscriber: instance ID is not set")
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	name := SubscriptionName(cfg, instanceID)
	_, err = client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{
		Topic:            client.Topic(cfg.PubSubSignalsTopic),
		AckDeadline:      20 * time.Second,
		ExpirationPolicy: subscriptionExpiry,
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create subscription %s: %w", name, err)
	}
	l := logger.With().Str("service", "SignalSubscriber").Logger()
	l.Info().Str("subscription", name).Msg("Created instance signal subscription")
	return &PubSubSubscriber{
		client:       client,
		subscription: name,
		logger:       l,
	}, nil
}

// Receive blocks until ctx is done. Undecodable messages are acked and dropped.
func (s *PubSubSubscriber) Receive(ctx context.Context, handler Handler) error {
	sub := s.client.Subscription(s.subscription)
	err := sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		event, err := DecodeEvent(m.Data)
		if err != nil {
			s.logger.Error().Err(err).Str("message_id", m.ID).Msg("Dropping malformed signal")
			m.Ack()
			return
		}
		if err := handler(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("event_id", event.ID).Msg("Signal handler failed, nacking")
			m.Nack()
			return
		}
		m.Ack()
	})
	if err != nil {
		return fmt.Errorf("receive from subscription %s: %w", s.subscription, err)
	}
	return nil
}

// Close deletes the instance subscription and closes the client.
func (s *PubSubSubscriber) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.Subscription(s.subscription).Delete(ctx); err != nil {
		s.logger.Warn().Err(err).Str("subscription", s.subscription).Msg("Failed to delete instance subscription")
	}
	return s.client.Close()
}

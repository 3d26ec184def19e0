package pubsub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a cross-instance subscription signal.
type EventType string

const (
	// SubscriptionUpdated tells every gateway instance to drop and refetch a
	// user's entitlements.
	SubscriptionUpdated EventType = "subscription-updated"
	// PaymentSucceeded is emitted once an order reaches success.
	PaymentSucceeded EventType = "payment_success"
)

// Event is the payload carried on the signals topic.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	OrderID    string    `json:"order_id,omitempty"`
	Origin     string    `json:"origin,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewEvent(typ EventType, userID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

// FromOrigin reports whether the event was published by the given instance.
func (e Event) FromOrigin(instanceID string) bool {
	return instanceID != "" && e.Origin == instanceID
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode signal event: %w", err)
	}
	if e.UserID == "" {
		return Event{}, fmt.Errorf("decode signal event: missing user_id")
	}
	switch e.Type {
	case SubscriptionUpdated, PaymentSucceeded:
	default:
		return Event{}, fmt.Errorf("decode signal event: unknown type %q", e.Type)
	}
	return e, nil
}

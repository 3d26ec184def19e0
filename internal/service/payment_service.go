package service

import (
	"context"
	"errors"
	"time"

	"careerguide/internal/entitlement"
	"careerguide/internal/model"
	"careerguide/internal/payment"
	"careerguide/internal/pgmq"
	"careerguide/internal/pubsub"

	"github.com/rs/zerolog"
)

// PaymentWatchQueue hands pending orders to the background payment watcher.
type PaymentWatchQueue interface {
	EnqueuePaymentWatch(ctx context.Context, queue string, job pgmq.PaymentWatchJob) error
}

// PaymentService tracks pending orders and resolves the payment return flow.
type PaymentService interface {
	SetPending(ctx context.Context, userID, orderID string) error
	Return(ctx context.Context, userID, token, queryOrderID string) (model.PaymentOutcome, error)
	Forget(ctx context.Context, userID string) error
}

type paymentService struct {
	poller    *payment.Poller
	pending   payment.PendingOrders
	registry  *entitlement.Registry
	publisher pubsub.Publisher
	queue     PaymentWatchQueue
	queueName string
	logger    zerolog.Logger
}

// NewPaymentService creates a PaymentService. queue may be nil, in which case
// pending orders are only followed through the return flow.
func NewPaymentService(poller *payment.Poller, pending payment.PendingOrders, registry *entitlement.Registry, publisher pubsub.Publisher, queue PaymentWatchQueue, queueName string, logger zerolog.Logger) PaymentService {
	return &paymentService{
		poller:    poller,
		pending:   pending,
		registry:  registry,
		publisher: publisher,
		queue:     queue,
		queueName: queueName,
		logger:    logger.With().Str("service", "PaymentService").Logger(),
	}
}

func (s *paymentService) SetPending(ctx context.Context, userID, orderID string) error {
	if err := s.pending.Save(ctx, userID, orderID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to save pending order")
		return err
	}
	if s.queue != nil {
		job := pgmq.PaymentWatchJob{UserID: userID, OrderID: orderID, EnqueuedAt: time.Now().UTC()}
		if err := s.queue.EnqueuePaymentWatch(ctx, s.queueName, job); err != nil {
			// The return flow still covers the order.
			s.logger.Error().Err(err).Str("order_id", orderID).Msg("Failed to enqueue payment watch job")
		}
	}
	return nil
}

// Return resolves which order the user came back for and polls it to a
// terminal status. A missing order is reported as a failed outcome.
func (s *paymentService) Return(ctx context.Context, userID, token, queryOrderID string) (model.PaymentOutcome, error) {
	orderID, err := payment.ResolveOrder(ctx, userID, queryOrderID, s.pending)
	if errors.Is(err, payment.ErrMissingOrderContext) {
		s.logger.Warn().Str("user_id", userID).Msg("Payment return without order context")
		return model.PaymentOutcome{
			Status:  model.PaymentFailed,
			Message: "no payment order found, please start checkout again",
		}, nil
	}
	if err != nil {
		return model.PaymentOutcome{}, err
	}

	outcome, err := s.poller.Poll(ctx, token, orderID)
	if err != nil {
		return outcome, err
	}

	// A timed out order stays pending so a later return can pick it up again.
	if !outcome.TimedOut {
		if err := s.pending.Clear(ctx, userID); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to clear pending order")
		}
	}
	if outcome.Status == model.PaymentSuccess {
		s.onSuccess(ctx, userID, token, orderID)
	}
	return outcome, nil
}

func (s *paymentService) onSuccess(ctx context.Context, userID, token, orderID string) {
	s.registry.For(userID, token)
	if err := s.registry.Refresh(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to refresh entitlements after payment")
	}
	if s.publisher == nil {
		return
	}
	event := pubsub.NewEvent(pubsub.PaymentSucceeded, userID)
	event.OrderID = orderID
	if _, err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("Failed to publish payment_success")
	}
}

func (s *paymentService) Forget(ctx context.Context, userID string) error {
	return s.pending.Clear(ctx, userID)
}

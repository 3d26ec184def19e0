// Package paymentwatch follows pending payment orders from the pgmq queue so
// a payment that completes after the user left the return page still
// refreshes their entitlements.
package paymentwatch

import (
	"context"
	"time"

	"careerguide/internal/model"
	"careerguide/internal/pgmq"
	"careerguide/internal/pubsub"

	"github.com/rs/zerolog"
)

// Queue is the subset of the pgmq client the watcher needs.
type Queue interface {
	ReadWithPoll(ctx context.Context, queue string, visibilitySec, maxMessages, timeoutSec int) ([]*pgmq.Message, error)
	Delete(ctx context.Context, queue string, msgID int64) error
}

// Poller follows one order to a terminal status.
type Poller interface {
	Poll(ctx context.Context, token, orderID string) (model.PaymentOutcome, error)
}

// Options tune the watcher loop.
type Options struct {
	QueueName string
	// Token authenticates order status calls made on the users' behalf.
	Token string
	// VisibilitySec hides a message from other readers while it is polled.
	VisibilitySec int
	PollTimeoutSec int
	// MaxReads drops an order that timed out this many times.
	MaxReads int
}

func (o *Options) defaults() {
	if o.QueueName == "" {
		o.QueueName = "payment_watch_queue"
	}
	if o.VisibilitySec <= 0 {
		o.VisibilitySec = 180
	}
	if o.PollTimeoutSec <= 0 {
		o.PollTimeoutSec = 5
	}
	if o.MaxReads <= 0 {
		o.MaxReads = 10
	}
}

// Run starts the payment watch orchestrator.
func Run(ctx context.Context, logger zerolog.Logger, queue Queue, poller Poller, publisher pubsub.Publisher, opts Options) error {
	opts.defaults()
	logger.Info().Str("queue", opts.QueueName).Msg("Starting payment watch orchestrator")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down payment watch orchestrator")
			return nil
		default:
		}

		msgs, err := queue.ReadWithPoll(ctx, opts.QueueName, opts.VisibilitySec, 1, opts.PollTimeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Error reading payment watch queue")
			sleep(ctx, time.Second)
			continue
		}
		for _, msg := range msgs {
			handle(ctx, logger, queue, poller, publisher, opts, msg)
		}
	}
}

func handle(ctx context.Context, logger zerolog.Logger, queue Queue, poller Poller, publisher pubsub.Publisher, opts Options, msg *pgmq.Message) {
	log := logger.With().Int64("msg_id", msg.ID).Logger()

	job, err := pgmq.DecodePaymentWatchJob(msg)
	if err != nil {
		log.Error().Err(err).Msg("Dropping malformed payment watch job")
		deleteMsg(ctx, log, queue, opts.QueueName, msg.ID)
		return
	}
	log = log.With().Str("order_id", job.OrderID).Str("user_id", job.UserID).Logger()

	outcome, err := poller.Poll(ctx, opts.Token, job.OrderID)
	if err != nil {
		// Cancelled; the message becomes visible again after its timeout.
		log.Warn().Err(err).Msg("Payment watch interrupted")
		return
	}

	if outcome.TimedOut {
		if msg.ReadCt >= opts.MaxReads {
			log.Warn().Int("reads", msg.ReadCt).Msg("Giving up on payment order")
			deleteMsg(ctx, log, queue, opts.QueueName, msg.ID)
			return
		}
		log.Info().Int("reads", msg.ReadCt).Msg("Payment still pending, will retry")
		return
	}

	if outcome.Status == model.PaymentSuccess {
		event := pubsub.NewEvent(pubsub.PaymentSucceeded, job.UserID)
		event.OrderID = job.OrderID
		if _, err := publisher.Publish(ctx, event); err != nil {
			// Keep the message so the signal is retried.
			log.Error().Err(err).Msg("Failed to publish payment_success")
			return
		}
	}
	log.Info().Str("status", string(outcome.Status)).Msg("Payment order settled")
	deleteMsg(ctx, log, queue, opts.QueueName, msg.ID)
}

func deleteMsg(ctx context.Context, logger zerolog.Logger, queue Queue, name string, id int64) {
	if err := queue.Delete(ctx, name, id); err != nil {
		logger.Error().Err(err).Msg("Error deleting payment watch message")
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

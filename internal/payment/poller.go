// Package payment follows a payment order after the gateway hands the user
// back, until the backend reports a terminal status.
package payment

import (
	"context"
	"fmt"
	"time"

	"careerguide/internal/metrics"
	"careerguide/internal/model"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxAttempts = 60
	DefaultInterval    = 2 * time.Second
)

// StatusSource reads the current status of an order.
type StatusSource interface {
	GetOrderStatus(ctx context.Context, token, orderID string) (*model.OrderStatus, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller polls order status with a bounded attempt budget.
type Poller struct {
	source      StatusSource
	maxAttempts int
	interval    time.Duration
	sleep       SleepFunc
	logger      zerolog.Logger
}

type PollerOption func(*Poller)

func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithSleep replaces the wait between attempts. Tests use it to avoid real delays.
func WithSleep(fn SleepFunc) PollerOption {
	return func(p *Poller) { p.sleep = fn }
}

func NewPoller(source StatusSource, logger zerolog.Logger, opts ...PollerOption) *Poller {
	p := &Poller{
		source:      source,
		maxAttempts: DefaultMaxAttempts,
		interval:    DefaultInterval,
		sleep:       sleepContext,
		logger:      logger.With().Str("service", "PaymentPoller").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll asks for the order status until it is terminal or the attempt budget
// runs out. An exhausted budget yields a failed outcome with TimedOut set.
// Fetch errors use up an attempt. The only returned error is the context's.
func (p *Poller) Poll(ctx context.Context, token, orderID string) (model.PaymentOutcome, error) {
	outcome := model.PaymentOutcome{OrderID: orderID, Status: model.PaymentPending}
	log := p.logger.With().Str("order_id", orderID).Logger()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return outcome, fmt.Errorf("poll order %s: %w", orderID, err)
		}
		outcome.Attempts = attempt

		status, err := p.source.GetOrderStatus(ctx, token, orderID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return outcome, fmt.Errorf("poll order %s: %w", orderID, ctx.Err())
			}
			metrics.PaymentPolls.WithLabelValues("error").Inc()
			log.Warn().Err(err).Int("attempt", attempt).Msg("Order status fetch failed")
		default:
			metrics.PaymentPolls.WithLabelValues(string(status.Status)).Inc()
			if status.Status.Terminal() {
				outcome.Status = status.Status
				outcome.Message = status.Message
				log.Info().Str("status", string(status.Status)).Int("attempts", attempt).Msg("Order reached terminal status")
				return outcome, nil
			}
		}

		if attempt < p.maxAttempts {
			if err := p.sleep(ctx, p.interval); err != nil {
				return outcome, fmt.Errorf("poll order %s: %w", orderID, err)
			}
		}
	}

	log.Warn().Int("attempts", p.maxAttempts).Msg("Order status polling timed out")
	outcome.Status = model.PaymentFailed
	outcome.TimedOut = true
	outcome.Message = "payment status check timed out"
	return outcome, nil
}

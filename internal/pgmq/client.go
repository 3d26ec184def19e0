// Package pgmq is a thin client for Postgres message queues (pgmq), used to
// hand pending payment orders from the gateway to the payment watcher.
package pgmq

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Client wraps a Postgres DB for pgmq queue operations.
type Client struct {
	db *sql.DB
}

// New returns a new PGMQ client backed by the given DB connection.
func New(db *sql.DB) *Client {
	return &Client{db: db}
}

// Message represents a single pgmq message.
type Message struct {
	ID     int64 // message identifier
	ReadCt int   // times the message has been read
	Data   []byte
}

// PaymentWatchJob asks the watcher to follow one payment order to a terminal state.
type PaymentWatchJob struct {
	UserID     string    `json:"user_id"`
	OrderID    string    `json:"order_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// CreateQueue creates the queue if it does not exist.
func (c *Client) CreateQueue(ctx context.Context, queue string) error {
	if _, err := c.db.ExecContext(ctx, "SELECT pgmq.create($1)", queue); err != nil {
		return fmt.Errorf("pgmq create %s failed: %w", queue, err)
	}
	return nil
}

// Send pushes a JSON payload into the given queue.
func (c *Client) Send(ctx context.Context, queue string, payload []byte) error {
	query := "SELECT pgmq.send($1, $2::jsonb, 0)"
	if _, err := c.db.ExecContext(ctx, query, queue, string(payload)); err != nil {
		return fmt.Errorf("pgmq send failed: %w", err)
	}
	return nil
}

// EnqueuePaymentWatch sends a payment watch job.
func (c *Client) EnqueuePaymentWatch(ctx context.Context, queue string, job PaymentWatchJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal payment watch job: %w", err)
	}
	return c.Send(ctx, queue, payload)
}

// ReadWithPoll reads up to maxMessages from the queue, blocking up to timeoutSec
// seconds. Read messages stay invisible for visibilitySec seconds.
func (c *Client) ReadWithPoll(ctx context.Context, queue string, visibilitySec, maxMessages, timeoutSec int) ([]*Message, error) {
	query := "SELECT msg_id, read_ct, message FROM pgmq.read_with_poll($1, $2, $3, $4)"
	rows, err := c.db.QueryContext(ctx, query, queue, visibilitySec, maxMessages, timeoutSec)
	if err != nil {
		return nil, fmt.Errorf("pgmq read_with_poll failed: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ReadCt, &m.Data); err != nil {
			return nil, fmt.Errorf("pgmq read scan failed: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgmq read rows error: %w", err)
	}
	return msgs, nil
}

// Delete removes a message by ID from the specified queue.
func (c *Client) Delete(ctx context.Context, queue string, msgID int64) error {
	query := "SELECT pgmq.delete($1, $2::bigint)"
	if _, err := c.db.ExecContext(ctx, query, queue, msgID); err != nil {
		return fmt.Errorf("pgmq delete failed: %w", err)
	}
	return nil
}

// DecodePaymentWatchJob parses a message payload.
func DecodePaymentWatchJob(m *Message) (PaymentWatchJob, error) {
	var job PaymentWatchJob
	if err := json.Unmarshal(m.Data, &job); err != nil {
		return PaymentWatchJob{}, fmt.Errorf("decode payment watch job %d: %w", m.ID, err)
	}
	if job.OrderID == "" || job.UserID == "" {
		return PaymentWatchJob{}, fmt.Errorf("payment watch job %d is missing user_id or order_id", m.ID)
	}
	return job, nil
}

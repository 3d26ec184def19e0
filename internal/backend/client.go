// Package backend is the REST client for the career-guidance backend, which
// owns subscription state, access checks and payment orders.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"careerguide/internal/model"

	"github.com/rs/zerolog"
)

// Error is a non-2xx answer from the backend.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a backend error with the given status code.
func IsStatus(err error, code int) bool {
	var be *Error
	return errors.As(err, &be) && be.StatusCode == code
}

// Client talks to the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("service", "BackendClient").Logger(),
	}
}

type checkAccessRequest struct {
	FeatureType string `json:"feature_type"`
	Level       *int   `json:"level,omitempty"`
}

// GetUsage fetches the user's subscription snapshot.
func (c *Client) GetUsage(ctx context.Context, token string) (*model.SubscriptionSnapshot, error) {
	var snap model.SubscriptionSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/subscription/usage", token, nil, &snap); err != nil {
		return nil, fmt.Errorf("get subscription usage: %w", err)
	}
	return &snap, nil
}

// CheckAccess asks the backend whether the user may use feature right now.
func (c *Client) CheckAccess(ctx context.Context, token, feature string, level *int) (*model.RemoteAccessCheck, error) {
	var res model.RemoteAccessCheck
	body := checkAccessRequest{FeatureType: feature, Level: level}
	if err := c.do(ctx, http.MethodPost, "/api/subscription/check-access", token, body, &res); err != nil {
		return nil, fmt.Errorf("check access for %s: %w", feature, err)
	}
	return &res, nil
}

// GetOrderStatus fetches the current status of a payment order.
func (c *Client) GetOrderStatus(ctx context.Context, token, orderID string) (*model.OrderStatus, error) {
	var res model.OrderStatus
	path := "/api/payment/orders/" + url.PathEscape(orderID) + "/status"
	if err := c.do(ctx, http.MethodGet, path, token, nil, &res); err != nil {
		return nil, fmt.Errorf("get status of order %s: %w", orderID, err)
	}
	if res.OrderID == "" {
		res.OrderID = orderID
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

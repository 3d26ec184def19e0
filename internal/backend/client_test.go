package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"careerguide/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 2*time.Second, zerolog.Nop())
}

func TestGetUsage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/subscription/usage", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"plan_name": "Basic",
			"is_premium": false,
			"status": "active",
			"expires_at": "2026-11-01T00:00:00Z",
			"limits": {"assessment": 20, "career_view": -1},
			"usage": [{"feature": "assessment", "current_usage": 3, "limit": 20, "remaining": 17, "allowed": true}]
		}`))
	})

	snap, err := c.GetUsage(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "Basic", snap.PlanName)
	require.NotNil(t, snap.ExpiresAt)
	assert.Equal(t, -1, snap.Limits["career_view"])
	item, ok := snap.UsageFor(model.MeterAssessment)
	require.True(t, ok)
	assert.Equal(t, 17, item.Remaining)
}

func TestCheckAccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/subscription/check-access", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "roadmap_level", body["feature_type"])
		assert.EqualValues(t, 2, body["level"])
		_, _ = w.Write([]byte(`{"allowed": false, "reason": "upgrade_required", "current_usage": 1, "limit": 1}`))
	})

	level := 2
	res, err := c.CheckAccess(context.Background(), "tok", "roadmap_level", &level)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, "upgrade_required", res.Reason)
	require.NotNil(t, res.Limit)
	assert.Equal(t, 1, *res.Limit)
}

func TestGetOrderStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/payment/orders/ord%2F1/status", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"status": "success", "gateway": "vnpay"}`))
	})

	res, err := c.GetOrderStatus(context.Background(), "", "ord/1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSuccess, res.Status)
	assert.Equal(t, "ord/1", res.OrderID)
}

func TestErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	})

	_, err := c.GetUsage(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.False(t, IsStatus(err, http.StatusNotFound))
	assert.ErrorContains(t, err, "token expired")
}

func TestMalformedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})
	_, err := c.GetUsage(context.Background(), "tok")
	assert.ErrorContains(t, err, "decode response")
}

package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"careerguide/internal/config"
	"careerguide/internal/model"
	"careerguide/internal/usage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "router-secret"

func bearer(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func newGateway(t *testing.T) http.Handler {
	t.Helper()
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/subscription/usage":
			_, _ = w.Write([]byte(`{"plan_name":"Basic","is_premium":false,"status":"active","limits":{"assessment":20}}`))
		case strings.HasPrefix(r.URL.Path, "/api/payment/orders/"):
			_, _ = w.Write([]byte(`{"status":"success"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(backendSrv.Close)

	cfg := &config.Config{
		JWTSecret:               jwtSecret,
		BackendBaseURL:          backendSrv.URL,
		BackendTimeoutSec:       2,
		EntitlementFreshnessSec: 30,
		UsageStore:              "memory",
		UsageRetentionMonths:    3,
		UsageSweepIntervalMin:   60,
		PaymentPollMaxAttempts:  2,
		PaymentPollIntervalSec:  1,
		PaymentWatchQueueName:   "payment_watch_queue",
	}
	h, cleanup, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return h
}

func TestGatewayRoutes(t *testing.T) {
	h := newGateway(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/entitlements", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/entitlements", nil)
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "basic", body["tier"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/v1/payments/return?order_id=o1", nil)
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"success"`)
}

func TestUnknownUsageStore(t *testing.T) {
	cfg := &config.Config{JWTSecret: jwtSecret, BackendBaseURL: "http://localhost", UsageStore: "etcd"}
	_, _, err := New(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown USAGE_STORE")
}

func TestStartSweeperTrimsMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := usage.NewMemoryStore()
	old := model.MonthOf(time.Now()).AddMonths(-6)
	_, err := store.Increment(ctx, model.CounterKey{UserID: "u1", Feature: model.MeterAssessment, Month: old})
	require.NoError(t, err)
	_, err = store.Increment(ctx, model.CounterKey{UserID: "u1", Feature: model.MeterAssessment, Month: model.MonthOf(time.Now())})
	require.NoError(t, err)

	cfg := &config.Config{UsageRetentionMonths: 3, UsageSweepIntervalMin: 60}
	stop := startSweeper(store, cfg, zerolog.Nop())
	require.Eventually(t, func() bool { return store.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestStartSweeperReturnsOnBadInterval(t *testing.T) {
	cfg := &config.Config{UsageRetentionMonths: 3}
	stop := startSweeper(usage.NewMemoryStore(), cfg, zerolog.Nop())
	stop()
}

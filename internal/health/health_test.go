package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

func serve(t *testing.T, h *Handler) (int, Response) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var response Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return w.Code, response
}

func TestHealthHandler(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("catalog", NewSimpleChecker("catalog", func() error { return nil }))

	code, response := serve(t, handler)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusHealthy, response.Status)
	require.Equal(t, "v1.0.0", response.Version)
	require.Len(t, response.Checks, 1)
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("catalog", NewSimpleChecker("catalog", func() error {
		return errors.New("catalog is empty")
	}))

	code, response := serve(t, handler)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, StatusUnhealthy, response.Status)
	require.Equal(t, "catalog is empty", response.Checks["catalog"].Message)
}

func TestHealthHandler_DegradedStaysReady(t *testing.T) {
	repo := memory.NewOutboxRepository()
	for i := 0; i < 3; i++ {
		_, err := repo.Enqueue(domain.OutboxMessage{AggregateType: "desk"})
		require.NoError(t, err)
	}

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("outbox", NewOutboxBacklogChecker(repo, 2))

	code, response := serve(t, handler)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusDegraded, response.Status)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ready", w.Body.String())
}

func TestLivenessHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	w := httptest.NewRecorder()

	LivenessHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

func TestReadinessHandler_NotReady(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("test", NewSimpleChecker("test", func() error {
		return errors.New("not ready")
	}))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "not ready", w.Body.String())
}

func TestSimpleChecker(t *testing.T) {
	checker := NewSimpleChecker("test", func() error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	check := checker.Check()
	require.Equal(t, StatusHealthy, check.Status)
	require.GreaterOrEqual(t, check.DurationMs, int64(10))
}

func TestOutboxBacklogChecker(t *testing.T) {
	repo := memory.NewOutboxRepository()
	checker := NewOutboxBacklogChecker(repo, 1)

	check := checker.Check()
	require.Equal(t, StatusHealthy, check.Status)
	require.Equal(t, "0 pending events", check.Message)

	_, err := repo.Enqueue(domain.OutboxMessage{AggregateType: "desk"})
	require.NoError(t, err)
	_, err = repo.Enqueue(domain.OutboxMessage{AggregateType: "desk"})
	require.NoError(t, err)

	check = checker.Check()
	require.Equal(t, StatusDegraded, check.Status)
}

func TestGaugeChecker(t *testing.T) {
	active := 4
	handler := NewHandler("dev")
	handler.RegisterChecker("desks", NewGaugeChecker("desks", "active desks", func() int { return active }))
	handler.RegisterChecker("catalog", NewSimpleChecker("catalog", func() error { return nil }))

	require.Equal(t, []string{"catalog", "desks"}, handler.Names())

	_, response := serve(t, handler)
	require.Equal(t, "4 active desks", response.Checks["desks"].Message)
}

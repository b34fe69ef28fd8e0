package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthHandler_Liveness(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(zap.NewNop())
	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
}

func TestHealthHandler_ReadyAllPass(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(NewPingCheck("ollama", func(context.Context) error { return nil }))
	h.RegisterCheck(NewPingCheck("qdrant", func(context.Context) error { return nil }))

	w := httptest.NewRecorder()
	h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "pass", status.Checks["ollama"].Status)
	assert.Equal(t, "pass", status.Checks["qdrant"].Status)
}

func TestHealthHandler_ReadyFailingCheck(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(NewPingCheck("ollama", func(context.Context) error { return nil }))
	h.RegisterCheck(NewPingCheck("qdrant", func(context.Context) error {
		return errors.New("connection refused")
	}))

	w := httptest.NewRecorder()
	h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "pass", status.Checks["ollama"].Status)
	assert.Equal(t, "fail", status.Checks["qdrant"].Status)
	assert.Contains(t, status.Checks["qdrant"].Message, "connection refused")
}

func TestHealthHandler_Version(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(zap.NewNop())
	w := httptest.NewRecorder()
	h.HandleVersion("1.2.3", "2026-08-29", "abc1234")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "1.2.3", resp.Data["version"])
	assert.Equal(t, "abc1234", resp.Data["git_commit"])
}

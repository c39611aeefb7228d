package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func failing(context.Context) error { return errors.New("connection refused") }

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var response Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestHandler_Healthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", NewFuncChecker("storage", ok))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	require.Equal(t, StatusHealthy, response.Status)
	require.Equal(t, "v1.0.0", response.Version)
	require.Len(t, response.Checks, 1)
}

func TestHandler_Unhealthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", NewFuncChecker("storage", failing))
	handler.RegisterChecker("redis", NewOptionalChecker("redis", ok))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	response := decode(t, w)
	require.Equal(t, StatusUnhealthy, response.Status)
	require.Equal(t, "connection refused", response.Checks["storage"].Message)
}

func TestHandler_OptionalFailureDegrades(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("storage", NewFuncChecker("storage", ok))
	handler.RegisterChecker("redis", NewOptionalChecker("redis", failing))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, StatusDegraded, decode(t, w).Status)

	ready := httptest.NewRecorder()
	handler.ReadinessHandler(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, ready.Code)
}

func TestHandler_CheckTimeout(t *testing.T) {
	handler := NewHandler("dev")
	handler.timeout = 10 * time.Millisecond
	handler.RegisterChecker("slow", NewFuncChecker("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	response := handler.Evaluate(context.Background())
	require.Equal(t, StatusUnhealthy, response.Status)
	require.Equal(t, context.DeadlineExceeded.Error(), response.Checks["slow"].Message)
}

func TestReadinessHandler_NotReady(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("storage", NewFuncChecker("storage", failing))

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "not ready", w.Body.String())
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingChecker(t *testing.T) {
	check := NewPingChecker("postgres", pingerFunc(failing)).Check(context.Background())
	require.Equal(t, StatusUnhealthy, check.Status)
	require.Equal(t, "postgres", check.Name)
}

func TestLivenessHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

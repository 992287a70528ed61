package http

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixedCounter int

func (c fixedCounter) GetClientCount() int { return int(c) }

func newHealthRouter(h *HealthHandler) *chi.Mux {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestHealthHandler_Readiness(t *testing.T) {
	healthy := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		handler    *HealthHandler
		wantStatus int
		wantDB     string
		wantCache  string
	}{
		{"stateless mode", NewHealthHandler(nil, "test"), stdhttp.StatusOK, "skipped", "skipped"},
		{"database up", NewHealthHandler(healthy, "test"), stdhttp.StatusOK, "healthy", "skipped"},
		{"database down", NewHealthHandler(down, "test"), stdhttp.StatusServiceUnavailable, "unhealthy", "skipped"},
		{"cache down stays ready", NewHealthHandler(healthy, "test").WithCache(down), stdhttp.StatusOK, "healthy", "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(stdhttp.MethodGet, "/health/ready", nil)
			recorder := httptest.NewRecorder()
			newHealthRouter(tt.handler).ServeHTTP(recorder, req)

			require.Equal(t, tt.wantStatus, recorder.Code)
			var response HealthResponse
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
			assert.Equal(t, tt.wantDB, response.Checks["database"].Status)
			assert.Equal(t, tt.wantCache, response.Checks["cache"].Status)
		})
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	req := httptest.NewRequest(stdhttp.MethodGet, "/health/live", nil)
	recorder := httptest.NewRecorder()
	newHealthRouter(NewHealthHandler(nil, "test")).ServeHTTP(recorder, req)

	assert.Equal(t, stdhttp.StatusOK, recorder.Code)
}

func TestHealthHandler_DetailedReportsConnections(t *testing.T) {
	handler := NewHealthHandler(nil, "1.2.3").WithConnections(fixedCounter(3))

	req := httptest.NewRequest(stdhttp.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	newHealthRouter(handler).ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)
	var response struct {
		Status      string `json:"status"`
		Version     string `json:"version"`
		Connections int    `json:"websocket_connections"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, "1.2.3", response.Version)
	assert.Equal(t, 3, response.Connections)
}

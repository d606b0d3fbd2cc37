package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/config"
)

type staticProber bool

func (p staticProber) Probe(context.Context) bool { return bool(p) }

func testConfig() *config.Config {
	cfg := &config.Config{Version: "test-version", Env: "test"}
	cfg.Backend.Type = "memory"
	return cfg
}

func TestHealthHandler_Health(t *testing.T) {
	handler := NewHealthHandler(testConfig(), nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHealthHandler_Ping(t *testing.T) {
	handler := NewHealthHandler(testConfig(), nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test-version", resp.Version)
	assert.Equal(t, "querybridge", resp.Service)
	assert.Equal(t, "test", resp.Environment)
	assert.Equal(t, "memory", resp.Backend)
	assert.NotEmpty(t, resp.GoVersion)
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name   string
		prober Prober
		status int
		body   string
	}{
		{"healthy backend", staticProber(true), http.StatusOK, "ready"},
		{"failing backend", staticProber(false), http.StatusServiceUnavailable, "unavailable"},
		{"no prober", nil, http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			NewHealthHandler(testConfig(), tt.prober, zap.NewNop()).RegisterRoutes(mux)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.status, rec.Code)
			var resp ReadyResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.body, resp.Status)
		})
	}
}

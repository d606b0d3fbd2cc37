package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRequestLogger_LogsRequests(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	serve(handler, http.MethodPost, "/api/query")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "HTTP request", entry.Message)
	assert.Equal(t, zapcore.DebugLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/query", fields["path"])
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.NotContains(t, fields, "query_unimplemented")
}

func TestRequestLogger_ServerErrorsAtWarn(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	serve(handler, http.MethodGet, "/ready")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}

func TestRequestLogger_FlagsUnimplemented(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(unimplementedHeader, "true")
		w.WriteHeader(http.StatusOK)
	}))
	serve(handler, http.MethodPost, "/api/query")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, true, logs.All()[0].ContextMap()["query_unimplemented"])
}

func TestRequestLogger_NilLogger_PassesThrough(t *testing.T) {
	called := false
	handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	serve(handler, http.MethodGet, "/test")
	assert.True(t, called)
}

func TestRecoverer(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	handler := Recoverer(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := serve(handler, http.MethodGet, "/api/query")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Panic serving request", logs.All()[0].Message)
}

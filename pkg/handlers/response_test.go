package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/querybridge/pkg/query"
)

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		errorCode  string
		message    string
	}{
		{"bad request", http.StatusBadRequest, "invalid_request", "invalid input"},
		{"conflict", http.StatusConflict, "23505", "duplicate key"},
		{"internal error", http.StatusInternalServerError, "query_failed", "something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			require.NoError(t, ErrorResponse(w, tt.statusCode, tt.errorCode, tt.message))

			assert.Equal(t, tt.statusCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.errorCode, body["error"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: map[string]int{"n": 1}}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"n":1}}`, w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "unavailable"}))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWriteResult(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteResult(w, query.FromCount(3)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(UnimplementedHeader))
	assert.JSONEq(t, `{"success":true,"data":{"rows":[{"count":3}],"rowCount":1}}`, w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, WriteResult(w, query.Unimplemented()))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get(UnimplementedHeader))
	assert.JSONEq(t, `{"success":true,"data":{"rows":[],"rowCount":0,"unimplemented":true}}`, w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, WriteResult(w, nil))
	assert.JSONEq(t, `{"success":true,"data":{"rows":[],"rowCount":0}}`, w.Body.String())
}

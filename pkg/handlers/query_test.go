package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
	"github.com/ekaya-inc/querybridge/pkg/adapters/backend/memory"
	"github.com/ekaya-inc/querybridge/pkg/apperrors"
	"github.com/ekaya-inc/querybridge/pkg/query"
)

type resultEnvelope struct {
	Success bool         `json:"success"`
	Data    query.Result `json:"data"`
}

func newQueryMux(t *testing.T, gw QueryExecutor) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewQueryHandler(gw, zaptest.NewLogger(t)).RegisterRoutes(mux)
	return mux
}

func newMemoryGateway(t *testing.T) (*query.Gateway, *memory.Adapter) {
	t.Helper()
	mem := memory.NewAdapter(nil)
	return query.NewGateway(mem, zaptest.NewLogger(t)), mem
}

func post(mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestQueryHandler_Execute(t *testing.T) {
	gw, mem := newMemoryGateway(t)
	_, err := mem.Insert(context.Background(), "roles", backend.Record{"id": "r1", "name": "admin"}, nil)
	require.NoError(t, err)
	mux := newQueryMux(t, gw)

	rec := post(mux, "/api/query", `{"query":"SELECT * FROM roles WHERE name = $1","params":["admin"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(UnimplementedHeader))
	var resp resultEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Data.RowCount)
	assert.Equal(t, "r1", resp.Data.Rows[0]["id"])
}

func TestQueryHandler_ExecuteNotFoundIsEmptySuccess(t *testing.T) {
	gw, _ := newMemoryGateway(t)
	mux := newQueryMux(t, gw)

	rec := post(mux, "/api/query", `{"query":"SELECT * FROM users WHERE email = $1","params":["a@example.com"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"rows":[],"rowCount":0}}`, rec.Body.String())
}

func TestQueryHandler_ExecuteUnimplemented(t *testing.T) {
	gw, _ := newMemoryGateway(t)
	mux := newQueryMux(t, gw)

	rec := post(mux, "/api/query", `{"query":"DELETE FROM contracts WHERE id = $1","params":["k1"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(UnimplementedHeader))
	var resp resultEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Data.Unimplemented)
	assert.Equal(t, 0, resp.Data.RowCount)
}

func TestQueryHandler_ExecuteBadRequests(t *testing.T) {
	gw, _ := newMemoryGateway(t)
	mux := newQueryMux(t, gw)

	assert.Equal(t, http.StatusBadRequest, post(mux, "/api/query", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, post(mux, "/api/query", `{"params":[]}`).Code)

	rec := post(mux, "/api/query", `{"query":"INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3)","params":["only-name"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryHandler_Conflict(t *testing.T) {
	gw, _ := newMemoryGateway(t)
	mux := newQueryMux(t, gw)
	body := `{"query":"INSERT INTO roles (name) VALUES ($1)","params":["admin"]}`

	require.Equal(t, http.StatusOK, post(mux, "/api/query", body).Code)
	rec := post(mux, "/api/query", body)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, backend.CodeUniqueViolation, resp["error"])
}

func TestQueryHandler_ExecuteShape(t *testing.T) {
	gw, mem := newMemoryGateway(t)
	_, err := mem.Insert(context.Background(), "roles", backend.Record{"id": "r1", "name": "admin"}, nil)
	require.NoError(t, err)
	mux := newQueryMux(t, gw)

	rec := post(mux, "/api/shapes/roles_by_id", `{"params":["r1"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = post(mux, "/api/shapes/roles_by_name", `{"named":{"name":"admin"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp resultEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Data.RowCount)

	rec = post(mux, "/api/shapes/roles_all", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, post(mux, "/api/shapes/no_such_shape", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(mux, "/api/shapes/update_generic", `{"params":["x","y"]}`).Code)
}

func TestQueryHandler_ListShapes(t *testing.T) {
	gw, _ := newMemoryGateway(t)
	mux := newQueryMux(t, gw)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shapes", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []ShapeInfo `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Data, len(query.Rules()))
	assert.Equal(t, "users_by_reset_token", resp.Data[0].Name)
	assert.Equal(t, []string{"reset_token"}, resp.Data[0].Params)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("x: %w", apperrors.ErrBackendNotConfigured), http.StatusServiceUnavailable, "backend_not_configured"},
		{apperrors.ErrInvalidParams, http.StatusBadRequest, "invalid_params"},
		{backend.NewError(backend.CodeUniqueViolation, "users", "dup", nil), http.StatusConflict, "23505"},
		{backend.NewError(backend.CodeForeignKeyViolation, "contracts", "fk", nil), http.StatusUnprocessableEntity, "23503"},
		{backend.NewError(backend.CodeNotNullViolation, "contracts", "nn", nil), http.StatusUnprocessableEntity, "23502"},
		{backend.NewError(backend.CodeUnavailable, "", "down", nil), http.StatusServiceUnavailable, "08006"},
		{backend.NewError(backend.CodeInternal, "", "boom", nil), http.StatusInternalServerError, "XX000"},
		{fmt.Errorf("plain"), http.StatusInternalServerError, "query_failed"},
	}
	for _, tt := range tests {
		status, code := statusForError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestQueryHandler_BackendNotConfigured(t *testing.T) {
	mux := newQueryMux(t, query.NewGateway(nil, zaptest.NewLogger(t)))

	rec := post(mux, "/api/query", `{"query":"SELECT * FROM roles","params":[]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type capturingExecutor struct {
	params []any
	named  map[string]any
}

func (c *capturingExecutor) Execute(ctx context.Context, text string, params []any) (*query.Result, error) {
	c.params = params
	return query.Empty(), nil
}

func (c *capturingExecutor) ExecuteShape(ctx context.Context, shape query.Shape, params []any) (*query.Result, error) {
	c.params = params
	return query.Empty(), nil
}

func (c *capturingExecutor) ExecuteNamed(ctx context.Context, shape query.Shape, named map[string]any) (*query.Result, error) {
	c.named = named
	return query.Empty(), nil
}

func TestQueryHandler_ParamDecoding(t *testing.T) {
	exec := &capturingExecutor{}
	mux := newQueryMux(t, exec)

	rec := post(mux, "/api/query", `{"query":"SELECT 1","params":["a",1024,2.5,true,null]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"a", int64(1024), 2.5, true, nil}, exec.params)

	rec = post(mux, "/api/shapes/attachment_by_id", `{"named":{"id":7}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"id": int64(7)}, exec.named)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/apperrors"
	"github.com/ekaya-inc/querybridge/pkg/jsonutil"
	"github.com/ekaya-inc/querybridge/pkg/logging"
	"github.com/ekaya-inc/querybridge/pkg/query"
)

// QueryExecutor is the part of the query gateway the HTTP surface uses.
type QueryExecutor interface {
	Execute(ctx context.Context, text string, params []any) (*query.Result, error)
	ExecuteShape(ctx context.Context, shape query.Shape, params []any) (*query.Result, error)
	ExecuteNamed(ctx context.Context, shape query.Shape, named map[string]any) (*query.Result, error)
}

// ExecuteRequest for POST /api/query.
type ExecuteRequest struct {
	Query  string            `json:"query"`
	Params []json.RawMessage `json:"params"`
}

// ShapeRequest for POST /api/shapes/{shape}. Named wins over Params when set.
type ShapeRequest struct {
	Params []json.RawMessage          `json:"params,omitempty"`
	Named  map[string]json.RawMessage `json:"named,omitempty"`
}

// ShapeInfo describes one recognized shape.
type ShapeInfo struct {
	Name    string   `json:"name"`
	Intent  string   `json:"intent"`
	Table   string   `json:"table,omitempty"`
	Params  []string `json:"params,omitempty"`
	Example string   `json:"example"`
}

// QueryHandler exposes the query gateway over HTTP.
type QueryHandler struct {
	gateway QueryExecutor
	logger  *zap.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(gateway QueryExecutor, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{gateway: gateway, logger: logger}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.Execute)
	mux.HandleFunc("GET /api/shapes", h.ListShapes)
	mux.HandleFunc("POST /api/shapes/{shape}", h.ExecuteShape)
}

// Execute handles POST /api/query
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid_request", "Invalid request body")
		return
	}
	if req.Query == "" {
		h.badRequest(w, "invalid_request", "query is required")
		return
	}

	params, err := jsonutil.Params(req.Params)
	if err != nil {
		h.badRequest(w, "invalid_params", err.Error())
		return
	}

	result, err := h.gateway.Execute(r.Context(), req.Query, params)
	if err != nil {
		h.writeQueryError(w, err, zap.String("query", logging.SanitizeQuery(req.Query)))
		return
	}
	h.writeResult(w, result)
}

// ExecuteShape handles POST /api/shapes/{shape}
func (h *QueryHandler) ExecuteShape(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("shape")
	shape, ok := query.ParseShape(name)
	if !ok {
		if err := ErrorResponse(w, http.StatusNotFound, "unknown_shape", "Unknown shape: "+name); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req ShapeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.badRequest(w, "invalid_request", "Invalid request body")
			return
		}
	}

	params, err := jsonutil.Params(req.Params)
	if err != nil {
		h.badRequest(w, "invalid_params", err.Error())
		return
	}
	named, err := jsonutil.NamedParams(req.Named)
	if err != nil {
		h.badRequest(w, "invalid_params", err.Error())
		return
	}

	var result *query.Result
	if named != nil {
		result, err = h.gateway.ExecuteNamed(r.Context(), shape, named)
	} else {
		result, err = h.gateway.ExecuteShape(r.Context(), shape, params)
	}
	if err != nil {
		h.writeQueryError(w, err, zap.String("shape", name))
		return
	}
	h.writeResult(w, result)
}

// ListShapes handles GET /api/shapes
func (h *QueryHandler) ListShapes(w http.ResponseWriter, r *http.Request) {
	rules := query.Rules()
	shapes := make([]ShapeInfo, 0, len(rules))
	for _, rule := range rules {
		shapes = append(shapes, ShapeInfo{
			Name:    rule.Shape.String(),
			Intent:  rule.Intent.String(),
			Table:   rule.Table,
			Params:  rule.Params,
			Example: rule.Example,
		})
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: shapes}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *QueryHandler) writeResult(w http.ResponseWriter, result *query.Result) {
	if err := WriteResult(w, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *QueryHandler) badRequest(w http.ResponseWriter, code, message string) {
	if err := ErrorResponse(w, http.StatusBadRequest, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeQueryError maps a gateway error to an HTTP status. Backend codes are
// kept in the error field so clients can branch on them.
func (h *QueryHandler) writeQueryError(w http.ResponseWriter, err error, fields ...zap.Field) {
	status, code := statusForError(err)

	logFields := append(fields, zap.Int("status", status), zap.String("code", code), zap.Error(err))
	if status >= http.StatusInternalServerError {
		h.logger.Error("Query failed", logFields...)
	} else {
		h.logger.Debug("Query rejected", logFields...)
	}

	if err := ErrorResponse(w, status, code, logging.SanitizeError(err)); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrBackendNotConfigured):
		return http.StatusServiceUnavailable, "backend_not_configured"
	case errors.Is(err, apperrors.ErrInvalidParams):
		return http.StatusBadRequest, "invalid_params"
	case query.IsUniqueViolation(err):
		return http.StatusConflict, query.Code(err)
	case query.IsConstraintViolation(err):
		return http.StatusUnprocessableEntity, query.Code(err)
	case query.IsUnavailable(err):
		return http.StatusServiceUnavailable, query.Code(err)
	case query.IsBackendError(err):
		return http.StatusInternalServerError, query.Code(err)
	default:
		return http.StatusInternalServerError, "query_failed"
	}
}

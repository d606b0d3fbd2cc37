package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ekaya-inc/querybridge/pkg/query"
)

// UnimplementedHeader is set on successful responses for statements no
// handler covers.
const UnimplementedHeader = "X-Query-Unimplemented"

// ApiResponse is the envelope for successful JSON responses.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorBody is the JSON body of every error response. Error holds either a
// request-level code (invalid_request, invalid_params) or the backend's
// relational code so clients can branch on it.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(ErrorBody{Error: errorCode, Message: message})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteResult writes a query result as a 200 success. A result for a statement
// no handler covers is still a success; it is flagged through
// UnimplementedHeader instead of the status code.
func WriteResult(w http.ResponseWriter, result *query.Result) error {
	if result == nil {
		result = query.Empty()
	}
	if result.Unimplemented {
		w.Header().Set(UnimplementedHeader, "true")
	}
	return WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result})
}

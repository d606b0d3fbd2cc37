package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
)

// mapError translates a driver error into a *backend.Error, keeping the
// driver error reachable through Unwrap.
func mapError(table, op string, err error) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf("mongodb %s failed: %v", op, err)

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return backend.NewError(backend.CodeNoRows, table, "no rows returned for single-record fetch", err)
	case mongo.IsDuplicateKeyError(err):
		return backend.NewError(backend.CodeUniqueViolation, table, message, err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, mongo.ErrClientDisconnected):
		return backend.NewError(backend.CodeUnavailable, table, message, err)
	default:
		return backend.NewError(backend.CodeInternal, table, message, err)
	}
}

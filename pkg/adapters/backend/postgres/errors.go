package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
)

// mapError translates a pgx error into a *backend.Error. PostgreSQL errors
// keep their SQLSTATE, which already is the relational vocabulary.
func mapError(table, op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return backend.NewError(backend.CodeNoRows, table, "no rows returned for single-record fetch", err)
	case errors.As(err, &pgErr):
		return backend.NewError(pgErr.Code, table, pgErr.Message, err)
	case pgconn.Timeout(err), errors.Is(err, context.DeadlineExceeded), isConnectError(err):
		return backend.NewError(backend.CodeUnavailable, table, fmt.Sprintf("postgres %s failed: %v", op, err), err)
	default:
		return backend.NewError(backend.CodeInternal, table, fmt.Sprintf("postgres %s failed: %v", op, err), err)
	}
}

func isConnectError(err error) bool {
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

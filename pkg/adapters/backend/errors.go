package backend

import (
	"errors"
	"fmt"

	"github.com/ekaya-inc/querybridge/pkg/apperrors"
)

// Relational error codes carried by *Error. Adapters translate their native
// failures into these so upstream code keeps a single vocabulary.
const (
	// CodeNoRows is reported when a single-record fetch or keyed update
	// matched nothing.
	CodeNoRows              = "PGRST116"
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNotNullViolation    = "23502"
	CodeUnavailable         = "08006"
	CodeInternal            = "XX000"
)

// Error is a backend failure with a machine-readable code. Err is the
// driver-native error and is reachable through errors.Unwrap.
type Error struct {
	Code    string
	Message string
	Table   string
	Err     error
}

func (e *Error) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s (code %s, table %s)", e.Message, e.Code, e.Table)
	}
	return fmt.Sprintf("%s (code %s)", e.Message, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets callers test backend failures against the application sentinels:
// CodeNoRows matches apperrors.ErrNotFound and CodeUniqueViolation matches
// apperrors.ErrConflict.
func (e *Error) Is(target error) bool {
	switch target {
	case apperrors.ErrNotFound:
		return e.Code == CodeNoRows
	case apperrors.ErrConflict:
		return e.Code == CodeUniqueViolation
	default:
		return false
	}
}

// NewError builds an *Error wrapping cause.
func NewError(code, table, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Table: table, Err: cause}
}

// NoRows returns the error adapters report for an empty single-record fetch.
func NoRows(table string) *Error {
	return &Error{Code: CodeNoRows, Message: "no rows returned for single-record fetch", Table: table}
}

// ErrorCode returns the code of the first *Error in err's chain, or "".
func ErrorCode(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

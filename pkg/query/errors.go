package query

import (
	"errors"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
	"github.com/ekaya-inc/querybridge/pkg/apperrors"
)

// Disposition is what a handler does with a backend error.
type Disposition int

const (
	// PassThrough propagates the error unchanged.
	PassThrough Disposition = iota
	// NotFoundAsEmpty turns the error into a successful empty result.
	NotFoundAsEmpty
)

// MapError decides how a backend error is surfaced. Only a single-record
// fetch or keyed update that matched nothing is absorbed.
func MapError(err error) Disposition {
	if Code(err) == backend.CodeNoRows {
		return NotFoundAsEmpty
	}
	return PassThrough
}

// Code returns the relational error code carried by err, or "".
func Code(err error) string {
	return backend.ErrorCode(err)
}

// IsUniqueViolation reports whether err is a duplicate key failure.
func IsUniqueViolation(err error) bool {
	return errors.Is(err, apperrors.ErrConflict)
}

// IsUnavailable reports whether err means the backend could not be reached.
func IsUnavailable(err error) bool {
	return Code(err) == backend.CodeUnavailable
}

// IsConstraintViolation reports whether err is a foreign key or not-null
// failure caused by the submitted values.
func IsConstraintViolation(err error) bool {
	code := Code(err)
	return code == backend.CodeForeignKeyViolation || code == backend.CodeNotNullViolation
}

// IsBackendError reports whether err came from the backend rather than from
// the query layer itself.
func IsBackendError(err error) bool {
	var be *backend.Error
	return errors.As(err, &be)
}

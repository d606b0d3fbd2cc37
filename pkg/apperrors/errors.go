package apperrors

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrBackendNotConfigured = errors.New("query backend is not configured")
	ErrUnknownBackend       = errors.New("unknown backend type")
	ErrInvalidParams        = errors.New("invalid query parameters")
	ErrMaintenanceLockHeld  = errors.New("maintenance lock held by another instance")
)

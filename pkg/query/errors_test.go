package query

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
)

func TestMapError(t *testing.T) {
	assert.Equal(t, NotFoundAsEmpty, MapError(backend.NoRows("users")))
	assert.Equal(t, NotFoundAsEmpty, MapError(fmt.Errorf("wrapped: %w", backend.NoRows("users"))))
	assert.Equal(t, PassThrough, MapError(backend.NewError(backend.CodeUniqueViolation, "users", "dup", nil)))
	assert.Equal(t, PassThrough, MapError(errors.New("boom")))
}

func TestErrorHelpers(t *testing.T) {
	dup := backend.NewError(backend.CodeUniqueViolation, "users", "dup", nil)
	fk := backend.NewError(backend.CodeForeignKeyViolation, "contracts", "fk", nil)
	down := backend.NewError(backend.CodeUnavailable, "", "down", nil)

	assert.True(t, IsUniqueViolation(dup))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsConstraintViolation(fk))
	assert.True(t, IsUnavailable(down))
	assert.True(t, IsBackendError(down))
	assert.False(t, IsBackendError(errors.New("plain")))
	assert.Equal(t, backend.CodeUniqueViolation, Code(dup))
	assert.Equal(t, "", Code(nil))
}

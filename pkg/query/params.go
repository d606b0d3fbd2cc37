package query

import (
	"strings"
	"time"
)

// Params are the positional values of a statement. Reading past the end
// yields nil: a shape never assumes more params than it was given.
type Params []any

// At returns the i-th param or nil.
func (p Params) At(i int) any {
	if i < 0 || i >= len(p) {
		return nil
	}
	return p[i]
}

// Has reports whether the i-th param is present and non-nil.
func (p Params) Has(i int) bool {
	return p.At(i) != nil
}

// Last returns the final param or nil.
func (p Params) Last() any {
	return p.At(len(p) - 1)
}

// timestampColumns hold instants. String values bound to them are parsed so
// backends compare and store real timestamps.
var timestampColumns = map[string]bool{
	"created_at":          true,
	"updated_at":          true,
	"reset_token_expires": true,
	"start_date":          true,
	"end_date":            true,
	"now":                 true,
}

// auditColumns are stamped by the query layer and never take a param.
var auditColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

// bindValue converts v for storage in or comparison against column.
func bindValue(column string, v any) any {
	s, ok := v.(string)
	if !ok || !timestampColumns[column] {
		if t, ok := v.(time.Time); ok {
			return t.UTC()
		}
		return v
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return v
}

// positional converts named values to params in the order of names.
func positional(names []string, named map[string]any) Params {
	out := make(Params, len(names))
	for i, name := range names {
		out[i] = named[name]
	}
	return out
}

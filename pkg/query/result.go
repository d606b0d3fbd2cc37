package query

import "github.com/ekaya-inc/querybridge/pkg/adapters/backend"

// Row is one result row keyed by column name.
type Row map[string]any

// Result is the uniform outcome of every executed statement.
type Result struct {
	Rows     []Row `json:"rows" yaml:"rows"`
	RowCount int   `json:"rowCount" yaml:"rowCount"`
	// Unimplemented marks a zero-effect success for a statement that was not
	// executed because no handler covers it. Callers that need to tell "nothing
	// found" from "not supported" check this flag.
	Unimplemented bool `json:"unimplemented,omitempty" yaml:"unimplemented,omitempty"`
}

// Flattening copies Field of the nested object stored under From into a
// top-level To column and removes From. A nil or missing nested object yields
// a nil To value.
type Flattening struct {
	From  string
	Field string
	To    string
}

// Empty is a successful result with no rows.
func Empty() *Result {
	return &Result{Rows: []Row{}}
}

// Unimplemented is the zero-effect success returned for statements no
// handler covers.
func Unimplemented() *Result {
	return &Result{Rows: []Row{}, Unimplemented: true}
}

// FromRecord wraps a single record; a nil record yields no rows.
func FromRecord(rec backend.Record) *Result {
	if rec == nil {
		return Empty()
	}
	return &Result{Rows: []Row{Row(rec)}, RowCount: 1}
}

// FromRecords wraps a record list.
func FromRecords(recs []backend.Record) *Result {
	rows := make([]Row, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, Row(rec))
	}
	return &Result{Rows: rows, RowCount: len(rows)}
}

// FromCount wraps a count as a single {count: n} row.
func FromCount(n int64) *Result {
	return &Result{Rows: []Row{{"count": n}}, RowCount: 1}
}

// Flatten applies flattenings to every row in place and returns r.
func (r *Result) Flatten(flattenings []Flattening) *Result {
	Flatten(r.Rows, flattenings)
	return r
}

// Flatten applies flattenings to rows in place.
func Flatten(rows []Row, flattenings []Flattening) {
	for _, row := range rows {
		for _, f := range flattenings {
			row[f.To] = nestedField(row[f.From], f.Field)
		}
		for _, f := range flattenings {
			delete(row, f.From)
		}
	}
}

func nestedField(v any, field string) any {
	switch nested := v.(type) {
	case backend.Record:
		return nested[field]
	case map[string]any:
		return nested[field]
	case Row:
		return nested[field]
	default:
		return nil
	}
}

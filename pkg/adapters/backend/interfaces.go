package backend

import "context"

// Record is a single row as returned by a backend. Embedded relations appear
// as nested Record values (or nil) under the embed alias.
type Record map[string]any

// FilterOp is the comparison applied by a Filter.
type FilterOp int

const (
	OpEq FilterOp = iota
	OpGt
	OpLt
	OpIsNull
)

func (o FilterOp) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpGt:
		return "gt"
	case OpLt:
		return "lt"
	case OpIsNull:
		return "is_null"
	default:
		return "unknown"
	}
}

// Filter restricts a fetch to records whose Column satisfies Op against Value.
// Value is ignored for OpIsNull.
type Filter struct {
	Column string
	Op     FilterOp
	Value  any
}

// Eq is shorthand for an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// Embed requests a to-one relation to be embedded into each fetched record.
// The related record is looked up in Table where ForeignKey equals the
// fetched record's LocalKey, and is stored under As restricted to Fields.
// A missing relation is stored as nil, never omitted.
type Embed struct {
	Table      string
	LocalKey   string
	ForeignKey string
	As         string
	Fields     []string
}

// FetchOptions controls a read.
type FetchOptions struct {
	Filters []Filter
	// OrderBy sorts ascending by the named column. Empty means backend order.
	OrderBy string
	// Limit caps the number of records. Zero means unlimited.
	Limit int
	// Columns restricts the returned top-level fields. Empty means all.
	Columns []string
	Embeds  []Embed
}

// Backend is the table/document API the query layer executes against.
// Implementations must be safe for concurrent use; the query layer adds no
// locking of its own.
type Backend interface {
	// FetchOne returns the single record matching opts. When nothing matches it
	// returns an *Error with CodeNoRows.
	FetchOne(ctx context.Context, table string, opts FetchOptions) (Record, error)

	// FetchMany returns every record matching opts. An empty slice is not an error.
	FetchMany(ctx context.Context, table string, opts FetchOptions) ([]Record, error)

	// Count returns the number of records matching filters.
	Count(ctx context.Context, table string, filters []Filter) (int64, error)

	// Insert stores rec and returns the stored record restricted to returning
	// (all fields when returning is empty).
	Insert(ctx context.Context, table string, rec Record, returning []string) (Record, error)

	// UpdateByKey applies changes to the record matching key and returns the
	// updated record. When no record matches it returns an *Error with CodeNoRows.
	UpdateByKey(ctx context.Context, table string, key Filter, changes Record, returning []string) (Record, error)

	// Ping performs a connectivity check.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

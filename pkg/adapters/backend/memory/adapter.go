package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
)

// DefaultUniqueColumns mirrors the unique constraints of the production schema.
var DefaultUniqueColumns = map[string][]string{
	"users": {"email"},
	"roles": {"name"},
}

// Adapter is an in-process Backend. Tables are created on first write.
type Adapter struct {
	mu      sync.RWMutex
	tables  map[string]*table
	uniques map[string][]string
	closed  bool
}

type table struct {
	order []string
	rows  map[string]backend.Record
}

// NewAdapter creates an empty in-memory backend enforcing the given unique
// columns per table. A nil map uses DefaultUniqueColumns.
func NewAdapter(uniques map[string][]string) *Adapter {
	if uniques == nil {
		uniques = DefaultUniqueColumns
	}
	return &Adapter{
		tables:  make(map[string]*table),
		uniques: uniques,
	}
}

func (a *Adapter) tableFor(name string) *table {
	t, ok := a.tables[name]
	if !ok {
		t = &table{rows: make(map[string]backend.Record)}
		a.tables[name] = t
	}
	return t
}

func (a *Adapter) checkOpen(tableName string) error {
	if a.closed {
		return backend.NewError(backend.CodeUnavailable, tableName, "memory backend is closed", nil)
	}
	return nil
}

// FetchOne implements backend.Backend.
func (a *Adapter) FetchOne(ctx context.Context, tableName string, opts backend.FetchOptions) (backend.Record, error) {
	opts.Limit = 0
	recs, err := a.FetchMany(ctx, tableName, opts)
	if err != nil {
		return nil, err
	}
	switch len(recs) {
	case 0:
		return nil, backend.NoRows(tableName)
	case 1:
		return recs[0], nil
	default:
		return nil, backend.NewError(backend.CodeNoRows, tableName,
			fmt.Sprintf("single-record fetch matched %d rows", len(recs)), nil)
	}
}

// FetchMany implements backend.Backend.
func (a *Adapter) FetchMany(ctx context.Context, tableName string, opts backend.FetchOptions) ([]backend.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, backend.NewError(backend.CodeUnavailable, tableName, "context done", err)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := a.checkOpen(tableName); err != nil {
		return nil, err
	}

	matched := a.match(tableName, opts.Filters)
	if opts.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			return less(matched[i][opts.OrderBy], matched[j][opts.OrderBy])
		})
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]backend.Record, 0, len(matched))
	for _, rec := range matched {
		projected := backend.Project(rec, opts.Columns)
		for _, embed := range opts.Embeds {
			projected[embed.EmbedAlias()] = a.lookup(embed, rec[embed.LocalKey])
		}
		out = append(out, projected)
	}
	return out, nil
}

// Count implements backend.Backend.
func (a *Adapter) Count(ctx context.Context, tableName string, filters []backend.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, backend.NewError(backend.CodeUnavailable, tableName, "context done", err)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := a.checkOpen(tableName); err != nil {
		return 0, err
	}
	return int64(len(a.match(tableName, filters))), nil
}

// Insert implements backend.Backend.
func (a *Adapter) Insert(ctx context.Context, tableName string, rec backend.Record, returning []string) (backend.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, backend.NewError(backend.CodeUnavailable, tableName, "context done", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkOpen(tableName); err != nil {
		return nil, err
	}

	stored := rec.Clone()
	if stored == nil {
		stored = backend.Record{}
	}
	id, ok := stored["id"]
	if !ok || id == nil {
		id = uuid.NewString()
		stored["id"] = id
	}
	key := fmt.Sprint(id)

	t := a.tableFor(tableName)
	if _, exists := t.rows[key]; exists {
		return nil, duplicate(tableName, "pkey")
	}
	if err := a.checkUnique(tableName, key, stored); err != nil {
		return nil, err
	}

	t.rows[key] = stored
	t.order = append(t.order, key)
	return backend.Project(stored, returning), nil
}

// UpdateByKey implements backend.Backend.
func (a *Adapter) UpdateByKey(ctx context.Context, tableName string, key backend.Filter, changes backend.Record, returning []string) (backend.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, backend.NewError(backend.CodeUnavailable, tableName, "context done", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkOpen(tableName); err != nil {
		return nil, err
	}

	t, ok := a.tables[tableName]
	if !ok {
		return nil, backend.NoRows(tableName)
	}
	for _, rowKey := range t.order {
		rec := t.rows[rowKey]
		if !matches(rec, []backend.Filter{key}) {
			continue
		}
		updated := rec.Clone()
		for col, val := range changes {
			updated[col] = val
		}
		if err := a.checkUnique(tableName, rowKey, updated); err != nil {
			return nil, err
		}
		t.rows[rowKey] = updated
		return backend.Project(updated, returning), nil
	}
	return nil, backend.NoRows(tableName)
}

// Ping implements backend.Backend.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.checkOpen("")
}

// Close implements backend.Backend.
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// match returns the stored records of tableName satisfying all filters, in
// insertion order. Caller must hold a.mu.
func (a *Adapter) match(tableName string, filters []backend.Filter) []backend.Record {
	t, ok := a.tables[tableName]
	if !ok {
		return nil
	}
	var out []backend.Record
	for _, key := range t.order {
		rec := t.rows[key]
		if matches(rec, filters) {
			out = append(out, rec)
		}
	}
	return out
}

func (a *Adapter) lookup(embed backend.Embed, localValue any) backend.Record {
	if localValue == nil {
		return nil
	}
	foreignKey := embed.ForeignKey
	if foreignKey == "" {
		foreignKey = "id"
	}
	related := a.match(embed.Table, []backend.Filter{backend.Eq(foreignKey, localValue)})
	if len(related) == 0 {
		return nil
	}
	return backend.Project(related[0], embed.Fields)
}

func (a *Adapter) checkUnique(tableName, selfKey string, rec backend.Record) error {
	t := a.tableFor(tableName)
	for _, col := range a.uniques[tableName] {
		val, ok := rec[col]
		if !ok || val == nil {
			continue
		}
		for _, key := range t.order {
			if key == selfKey {
				continue
			}
			if equal(t.rows[key][col], val) {
				return duplicate(tableName, col+"_key")
			}
		}
	}
	return nil
}

func duplicate(tableName, constraint string) *backend.Error {
	return backend.NewError(backend.CodeUniqueViolation, tableName,
		fmt.Sprintf("duplicate key value violates unique constraint %q", tableName+"_"+constraint), nil)
}

package postgres

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
)

// quoteIdentifier safely quotes a table or column name.
func quoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// argList accumulates positional arguments and hands out $n placeholders.
type argList struct {
	args []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return fmt.Sprintf("$%d", len(a.args))
}

func whereClause(alias string, filters []backend.Filter, args *argList) string {
	if len(filters) == 0 {
		return ""
	}
	conds := make([]string, 0, len(filters))
	for _, f := range filters {
		col := quoteIdentifier(f.Column)
		if alias != "" {
			col = alias + "." + col
		}
		switch f.Op {
		case backend.OpEq:
			conds = append(conds, col+" = "+args.add(f.Value))
		case backend.OpGt:
			conds = append(conds, col+" > "+args.add(f.Value))
		case backend.OpLt:
			conds = append(conds, col+" < "+args.add(f.Value))
		case backend.OpIsNull:
			conds = append(conds, col+" IS NULL")
		}
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func columnList(alias string, columns []string) string {
	if len(columns) == 0 {
		if alias == "" {
			return "*"
		}
		return alias + ".*"
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdentifier(c)
		if alias != "" {
			quoted[i] = alias + "." + quoted[i]
		}
	}
	return strings.Join(quoted, ", ")
}

// embedColumn renders a correlated subquery returning the related row as JSON,
// or NULL when the relation is missing.
func embedColumn(e backend.Embed) string {
	foreign := e.ForeignKey
	if foreign == "" {
		foreign = "id"
	}
	fields := "*"
	if len(e.Fields) > 0 {
		fields = columnList("", e.Fields)
	}
	return fmt.Sprintf(
		"(SELECT row_to_json(e) FROM (SELECT %s FROM %s r WHERE r.%s = t.%s LIMIT 1) e) AS %s",
		fields,
		quoteIdentifier(e.Table),
		quoteIdentifier(foreign),
		quoteIdentifier(e.LocalKey),
		quoteIdentifier(e.EmbedAlias()),
	)
}

func buildSelect(table string, opts backend.FetchOptions) (string, []any) {
	args := &argList{}

	selectList := []string{columnList("t", opts.Columns)}
	for _, e := range opts.Embeds {
		selectList = append(selectList, embedColumn(e))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s t", strings.Join(selectList, ", "), quoteIdentifier(table))
	b.WriteString(whereClause("t", opts.Filters, args))
	if opts.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY t.%s ASC", quoteIdentifier(opts.OrderBy))
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}
	return b.String(), args.args
}

func buildCount(table string, filters []backend.Filter) (string, []any) {
	args := &argList{}
	sql := "SELECT count(*) FROM " + quoteIdentifier(table) + " t" + whereClause("t", filters, args)
	return sql, args.args
}

func returningClause(returning []string) string {
	return " RETURNING " + columnList("", returning)
}

func sortedKeys(rec backend.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildInsert(table string, rec backend.Record, returning []string) (string, []any) {
	args := &argList{}
	keys := sortedKeys(rec)
	cols := make([]string, len(keys))
	vals := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = quoteIdentifier(k)
		vals[i] = args.add(rec[k])
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(table), strings.Join(cols, ", "), strings.Join(vals, ", "))
	return sql + returningClause(returning), args.args
}

func buildUpdate(table string, key backend.Filter, changes backend.Record, returning []string) (string, []any) {
	args := &argList{}
	keys := sortedKeys(changes)
	sets := make([]string, len(keys))
	for i, k := range keys {
		sets[i] = quoteIdentifier(k) + " = " + args.add(changes[k])
	}
	sql := fmt.Sprintf("UPDATE %s t SET %s%s",
		quoteIdentifier(table), strings.Join(sets, ", "), whereClause("t", []backend.Filter{key}, args))
	return sql + returningClause(returning), args.args
}

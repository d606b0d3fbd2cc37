package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
	"github.com/ekaya-inc/querybridge/pkg/logging"
	"github.com/ekaya-inc/querybridge/pkg/retry"
)

// Adapter executes backend primitives as generated SQL over a pgx pool.
type Adapter struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewAdapter creates a pool with retry for transient failures.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	connStr := buildConnectionString(cfg)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %s", logging.SanitizeError(err))
	}
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}

	pool, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*pgxpool.Pool, error) {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		logger.Error("failed to create postgres pool after retries",
			zap.String("conn", logging.SanitizeConnectionString(connStr)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &Adapter{pool: pool, logger: logger}, nil
}

// NewAdapterFromPool wraps an existing pool. The adapter takes ownership.
func NewAdapterFromPool(pool *pgxpool.Pool, logger *zap.Logger) *Adapter {
	return &Adapter{pool: pool, logger: logger}
}

// FetchOne implements backend.Backend.
func (a *Adapter) FetchOne(ctx context.Context, table string, opts backend.FetchOptions) (backend.Record, error) {
	opts.Limit = 2
	recs, err := a.FetchMany(ctx, table, opts)
	if err != nil {
		return nil, err
	}
	switch len(recs) {
	case 0:
		return nil, backend.NoRows(table)
	case 1:
		return recs[0], nil
	default:
		return nil, backend.NewError(backend.CodeNoRows, table, "single-record fetch matched more than one row", nil)
	}
}

// FetchMany implements backend.Backend.
func (a *Adapter) FetchMany(ctx context.Context, table string, opts backend.FetchOptions) ([]backend.Record, error) {
	sql, args := buildSelect(table, opts)

	rows, err := a.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(table, "select", err)
	}
	recs, err := collectRows(rows)
	if err != nil {
		return nil, mapError(table, "select", err)
	}
	for _, rec := range recs {
		for _, e := range opts.Embeds {
			alias := e.EmbedAlias()
			rec[alias] = toRecord(rec[alias])
		}
	}
	return recs, nil
}

// Count implements backend.Backend.
func (a *Adapter) Count(ctx context.Context, table string, filters []backend.Filter) (int64, error) {
	sql, args := buildCount(table, filters)

	var n int64
	if err := a.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, mapError(table, "count", err)
	}
	return n, nil
}

// Insert implements backend.Backend.
func (a *Adapter) Insert(ctx context.Context, table string, rec backend.Record, returning []string) (backend.Record, error) {
	sql, args := buildInsert(table, rec, returning)
	return a.exactlyOne(ctx, table, "insert", sql, args)
}

// UpdateByKey implements backend.Backend.
func (a *Adapter) UpdateByKey(ctx context.Context, table string, key backend.Filter, changes backend.Record, returning []string) (backend.Record, error) {
	if len(changes) == 0 {
		return a.FetchOne(ctx, table, backend.FetchOptions{Filters: []backend.Filter{key}, Columns: returning})
	}
	sql, args := buildUpdate(table, key, changes, returning)
	return a.exactlyOne(ctx, table, "update", sql, args)
}

func (a *Adapter) exactlyOne(ctx context.Context, table, op, sql string, args []any) (backend.Record, error) {
	rows, err := a.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(table, op, err)
	}
	recs, err := collectRows(rows)
	if err != nil {
		return nil, mapError(table, op, err)
	}
	if len(recs) == 0 {
		return nil, backend.NoRows(table)
	}
	return recs[0], nil
}

// Ping implements backend.Backend.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return mapError("", "ping", err)
	}
	return nil
}

// Close implements backend.Backend.
func (a *Adapter) Close(ctx context.Context) error {
	a.pool.Close()
	return nil
}

// collectRows reads all rows into records. pgx defers errors until the rows
// are consumed, so callers must check the returned error.
func collectRows(rows pgx.Rows) ([]backend.Record, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	out := make([]backend.Record, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		rec := make(backend.Record, len(fieldDescs))
		for i, fd := range fieldDescs {
			rec[fd.Name] = normalizeValue(values[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}

// toRecord converts a decoded row_to_json value into a record.
func toRecord(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return backend.Record(m)
}

var _ backend.Backend = (*Adapter)(nil)

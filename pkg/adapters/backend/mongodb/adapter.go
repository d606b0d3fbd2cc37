package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
	"github.com/ekaya-inc/querybridge/pkg/logging"
	"github.com/ekaya-inc/querybridge/pkg/retry"
)

// uniqueIndexes lists the unique constraints the query layer relies on for
// duplicate-key detection.
var uniqueIndexes = map[string][]string{
	"users": {"email"},
	"roles": {"name"},
}

// Adapter provides MongoDB-backed table access. Each table is a collection.
type Adapter struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewAdapter connects to MongoDB with retry and verifies the connection.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout)

	client, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*mongo.Client, error) {
		c, err := mongo.Connect(ctx, clientOpts)
		if err != nil {
			return nil, err
		}
		if err := c.Ping(ctx, nil); err != nil {
			_ = c.Disconnect(ctx)
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		logger.Error("failed to connect to mongodb",
			zap.String("uri", logging.SanitizeConnectionString(cfg.URI)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	logger.Info("connected to mongodb",
		zap.String("uri", logging.SanitizeConnectionString(cfg.URI)),
		zap.String("database", cfg.Database),
	)

	return &Adapter{
		client: client,
		db:     client.Database(cfg.Database),
		logger: logger,
	}, nil
}

// EnsureIndexes creates the unique indexes duplicate-key detection depends on.
func (a *Adapter) EnsureIndexes(ctx context.Context) error {
	for table, columns := range uniqueIndexes {
		for _, col := range columns {
			model := mongo.IndexModel{
				Keys:    bson.D{{Key: col, Value: 1}},
				Options: options.Index().SetUnique(true).SetName(table + "_" + col + "_key"),
			}
			if _, err := a.db.Collection(table).Indexes().CreateOne(ctx, model); err != nil {
				return mapError(table, "create index", err)
			}
		}
	}
	return nil
}

// FetchOne implements backend.Backend. More than one match is reported as
// CodeNoRows, like a single-object request against a relational store.
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
		return nil, backend.NewError(backend.CodeNoRows, table, "single-record fetch matched more than one document", nil)
	}
}

// FetchMany implements backend.Backend.
func (a *Adapter) FetchMany(ctx context.Context, table string, opts backend.FetchOptions) ([]backend.Record, error) {
	if len(opts.Embeds) > 0 {
		return a.aggregate(ctx, table, opts)
	}

	findOpts := options.Find()
	if s := sortSpec(opts.OrderBy); s != nil {
		findOpts.SetSort(s)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := a.db.Collection(table).Find(ctx, buildFilter(opts.Filters), findOpts)
	if err != nil {
		return nil, mapError(table, "find", err)
	}
	return a.collect(ctx, table, cursor, opts)
}

// aggregate runs a fetch that embeds relations through $lookup.
func (a *Adapter) aggregate(ctx context.Context, table string, opts backend.FetchOptions) ([]backend.Record, error) {
	pipeline := []bson.M{{"$match": buildFilter(opts.Filters)}}
	if s := sortSpec(opts.OrderBy); s != nil {
		pipeline = append(pipeline, bson.M{"$sort": s})
	}
	if opts.Limit > 0 {
		pipeline = append(pipeline, bson.M{"$limit": opts.Limit})
	}
	pipeline = append(pipeline, embedStages(opts.Embeds)...)

	cursor, err := a.db.Collection(table).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, mapError(table, "aggregate", err)
	}
	return a.collect(ctx, table, cursor, opts)
}

func (a *Adapter) collect(ctx context.Context, table string, cursor *mongo.Cursor, opts backend.FetchOptions) ([]backend.Record, error) {
	defer cursor.Close(ctx)

	out := make([]backend.Record, 0)
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, mapError(table, "decode", err)
		}
		out = append(out, shapeRecord(toRecord(doc), opts))
	}
	if err := cursor.Err(); err != nil {
		return nil, mapError(table, "cursor", err)
	}
	return out, nil
}

// Count implements backend.Backend.
func (a *Adapter) Count(ctx context.Context, table string, filters []backend.Filter) (int64, error) {
	n, err := a.db.Collection(table).CountDocuments(ctx, buildFilter(filters))
	if err != nil {
		return 0, mapError(table, "count", err)
	}
	return n, nil
}

// Insert implements backend.Backend. The stored document is read back so the
// returned record reflects what later reads will see.
func (a *Adapter) Insert(ctx context.Context, table string, rec backend.Record, returning []string) (backend.Record, error) {
	coll := a.db.Collection(table)

	res, err := coll.InsertOne(ctx, toDocument(rec))
	if err != nil {
		return nil, mapError(table, "insert", err)
	}

	var doc bson.M
	if err := coll.FindOne(ctx, bson.M{"_id": res.InsertedID}).Decode(&doc); err != nil {
		return nil, mapError(table, "read inserted", err)
	}
	return backend.Project(toRecord(doc), returning), nil
}

// UpdateByKey implements backend.Backend.
func (a *Adapter) UpdateByKey(ctx context.Context, table string, key backend.Filter, changes backend.Record, returning []string) (backend.Record, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc bson.M
	err := a.db.Collection(table).
		FindOneAndUpdate(ctx, buildFilter([]backend.Filter{key}), bson.M{"$set": toDocument(changes)}, opts).
		Decode(&doc)
	if err != nil {
		return nil, mapError(table, "update", err)
	}
	return backend.Project(toRecord(doc), returning), nil
}

// Ping implements backend.Backend.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.client.Ping(ctx, nil); err != nil {
		return mapError("", "ping", err)
	}
	return nil
}

// Close implements backend.Backend.
func (a *Adapter) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

var _ backend.Backend = (*Adapter)(nil)

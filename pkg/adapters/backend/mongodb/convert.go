package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
)

// idField is the record key stored as the document _id.
const idField = "id"

func fieldName(column string) string {
	if column == idField {
		return "_id"
	}
	return column
}

// buildFilter converts backend filters into a BSON filter document.
func buildFilter(filters []backend.Filter) bson.M {
	filter := bson.M{}
	for _, f := range filters {
		name := fieldName(f.Column)
		switch f.Op {
		case backend.OpEq:
			filter[name] = f.Value
		case backend.OpGt:
			filter[name] = mergeOperator(filter[name], "$gt", f.Value)
		case backend.OpLt:
			filter[name] = mergeOperator(filter[name], "$lt", f.Value)
		case backend.OpIsNull:
			// Matches both explicit null and a missing field.
			filter[name] = nil
		}
	}
	return filter
}

func mergeOperator(existing any, op string, value any) bson.M {
	if m, ok := existing.(bson.M); ok {
		m[op] = value
		return m
	}
	return bson.M{op: value}
}

// toDocument converts a record into a BSON document, renaming id to _id.
func toDocument(rec backend.Record) bson.M {
	doc := make(bson.M, len(rec))
	for k, v := range rec {
		doc[fieldName(k)] = v
	}
	return doc
}

// toRecord converts a decoded document into a record, renaming _id to id and
// normalizing driver types (DateTime, nested documents, arrays).
func toRecord(doc bson.M) backend.Record {
	if doc == nil {
		return nil
	}
	rec := make(backend.Record, len(doc))
	for k, v := range doc {
		if k == "_id" {
			k = idField
		}
		rec[k] = convertValue(v)
	}
	return rec
}

func convertValue(v any) any {
	switch val := v.(type) {
	case bson.M:
		return toRecord(val)
	case map[string]any:
		return toRecord(bson.M(val))
	case bson.D:
		return toRecord(documentToMap(val))
	case bson.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = convertValue(item)
		}
		return out
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.ObjectID:
		return val.Hex()
	default:
		return v
	}
}

func documentToMap(d bson.D) bson.M {
	m := make(bson.M, len(d))
	for _, e := range d {
		m[e.Key] = e.Value
	}
	return m
}

// sortSpec builds an ascending sort document, or nil when no order is requested.
func sortSpec(orderBy string) bson.D {
	if orderBy == "" {
		return nil
	}
	return bson.D{{Key: fieldName(orderBy), Value: 1}}
}

// embedStages builds the $lookup/$unwind stages for the requested embeds.
// preserveNullAndEmptyArrays keeps records whose relation is missing.
func embedStages(embeds []backend.Embed) []bson.M {
	var stages []bson.M
	for _, e := range embeds {
		foreign := e.ForeignKey
		if foreign == "" {
			foreign = idField
		}
		alias := e.EmbedAlias()
		stages = append(stages,
			bson.M{"$lookup": bson.M{
				"from":         e.Table,
				"localField":   fieldName(e.LocalKey),
				"foreignField": fieldName(foreign),
				"as":           alias,
			}},
			bson.M{"$unwind": bson.M{
				"path":                       "$" + alias,
				"preserveNullAndEmptyArrays": true,
			}},
		)
	}
	return stages
}

// shapeRecord applies column projection and embed field restriction to a
// converted record. Missing relations are stored as nil under their alias.
func shapeRecord(rec backend.Record, opts backend.FetchOptions) backend.Record {
	out := backend.Project(rec, opts.Columns)
	for _, e := range opts.Embeds {
		alias := e.EmbedAlias()
		related, _ := rec[alias].(backend.Record)
		if related == nil {
			out[alias] = nil
			continue
		}
		out[alias] = backend.Project(related, e.Fields)
	}
	return out
}

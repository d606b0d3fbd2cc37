package query

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
	"github.com/ekaya-inc/querybridge/pkg/logging"
)

func (g *Gateway) executeUpdate(ctx context.Context, c Classification, text string, params Params) (*Result, error) {
	switch c.Shape {
	case UsersSetPassword:
		// password_hash, id
		return g.updateByKey(ctx, "users", backend.Eq("id", params.At(1)), backend.Record{
			"password_hash":       params.At(0),
			"reset_token":         nil,
			"reset_token_expires": nil,
		})
	case UsersSetResetToken:
		// reset_token, reset_token_expires, email
		return g.updateByKey(ctx, "users", backend.Eq("email", params.At(2)), backend.Record{
			"reset_token":         params.At(0),
			"reset_token_expires": bindValue("reset_token_expires", params.At(1)),
		})
	case UsersClearResetToken:
		// id
		return g.updateByKey(ctx, "users", backend.Eq("id", params.At(0)), backend.Record{
			"reset_token":         nil,
			"reset_token_expires": nil,
		})
	case UpdateGeneric:
		return g.genericUpdate(ctx, c.Table, text, params)
	default:
		return Unimplemented(), nil
	}
}

// genericUpdate applies the SET clause of text to the row whose WHERE column
// equals the last param. Audit columns never take a value from the statement;
// updated_at is stamped instead. A placeholder pointing at the key param or
// past the end of params is skipped.
func (g *Gateway) genericUpdate(ctx context.Context, table, text string, params Params) (*Result, error) {
	assignments, err := ParseAssignments(text)
	if err != nil {
		g.logger.Warn("Cannot parse SET clause, returning empty result",
			zap.String("table", table),
			zap.String("query", logging.SanitizeQuery(text)),
			zap.Error(err))
		return Unimplemented(), nil
	}

	keyIndex := len(params) - 1
	changes := make(backend.Record, len(assignments))
	for _, a := range assignments {
		if auditColumns[a.Column] {
			continue
		}
		switch a.Kind {
		case ValueParam:
			if a.Param >= keyIndex {
				continue
			}
			changes[a.Column] = bindValue(a.Column, params[a.Param])
		case ValueNull:
			changes[a.Column] = nil
		case ValueNow:
			changes[a.Column] = g.stamp()
		case ValueLiteral:
			changes[a.Column] = bindValue(a.Column, a.Literal)
		}
	}

	return g.updateByKey(ctx, table, backend.Eq(WhereKey(text), params.Last()), changes)
}

// updateByKey stamps updated_at and updates the keyed row. An absent key or a
// key matching nothing yields no rows.
func (g *Gateway) updateByKey(ctx context.Context, table string, key backend.Filter, changes backend.Record) (*Result, error) {
	if key.Value == nil {
		return Empty(), nil
	}
	key.Value = bindValue(key.Column, key.Value)
	changes["updated_at"] = g.stamp()

	var returning []string
	if table == "users" {
		returning = userPublicColumns
	}

	rec, err := g.backend.UpdateByKey(ctx, table, key, changes, returning)
	if err != nil {
		if MapError(err) == NotFoundAsEmpty {
			return Empty(), nil
		}
		return nil, err
	}
	return FromRecord(rec), nil
}

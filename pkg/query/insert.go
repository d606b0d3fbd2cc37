package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
	"github.com/ekaya-inc/querybridge/pkg/apperrors"
)

// insertPlan maps positional params onto record fields. fields[i] receives
// params[i]; the order is the caller contract listed in the catalog.
type insertPlan struct {
	table     string
	fields    []string
	required  int // leading fields that must be present
	defaults  map[string]any
	returning []string
}

var insertPlans = map[Shape]insertPlan{
	// users: name, email, password_hash, role_id, is_active
	UsersInsert: {
		table:     "users",
		fields:    []string{"name", "email", "password_hash", "role_id", "is_active"},
		required:  3,
		defaults:  map[string]any{"is_active": true},
		returning: userPublicColumns,
	},
	// roles: name
	RolesInsert: {table: "roles", fields: []string{"name"}, required: 1},
	// companies: name, document, email, phone
	CompaniesInsert: {
		table:    "companies",
		fields:   []string{"name", "document", "email", "phone"},
		required: 1,
	},
	// services: name, description, price
	ServicesInsert: {
		table:    "services",
		fields:   []string{"name", "description", "price"},
		required: 1,
	},
	// contracts: company_id, title, status, value, start_date, end_date, created_by
	ContractsInsert: {
		table:    "contracts",
		fields:   []string{"company_id", "title", "status", "value", "start_date", "end_date", "created_by"},
		required: 2,
		defaults: map[string]any{"status": "draft"},
	},
	// contract_comments: contract_id, user_id, content
	CommentsInsert: {
		table:    "contract_comments",
		fields:   []string{"contract_id", "user_id", "content"},
		required: 3,
	},
	// comment_attachments: comment_id, uploaded_by, file_name, file_path, file_size, mime_type
	AttachmentsInsert: {
		table:    "comment_attachments",
		fields:   []string{"comment_id", "uploaded_by", "file_name", "file_path", "file_size", "mime_type"},
		required: 4,
	},
	// contract_access: contract_id, user_id, granted_by
	AccessInsert: {
		table:    "contract_access",
		fields:   []string{"contract_id", "user_id", "granted_by"},
		required: 2,
	},
}

func (g *Gateway) executeInsert(ctx context.Context, shape Shape, params Params) (*Result, error) {
	plan, ok := insertPlans[shape]
	if !ok {
		return Unimplemented(), nil
	}

	rec, err := plan.record(params)
	if err != nil {
		return nil, err
	}
	rec["id"] = uuid.NewString()
	rec["created_at"] = g.stamp()

	stored, err := g.backend.Insert(ctx, plan.table, rec, plan.returning)
	if err != nil {
		return nil, err
	}
	return FromRecord(stored), nil
}

func (p insertPlan) record(params Params) (backend.Record, error) {
	rec := make(backend.Record, len(p.fields)+2)
	for i, field := range p.fields {
		v := params.At(i)
		if v == nil {
			if i < p.required {
				return nil, fmt.Errorf("insert into %s: %s (param %d) is required: %w",
					p.table, field, i+1, apperrors.ErrInvalidParams)
			}
			v = p.defaults[field]
		}
		rec[field] = bindValue(field, v)
	}
	return rec, nil
}

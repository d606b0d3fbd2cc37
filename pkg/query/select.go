package query

import (
	"context"
	"time"

	"github.com/jinzhu/inflection"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
)

type readMode int

const (
	readOne readMode = iota
	readMany
	readCount
)

// selectPlan is the backend read a select shape translates to.
type selectPlan struct {
	table string
	mode  readMode
	// keys are equality filters bound to params by position. A shape whose
	// key param is absent matches nothing and issues no backend call.
	keys []string
	// filters adds non-equality predicates.
	filters func(p Params, now time.Time) []backend.Filter
	orderBy string
	limit   int
	columns []string
	embeds  []backend.Embed
	flatten []Flattening
}

// userPublicColumns are the user fields safe to list. Lookups that back a
// login (by email, by reset token) return the full record.
var userPublicColumns = []string{"id", "name", "email", "role_id", "is_active", "created_at"}

// relation embeds the to-one relation table through localKey, stored under
// the singular of table ("roles" becomes "role").
func relation(table, localKey string, fields ...string) backend.Embed {
	return backend.Embed{
		Table:      table,
		LocalKey:   localKey,
		ForeignKey: "id",
		As:         inflection.Singular(table),
		Fields:     fields,
	}
}

var (
	userRole      = []backend.Embed{relation("roles", "role_id", "name")}
	userRoleFlat  = []Flattening{{From: "role", Field: "name", To: "role_name"}}
	contractComp  = []backend.Embed{relation("companies", "company_id", "name")}
	contractFlat  = []Flattening{{From: "company", Field: "name", To: "company_name"}}
	commentAuthor = []backend.Embed{{Table: "users", LocalKey: "user_id", ForeignKey: "id", As: "author", Fields: []string{"name"}}}
	commentFlat   = []Flattening{{From: "author", Field: "name", To: "author_name"}}
	uploader      = []backend.Embed{{Table: "users", LocalKey: "uploaded_by", ForeignKey: "id", As: "uploader", Fields: []string{"name"}}}
	uploaderFlat  = []Flattening{{From: "uploader", Field: "name", To: "uploader_name"}}
)

var selectPlans = map[Shape]selectPlan{
	UsersByResetToken: {
		table: "users", mode: readOne, keys: []string{"reset_token"},
		filters: func(_ Params, now time.Time) []backend.Filter {
			return []backend.Filter{{Column: "reset_token_expires", Op: backend.OpGt, Value: now}}
		},
		embeds: userRole, flatten: userRoleFlat,
	},
	UsersExpiredResetTokens: {
		table: "users", mode: readMany, columns: []string{"id"},
		filters: func(p Params, now time.Time) []backend.Filter {
			cutoff := any(now)
			if p.Has(0) {
				cutoff = bindValue("now", p.At(0))
			}
			return []backend.Filter{{Column: "reset_token_expires", Op: backend.OpLt, Value: cutoff}}
		},
	},
	UsersMissingActiveFlag: {
		table: "users", mode: readMany, columns: []string{"id"},
		filters: func(Params, time.Time) []backend.Filter {
			return []backend.Filter{{Column: "is_active", Op: backend.OpIsNull}}
		},
	},
	UsersCount: {table: "users", mode: readCount},
	UsersByEmail: {
		table: "users", mode: readOne, keys: []string{"email"},
		embeds: userRole, flatten: userRoleFlat,
	},
	UsersByID: {
		table: "users", mode: readOne, keys: []string{"id"},
		columns: userPublicColumns, embeds: userRole, flatten: userRoleFlat,
	},
	UsersWithRole: {
		table: "users", mode: readMany, orderBy: "name",
		columns: userPublicColumns, embeds: userRole, flatten: userRoleFlat,
	},
	UsersAll: {table: "users", mode: readMany, orderBy: "name", columns: userPublicColumns},

	RolesByName: {table: "roles", mode: readOne, keys: []string{"name"}},
	RolesByID:   {table: "roles", mode: readOne, keys: []string{"id"}},
	RolesAll:    {table: "roles", mode: readMany, orderBy: "name"},

	CompaniesCount: {table: "companies", mode: readCount},
	CompaniesByID:  {table: "companies", mode: readOne, keys: []string{"id"}},
	CompaniesAll:   {table: "companies", mode: readMany, orderBy: "name"},

	ServicesByID: {table: "services", mode: readOne, keys: []string{"id"}},
	ServicesAll:  {table: "services", mode: readMany, orderBy: "name"},

	ContractsExpiring: {
		table: "contracts", mode: readMany, keys: []string{"status"}, columns: []string{"id"}, orderBy: "end_date",
		filters: func(p Params, now time.Time) []backend.Filter {
			cutoff := any(now)
			if p.Has(1) {
				cutoff = bindValue("now", p.At(1))
			}
			return []backend.Filter{{Column: "end_date", Op: backend.OpLt, Value: cutoff}}
		},
	},
	ContractsCount: {table: "contracts", mode: readCount},
	ContractsByCompany: {
		table: "contracts", mode: readMany, keys: []string{"company_id"}, orderBy: "created_at",
		embeds: contractComp, flatten: contractFlat,
	},
	ContractsByID: {
		table: "contracts", mode: readOne, keys: []string{"id"},
		embeds: contractComp, flatten: contractFlat,
	},
	ContractsAll: {
		table: "contracts", mode: readMany, orderBy: "created_at",
		embeds: contractComp, flatten: contractFlat,
	},

	CommentsByContract: {
		table: "contract_comments", mode: readMany, keys: []string{"contract_id"}, orderBy: "created_at",
		embeds: commentAuthor, flatten: commentFlat,
	},
	CommentsByID: {table: "contract_comments", mode: readOne, keys: []string{"id"}},

	AttachmentsByComment: {
		table: "comment_attachments", mode: readMany, keys: []string{"comment_id"}, orderBy: "created_at",
		embeds: uploader, flatten: uploaderFlat,
	},
	AttachmentByID: {table: "comment_attachments", mode: readOne, keys: []string{"id"}},

	AccessByContractAndUser: {
		table: "contract_access", mode: readMany, keys: []string{"contract_id", "user_id"}, limit: 1,
	},
	AccessByContract: {
		table: "contract_access", mode: readMany, keys: []string{"contract_id"}, orderBy: "created_at",
	},
}

func (g *Gateway) executeSelect(ctx context.Context, shape Shape, params Params) (*Result, error) {
	if shape == CommentPermission {
		return g.commentPermission(ctx, params)
	}
	plan, ok := selectPlans[shape]
	if !ok {
		return Unimplemented(), nil
	}
	return g.read(ctx, plan, params)
}

func (g *Gateway) read(ctx context.Context, plan selectPlan, params Params) (*Result, error) {
	filters := make([]backend.Filter, 0, len(plan.keys)+1)
	for i, col := range plan.keys {
		if !params.Has(i) {
			return Empty(), nil
		}
		filters = append(filters, backend.Eq(col, bindValue(col, params.At(i))))
	}
	if plan.filters != nil {
		filters = append(filters, plan.filters(params, g.stamp())...)
	}

	opts := backend.FetchOptions{
		Filters: filters,
		OrderBy: plan.orderBy,
		Limit:   plan.limit,
		Columns: plan.columns,
		Embeds:  plan.embeds,
	}

	switch plan.mode {
	case readOne:
		rec, err := g.backend.FetchOne(ctx, plan.table, opts)
		// Backend errors are returned unwrapped so callers see the native
		// message and code.
		if err != nil {
			if MapError(err) == NotFoundAsEmpty {
				return Empty(), nil
			}
			return nil, err
		}
		return FromRecord(rec).Flatten(plan.flatten), nil

	case readCount:
		n, err := g.backend.Count(ctx, plan.table, filters)
		if err != nil {
			return nil, err
		}
		return FromCount(n), nil

	default:
		recs, err := g.backend.FetchMany(ctx, plan.table, opts)
		if err != nil {
			return nil, err
		}
		return FromRecords(recs).Flatten(plan.flatten), nil
	}
}
